package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	sqlDB, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewStore(sqlDB)
}

func seedUser(t *testing.T, store *Store, name string) *User {
	t.Helper()
	u := &User{ID: uuid.New().String(), Name: name, Email: name + "@example.com"}
	require.NoError(t, store.Users.CreateUser(context.Background(), u))
	return u
}

func seedQueuedJob(t *testing.T, store *Store, userID string, score float64) *PrintJob {
	t.Helper()
	ctx := context.Background()
	j := &PrintJob{UserID: userID, Title: "part", FileRef: "uploads/part.stl"}
	require.NoError(t, store.Jobs.CreateJob(ctx, j))
	affected, err := store.Jobs.Approve(ctx, j.ID, "PRT-20260101-0001", 10, 60, "", false, score)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	return j
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printfair.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Re-opening must not re-apply already recorded migrations.
	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	var applied int
	require.NoError(t, second.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestOneActiveJobPerUserIndex(t *testing.T) {
	store := newStore(t)
	user := seedUser(t, store, "alice")
	ctx := context.Background()

	first := &PrintJob{UserID: user.ID, Title: "one"}
	require.NoError(t, store.Jobs.CreateJob(ctx, first))

	second := &PrintJob{UserID: user.ID, Title: "two"}
	err := store.Jobs.CreateJob(ctx, second)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	// A terminal job does not hold the slot.
	affected, err := store.Jobs.Reject(ctx, first.ID, "duplicate")
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	assert.NoError(t, store.Jobs.CreateJob(ctx, second))
}

func TestStartClaimsPrinterExclusively(t *testing.T) {
	store := newStore(t)
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	ctx := context.Background()

	aliceJob := seedQueuedJob(t, store, alice.ID, 100)
	bobJob := seedQueuedJob(t, store, bob.ID, 100)

	affected, err := store.Jobs.Start(ctx, aliceJob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	// Second claim loses without touching the row.
	affected, err = store.Jobs.Start(ctx, bobJob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	printing, err := store.Jobs.GetPrintingJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, aliceJob.ID, printing.ID)
}

func TestGuardedTransitionsRequireExpectedStatus(t *testing.T) {
	store := newStore(t)
	user := seedUser(t, store, "alice")
	ctx := context.Background()

	job := seedQueuedJob(t, store, user.ID, 100)

	// Approve and Reject both require pending_review; the job is queued.
	affected, err := store.Jobs.Approve(ctx, job.ID, "PRT-20260101-0002", 5, 30, "", false, 150)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	affected, err = store.Jobs.Reject(ctx, job.ID, "")
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	// Complete and Fail require printing.
	affected, err = store.Jobs.Complete(ctx, job.ID, 60, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	affected, err = store.Jobs.Fail(ctx, job.ID, "")
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	reloaded, err := store.Jobs.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "queued", reloaded.Status)
}

func TestQueueOrdering(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	low := seedQueuedJob(t, store, seedUser(t, store, "carol").ID, 20)
	tieOld := seedQueuedJob(t, store, seedUser(t, store, "alice").ID, 100)
	tieNew := seedQueuedJob(t, store, seedUser(t, store, "bob").ID, 100)

	// CURRENT_TIMESTAMP has second resolution; pin created_at so the
	// tie-break is deterministic.
	_, err := store.DB.ExecContext(ctx,
		"UPDATE print_jobs SET created_at = ? WHERE id = ?", "2026-01-01 10:00:00", tieOld.ID)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx,
		"UPDATE print_jobs SET created_at = ? WHERE id = ?", "2026-01-01 10:05:00", tieNew.ID)
	require.NoError(t, err)

	queued, err := store.Jobs.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 3)

	// Highest score first; equal scores break by submission time.
	assert.Equal(t, tieOld.ID, queued[0].ID)
	assert.Equal(t, tieNew.ID, queued[1].ID)
	assert.Equal(t, low.ID, queued[2].ID)
}

func TestCompleteCoalescesPaidFlag(t *testing.T) {
	store := newStore(t)
	user := seedUser(t, store, "alice")
	ctx := context.Background()

	job := &PrintJob{UserID: user.ID, Title: "part"}
	require.NoError(t, store.Jobs.CreateJob(ctx, job))
	_, err := store.Jobs.Approve(ctx, job.ID, "PRT-20260101-0003", 10, 60, "", true, 100)
	require.NoError(t, err)
	_, err = store.Jobs.Start(ctx, job.ID)
	require.NoError(t, err)

	// nil leaves the stored flag alone.
	affected, err := store.Jobs.Complete(ctx, job.ID, 55, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	reloaded, err := store.Jobs.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsPaid)
	assert.Equal(t, 55, reloaded.ActualMinutes)
	assert.NotNil(t, reloaded.CompletedAt)
	assert.Empty(t, reloaded.FileRef)
}

func TestAddPrintTimeAccumulates(t *testing.T) {
	store := newStore(t)
	user := seedUser(t, store, "alice")
	ctx := context.Background()

	require.NoError(t, store.Users.AddPrintTime(ctx, user.ID, 1.5))
	require.NoError(t, store.Users.AddPrintTime(ctx, user.ID, 0.25))

	reloaded, err := store.Users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, reloaded.AccumulatedHours, 1e-9)
}

func TestCountActiveByUser(t *testing.T) {
	store := newStore(t)
	user := seedUser(t, store, "alice")
	ctx := context.Background()

	count, err := store.Jobs.CountActiveByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	job := &PrintJob{UserID: user.ID, Title: "part"}
	require.NoError(t, store.Jobs.CreateJob(ctx, job))

	count, err = store.Jobs.CountActiveByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = store.Jobs.Reject(ctx, job.ID, "")
	require.NoError(t, err)

	count, err = store.Jobs.CountActiveByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestGetJobsForArchival(t *testing.T) {
	store := newStore(t)
	old := seedUser(t, store, "alice")
	fresh := seedUser(t, store, "bob")
	active := seedUser(t, store, "carol")
	ctx := context.Background()

	finish := func(userID string) *PrintJob {
		job := seedQueuedJob(t, store, userID, 100)
		_, err := store.Jobs.Start(ctx, job.ID)
		require.NoError(t, err)
		affected, err := store.Jobs.Complete(ctx, job.ID, 60, nil)
		require.NoError(t, err)
		require.EqualValues(t, 1, affected)
		return job
	}

	oldJob := finish(old.ID)
	finish(fresh.ID)
	seedQueuedJob(t, store, active.ID, 100)

	stale := time.Now().UTC().AddDate(0, 0, -45).Format("2006-01-02 15:04:05")
	_, err := store.DB.ExecContext(ctx,
		"UPDATE print_jobs SET created_at = ? WHERE id = ?", stale, oldJob.ID)
	require.NoError(t, err)

	jobs, err := store.Jobs.GetJobsForArchival(ctx, 30)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, oldJob.ID, jobs[0].ID)
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Settings.GetSetting(ctx, "admin_password")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, store.Settings.SetSetting(ctx, "admin_password", "hash-v1"))
	require.NoError(t, store.Settings.SetSetting(ctx, "admin_password", "hash-v2"))

	s, err := store.Settings.GetSetting(ctx, "admin_password")
	require.NoError(t, err)
	assert.Equal(t, "hash-v2", s.Value)

	require.NoError(t, store.Settings.DeleteSetting(ctx, "admin_password"))
	_, err = store.Settings.GetSetting(ctx, "admin_password")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWebhookEventFilter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	onCompleted := &Webhook{Name: "billing", URL: "http://x/hook", EventsJSON: `["job_completed"]`, Enabled: true}
	require.NoError(t, store.Webhooks.CreateWebhook(ctx, onCompleted))
	disabled := &Webhook{Name: "off", URL: "http://x/off", EventsJSON: `["job_completed"]`, Enabled: false}
	require.NoError(t, store.Webhooks.CreateWebhook(ctx, disabled))
	other := &Webhook{Name: "intake", URL: "http://x/intake", EventsJSON: `["job_submitted"]`, Enabled: true}
	require.NoError(t, store.Webhooks.CreateWebhook(ctx, other))

	hooks, err := store.Webhooks.ListActiveWebhooksForEvent(ctx, "job_completed")
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, "billing", hooks[0].Name)
}
