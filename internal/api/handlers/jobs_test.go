package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrn/printfair/internal/core"
	"github.com/orrn/printfair/internal/db"
)

func newTestRouter(t *testing.T) (*gin.Engine, *db.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlDB, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	store := db.NewStore(sqlDB)

	lifecycle := core.NewLifecycle(store.Jobs, store.Users,
		core.NewRecalculator(store.Jobs), nil, nil, "PRT")

	r := gin.New()
	api := r.Group("/api")
	admin := r.Group("/api")
	NewJobHandler(store, lifecycle).RegisterRoutes(api, admin)
	return r, store
}

func apiUser(t *testing.T, store *db.Store, name string) *db.User {
	t.Helper()
	u := &db.User{ID: uuid.New().String(), Name: name, Email: name + "@example.com"}
	require.NoError(t, store.Users.CreateUser(context.Background(), u))
	return u
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJob(t *testing.T, w *httptest.ResponseRecorder) db.PrintJob {
	t.Helper()
	var job db.PrintJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	return job
}

func TestCreateJobEndpoint(t *testing.T) {
	r, store := newTestRouter(t)
	user := apiUser(t, store, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/jobs", gin.H{
		"user_id":  user.ID,
		"title":    "cable clip",
		"file_ref": "uploads/clip.stl",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	job := decodeJob(t, w)
	assert.Equal(t, "pending_review", job.Status)
	assert.Equal(t, user.ID, job.UserID)
	assert.Equal(t, "cable clip", job.Title)
}

func TestCreateJobMissingFields(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/jobs", gin.H{"title": "no user"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJobUnknownUser(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/jobs", gin.H{
		"user_id": "no-such-user",
		"title":   "x",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateJobSecondActiveRefused(t *testing.T) {
	r, store := newTestRouter(t)
	user := apiUser(t, store, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/jobs", gin.H{"user_id": user.ID, "title": "one"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/jobs", gin.H{"user_id": user.ID, "title": "two"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApproveJobEndpoint(t *testing.T) {
	r, store := newTestRouter(t)
	user := apiUser(t, store, "alice")

	created := decodeJob(t, doJSON(t, r, http.MethodPost, "/api/jobs",
		gin.H{"user_id": user.ID, "title": "clip"}))

	path := fmt.Sprintf("/api/jobs/%d/approve", created.ID)
	w := doJSON(t, r, http.MethodPost, path, gin.H{
		"raw_cost":          25.5,
		"estimated_minutes": 30,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	job := decodeJob(t, w)
	assert.Equal(t, "queued", job.Status)
	assert.Equal(t, 150.00, job.PriorityScore)
	assert.Regexp(t, `^PRT-\d{8}-\d{4}$`, job.ReceiptNumber)

	// A second approval is a state conflict, not a rewrite.
	w = doJSON(t, r, http.MethodPost, path, gin.H{
		"raw_cost":          10.0,
		"estimated_minutes": 10,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApproveJobValidation(t *testing.T) {
	r, store := newTestRouter(t)
	user := apiUser(t, store, "alice")

	created := decodeJob(t, doJSON(t, r, http.MethodPost, "/api/jobs",
		gin.H{"user_id": user.ID, "title": "clip"}))

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/approve", created.ID),
		gin.H{"raw_cost": 10.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	r, store := newTestRouter(t)
	user := apiUser(t, store, "alice")

	created := decodeJob(t, doJSON(t, r, http.MethodPost, "/api/jobs",
		gin.H{"user_id": user.ID, "title": "clip", "file_ref": "uploads/clip.stl"}))

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/approve", created.ID),
		gin.H{"raw_cost": 25.0, "estimated_minutes": 60})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/start", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "printing", decodeJob(t, w).Status)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/complete", created.ID),
		gin.H{"actual_minutes": 65})
	require.Equal(t, http.StatusOK, w.Code)

	job := decodeJob(t, w)
	assert.Equal(t, "completed", job.Status)
	assert.Equal(t, 65, job.ActualMinutes)
	assert.Empty(t, job.FileRef)

	owner, err := store.Users.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 65.0/60, owner.AccumulatedHours, 1e-9)
}

func TestStartConflictOverHTTP(t *testing.T) {
	r, store := newTestRouter(t)
	alice := apiUser(t, store, "alice")
	bob := apiUser(t, store, "bob")

	submit := func(u *db.User) db.PrintJob {
		job := decodeJob(t, doJSON(t, r, http.MethodPost, "/api/jobs",
			gin.H{"user_id": u.ID, "title": "part"}))
		w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/approve", job.ID),
			gin.H{"raw_cost": 10.0, "estimated_minutes": 60})
		require.Equal(t, http.StatusOK, w.Code)
		return job
	}

	first := submit(alice)
	second := submit(bob)

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/start", first.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/start", second.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetQueueEndpoint(t *testing.T) {
	r, store := newTestRouter(t)
	ctx := context.Background()

	// Veteran with accumulated time queues behind the newcomer.
	veteran := apiUser(t, store, "veteran")
	require.NoError(t, store.Users.AddPrintTime(ctx, veteran.ID, 9))
	newcomer := apiUser(t, store, "newcomer")

	for _, u := range []*db.User{veteran, newcomer} {
		job := decodeJob(t, doJSON(t, r, http.MethodPost, "/api/jobs",
			gin.H{"user_id": u.ID, "title": "part"}))
		w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/approve", job.ID),
			gin.H{"raw_cost": 10.0, "estimated_minutes": 60})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/api/jobs/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Queue []QueueEntry `json:"queue"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)

	assert.Equal(t, 1, resp.Queue[0].Position)
	assert.Equal(t, newcomer.ID, resp.Queue[0].UserID)
	assert.Equal(t, 100.00, resp.Queue[0].PriorityScore)
	assert.Equal(t, veteran.ID, resp.Queue[1].UserID)
	assert.Equal(t, 10.00, resp.Queue[1].PriorityScore)
}

func TestGetJobStatsEndpoint(t *testing.T) {
	r, store := newTestRouter(t)
	alice := apiUser(t, store, "alice")
	bob := apiUser(t, store, "bob")

	doJSON(t, r, http.MethodPost, "/api/jobs", gin.H{"user_id": alice.ID, "title": "a"})
	job := decodeJob(t, doJSON(t, r, http.MethodPost, "/api/jobs",
		gin.H{"user_id": bob.ID, "title": "b"}))
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/approve", job.ID),
		gin.H{"raw_cost": 10.0, "estimated_minutes": 30})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/jobs/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats JobStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.PendingReview)
	assert.EqualValues(t, 1, stats.Queued)
	assert.EqualValues(t, 2, stats.Total)
}

func TestGetJobNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/jobs/4242", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidJobID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/jobs/abc/start", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminActionsAreAudited(t *testing.T) {
	r, store := newTestRouter(t)
	user := apiUser(t, store, "alice")

	created := decodeJob(t, doJSON(t, r, http.MethodPost, "/api/jobs",
		gin.H{"user_id": user.ID, "title": "clip"}))
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/approve", created.ID),
		gin.H{"raw_cost": 10.0, "estimated_minutes": 30})
	require.Equal(t, http.StatusOK, w.Code)

	logs, err := store.Audit.ListAuditLogs(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "job_approved", logs[0].Action)
	assert.Equal(t, created.ID, logs[0].EntityID)
}
