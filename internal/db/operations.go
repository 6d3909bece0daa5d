package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Store bundles the per-entity operation sets over a single sqlite handle.
type Store struct {
	DB       *sql.DB
	Users    *UserOperations
	Jobs     *JobOperations
	Settings *SettingsOperations
	Webhooks *WebhookOperations
	Audit    *AuditOperations
	Archive  *ArchiveOperations
}

func NewStore(sqlDB *sql.DB) *Store {
	return &Store{
		DB:       sqlDB,
		Users:    &UserOperations{db: sqlDB},
		Jobs:     &JobOperations{db: sqlDB},
		Settings: &SettingsOperations{db: sqlDB},
		Webhooks: &WebhookOperations{db: sqlDB},
		Audit:    &AuditOperations{db: sqlDB},
		Archive:  &ArchiveOperations{db: sqlDB},
	}
}

type UserOperations struct {
	db *sql.DB
}

func (o *UserOperations) CreateUser(ctx context.Context, u *User) error {
	_, err := o.db.ExecContext(ctx, InsertUser, u.ID, u.Name, u.Email)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (o *UserOperations) GetUserByID(ctx context.Context, id string) (*User, error) {
	u := &User{}
	err := o.db.QueryRowContext(ctx, GetUserByID, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.AccumulatedHours, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (o *UserOperations) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := o.db.QueryRowContext(ctx, GetUserByEmail, email).Scan(
		&u.ID, &u.Name, &u.Email, &u.AccumulatedHours, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (o *UserOperations) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := o.db.QueryContext(ctx, ListUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AccumulatedHours, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AddPrintTime adds hours to a user's accumulated print time. The update is
// additive so the accumulator never moves backwards.
func (o *UserOperations) AddPrintTime(ctx context.Context, id string, hours float64) error {
	_, err := o.db.ExecContext(ctx, AddUserPrintTime, hours, id)
	if err != nil {
		return fmt.Errorf("failed to add print time: %w", err)
	}
	return nil
}

type JobOperations struct {
	db *sql.DB
}

func (o *JobOperations) CreateJob(ctx context.Context, j *PrintJob) error {
	result, err := o.db.ExecContext(ctx, InsertJob, j.UserID, j.Title, j.FileRef)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get job id: %w", err)
	}
	j.ID = id
	j.Status = "pending_review"
	return nil
}

func (o *JobOperations) GetJobByID(ctx context.Context, id int64) (*PrintJob, error) {
	j := &PrintJob{}
	err := o.db.QueryRowContext(ctx, GetJobByID, id).Scan(
		&j.ID, &j.UserID, &j.Title, &j.FileRef, &j.Status,
		&j.EstimatedMinutes, &j.ActualMinutes, &j.RawCost, &j.PriorityScore,
		&j.ReceiptNumber, &j.IsPaid, &j.AdminNotes,
		&j.CreatedAt, &j.ApprovedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) ListQueued(ctx context.Context) ([]*PrintJob, error) {
	rows, err := o.db.QueryContext(ctx, ListQueuedJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (o *JobOperations) ListQueuedWithOwner(ctx context.Context) ([]*QueuedJob, error) {
	rows, err := o.db.QueryContext(ctx, ListQueuedJobsWithOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued jobs with owner: %w", err)
	}
	defer rows.Close()

	var entries []*QueuedJob
	for rows.Next() {
		e := &QueuedJob{}
		if err := rows.Scan(&e.JobID, &e.UserID, &e.EstimatedMinutes, &e.PriorityScore, &e.AccumulatedHours); err != nil {
			return nil, fmt.Errorf("failed to scan queued job: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (o *JobOperations) GetPrintingJob(ctx context.Context) (*PrintJob, error) {
	j := &PrintJob{}
	err := o.db.QueryRowContext(ctx, GetPrintingJob).Scan(
		&j.ID, &j.UserID, &j.Title, &j.FileRef, &j.Status,
		&j.EstimatedMinutes, &j.ActualMinutes, &j.RawCost, &j.PriorityScore,
		&j.ReceiptNumber, &j.IsPaid, &j.AdminNotes,
		&j.CreatedAt, &j.ApprovedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get printing job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := o.db.QueryRowContext(ctx, CountActiveJobsByUser, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return count, nil
}

func (o *JobOperations) UpdatePriority(ctx context.Context, id int64, score float64) error {
	_, err := o.db.ExecContext(ctx, UpdateJobPriority, score, id)
	if err != nil {
		return fmt.Errorf("failed to update priority: %w", err)
	}
	return nil
}

// Approve moves a pending_review job into the queue. It affects zero rows
// when the job is no longer pending_review.
func (o *JobOperations) Approve(ctx context.Context, id int64, receipt string, rawCost float64, estimatedMinutes int, adminNotes string, isPaid bool, priorityScore float64) (int64, error) {
	result, err := o.db.ExecContext(ctx, ApproveJob,
		receipt, rawCost, estimatedMinutes, adminNotes, isPaid, priorityScore, id)
	if err != nil {
		return 0, fmt.Errorf("failed to approve job: %w", err)
	}
	return result.RowsAffected()
}

func (o *JobOperations) Reject(ctx context.Context, id int64, adminNotes string) (int64, error) {
	result, err := o.db.ExecContext(ctx, RejectJob, adminNotes, id)
	if err != nil {
		return 0, fmt.Errorf("failed to reject job: %w", err)
	}
	return result.RowsAffected()
}

// Start claims the printer for a queued job. The statement only succeeds
// when no other job is printing, so two concurrent starts cannot both win.
func (o *JobOperations) Start(ctx context.Context, id int64) (int64, error) {
	result, err := o.db.ExecContext(ctx, StartJob, id)
	if err != nil {
		return 0, fmt.Errorf("failed to start job: %w", err)
	}
	return result.RowsAffected()
}

func (o *JobOperations) Complete(ctx context.Context, id int64, actualMinutes int, isPaid *bool) (int64, error) {
	result, err := o.db.ExecContext(ctx, CompleteJob, actualMinutes, isPaid, id)
	if err != nil {
		return 0, fmt.Errorf("failed to complete job: %w", err)
	}
	return result.RowsAffected()
}

func (o *JobOperations) Fail(ctx context.Context, id int64, adminNotes string) (int64, error) {
	result, err := o.db.ExecContext(ctx, FailJob, adminNotes, id)
	if err != nil {
		return 0, fmt.Errorf("failed to fail job: %w", err)
	}
	return result.RowsAffected()
}

func (o *JobOperations) ListJobs(ctx context.Context, filter JobFilter) ([]*PrintJob, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.FromDate != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.FromDate)
	}
	if filter.ToDate != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.ToDate)
	}

	query := "SELECT " + jobColumns + " FROM print_jobs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := 100
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (o *JobOperations) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := o.db.QueryContext(ctx, CountJobsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (o *JobOperations) GetJobsForArchival(ctx context.Context, olderThanDays int) ([]*PrintJob, error) {
	modifier := fmt.Sprintf("-%d days", olderThanDays)
	rows, err := o.db.QueryContext(ctx, GetJobsForArchival, modifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs for archival: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (o *JobOperations) DeleteJob(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx, DeleteJob, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func scanJobs(rows *sql.Rows) ([]*PrintJob, error) {
	var jobs []*PrintJob
	for rows.Next() {
		j := &PrintJob{}
		if err := rows.Scan(
			&j.ID, &j.UserID, &j.Title, &j.FileRef, &j.Status,
			&j.EstimatedMinutes, &j.ActualMinutes, &j.RawCost, &j.PriorityScore,
			&j.ReceiptNumber, &j.IsPaid, &j.AdminNotes,
			&j.CreatedAt, &j.ApprovedAt, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type SettingsOperations struct {
	db *sql.DB
}

func (o *SettingsOperations) GetSetting(ctx context.Context, key string) (*Setting, error) {
	s := &Setting{Key: key}
	err := o.db.QueryRowContext(ctx, GetSetting, key).Scan(&s.Value, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return s, nil
}

func (o *SettingsOperations) SetSetting(ctx context.Context, key, value string) error {
	_, err := o.db.ExecContext(ctx, SetSetting, key, value, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

func (o *SettingsOperations) DeleteSetting(ctx context.Context, key string) error {
	_, err := o.db.ExecContext(ctx, DeleteSetting, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

type WebhookOperations struct {
	db *sql.DB
}

func (o *WebhookOperations) CreateWebhook(ctx context.Context, w *Webhook) error {
	result, err := o.db.ExecContext(ctx, InsertWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get webhook id: %w", err)
	}
	w.ID = id
	return nil
}

func (o *WebhookOperations) GetWebhookByID(ctx context.Context, id int64) (*Webhook, error) {
	w := &Webhook{}
	err := o.db.QueryRowContext(ctx, GetWebhookByID, id).Scan(
		&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return w, nil
}

func (o *WebhookOperations) ListWebhooks(ctx context.Context) ([]*Webhook, error) {
	rows, err := o.db.QueryContext(ctx, ListWebhooks)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	return scanWebhooks(rows)
}

func (o *WebhookOperations) ListActiveWebhooksForEvent(ctx context.Context, event string) ([]*Webhook, error) {
	pattern := "%\"" + event + "\"%"
	rows, err := o.db.QueryContext(ctx, ListWebhooksForEvent, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for event: %w", err)
	}
	defer rows.Close()

	return scanWebhooks(rows)
}

func scanWebhooks(rows *sql.Rows) ([]*Webhook, error) {
	var webhooks []*Webhook
	for rows.Next() {
		w := &Webhook{}
		if err := rows.Scan(
			&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (o *WebhookOperations) UpdateWebhook(ctx context.Context, w *Webhook) error {
	_, err := o.db.ExecContext(ctx, UpdateWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}

func (o *WebhookOperations) DeleteWebhook(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx, DeleteWebhook, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

type AuditOperations struct {
	db *sql.DB
}

func (o *AuditOperations) CreateAuditLog(ctx context.Context, entry *AuditLog) error {
	result, err := o.db.ExecContext(ctx, InsertAuditLog,
		entry.Action, entry.EntityType, entry.EntityID, entry.DetailsJSON, entry.IPAddress)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit log id: %w", err)
	}
	entry.ID = id
	return nil
}

func (o *AuditOperations) ListAuditLogs(ctx context.Context, limit, offset int) ([]*AuditLog, error) {
	rows, err := o.db.QueryContext(ctx, ListAuditLog, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*AuditLog
	for rows.Next() {
		entry := &AuditLog{}
		if err := rows.Scan(
			&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID,
			&entry.DetailsJSON, &entry.IPAddress, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

type ArchiveOperations struct {
	db *sql.DB
}

func (o *ArchiveOperations) CreateArchivedJob(ctx context.Context, a *ArchivedJob) error {
	result, err := o.db.ExecContext(ctx, InsertArchivedJob,
		a.OriginalJobID, a.UserID, a.Status, a.ReceiptNumber, a.RawCost, a.ActualMinutes)
	if err != nil {
		return fmt.Errorf("failed to create archived job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get archived job id: %w", err)
	}
	a.ID = id
	return nil
}

func (o *ArchiveOperations) ListArchivedJobs(ctx context.Context, limit, offset int) ([]*ArchivedJob, error) {
	rows, err := o.db.QueryContext(ctx, ListArchivedJobs, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived jobs: %w", err)
	}
	defer rows.Close()

	var archived []*ArchivedJob
	for rows.Next() {
		a := &ArchivedJob{}
		if err := rows.Scan(&a.ID, &a.OriginalJobID, &a.UserID, &a.Status,
			&a.ReceiptNumber, &a.RawCost, &a.ActualMinutes, &a.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived job: %w", err)
		}
		archived = append(archived, a)
	}
	return archived, rows.Err()
}
