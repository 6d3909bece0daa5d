package db

const (
	InsertUser = `
		INSERT INTO users (id, name, email)
		VALUES (?, ?, ?)
	`

	GetUserByID = `
		SELECT id, name, email, accumulated_print_time, created_at
		FROM users WHERE id = ?
	`

	GetUserByEmail = `
		SELECT id, name, email, accumulated_print_time, created_at
		FROM users WHERE email = ?
	`

	ListUsers = `
		SELECT id, name, email, accumulated_print_time, created_at
		FROM users ORDER BY name ASC
	`

	AddUserPrintTime = `
		UPDATE users SET accumulated_print_time = accumulated_print_time + ? WHERE id = ?
	`
)

const (
	jobColumns = `id, user_id, title, file_ref, status, estimated_minutes, actual_minutes, raw_cost, priority_score, receipt_number, is_paid, admin_notes, created_at, approved_at, started_at, completed_at`

	InsertJob = `
		INSERT INTO print_jobs (user_id, title, file_ref, status)
		VALUES (?, ?, ?, 'pending_review')
	`

	GetJobByID = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE id = ?
	`

	ListQueuedJobs = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE status = 'queued'
		ORDER BY priority_score DESC, created_at ASC
	`

	// Queue entries joined with the owner's accumulated print time, the
	// inputs the recalculation pass feeds to the karma score.
	ListQueuedJobsWithOwner = `
		SELECT j.id, j.user_id, j.estimated_minutes, j.priority_score, u.accumulated_print_time
		FROM print_jobs j
		JOIN users u ON u.id = j.user_id
		WHERE j.status = 'queued'
		ORDER BY j.created_at ASC
	`

	GetPrintingJob = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE status = 'printing' LIMIT 1
	`

	CountActiveJobsByUser = `
		SELECT COUNT(*) FROM print_jobs
		WHERE user_id = ? AND status IN ('pending_review', 'queued', 'printing')
	`

	UpdateJobPriority = `
		UPDATE print_jobs SET priority_score = ? WHERE id = ?
	`

	// Transition updates are guarded by the expected prior status so a
	// concurrent transition on the same job affects zero rows instead of
	// clobbering it.
	ApproveJob = `
		UPDATE print_jobs
		SET status = 'queued', receipt_number = ?, raw_cost = ?, estimated_minutes = ?,
		    admin_notes = ?, is_paid = ?, priority_score = ?, approved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending_review'
	`

	RejectJob = `
		UPDATE print_jobs
		SET status = 'rejected', raw_cost = 0, admin_notes = ?
		WHERE id = ? AND status = 'pending_review'
	`

	// The NOT EXISTS guard closes the race between two admins starting two
	// jobs at once: at most one printing row can ever exist.
	StartJob = `
		UPDATE print_jobs
		SET status = 'printing', started_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'queued'
		  AND NOT EXISTS (SELECT 1 FROM print_jobs WHERE status = 'printing')
	`

	CompleteJob = `
		UPDATE print_jobs
		SET status = 'completed', actual_minutes = ?, is_paid = COALESCE(?, is_paid),
		    file_ref = '', completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'printing'
	`

	FailJob = `
		UPDATE print_jobs
		SET status = 'failed', estimated_minutes = 0, actual_minutes = 0, raw_cost = 0,
		    is_paid = 0, admin_notes = ?, file_ref = ''
		WHERE id = ? AND status = 'printing'
	`

	CountJobsByStatus = `
		SELECT status, COUNT(*) FROM print_jobs GROUP BY status
	`

	DeleteJob = `DELETE FROM print_jobs WHERE id = ?`

	GetJobsForArchival = `
		SELECT ` + jobColumns + `
		FROM print_jobs
		WHERE status IN ('completed', 'rejected', 'failed')
		  AND created_at < datetime('now', ?)
	`
)

const (
	GetSetting = `SELECT value, updated_at FROM settings WHERE key = ?`

	SetSetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP
	`

	DeleteSetting = `DELETE FROM settings WHERE key = ?`
)

const (
	InsertWebhook = `
		INSERT INTO webhooks (name, url, secret, events_json, enabled)
		VALUES (?, ?, ?, ?, ?)
	`

	GetWebhookByID = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE id = ?
	`

	ListWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks ORDER BY name ASC
	`

	ListWebhooksForEvent = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE enabled = 1 AND events_json LIKE ?
	`

	UpdateWebhook = `
		UPDATE webhooks SET name = ?, url = ?, secret = ?, events_json = ?, enabled = ? WHERE id = ?
	`

	DeleteWebhook = `DELETE FROM webhooks WHERE id = ?`
)

const (
	InsertAuditLog = `
		INSERT INTO audit_log (action, entity_type, entity_id, details_json, ip_address)
		VALUES (?, ?, ?, ?, ?)
	`

	ListAuditLog = `
		SELECT id, action, entity_type, entity_id, details_json, ip_address, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT ? OFFSET ?
	`
)

const (
	InsertArchivedJob = `
		INSERT INTO archive_jobs (original_job_id, user_id, status, receipt_number, raw_cost, actual_minutes)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	ListArchivedJobs = `
		SELECT id, original_job_id, user_id, status, receipt_number, raw_cost, actual_minutes, archived_at
		FROM archive_jobs ORDER BY archived_at DESC LIMIT ? OFFSET ?
	`
)
