package db

import (
	"time"
)

type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	AccumulatedHours float64   `json:"accumulated_print_time"`
	CreatedAt        time.Time `json:"created_at"`
}

type PrintJob struct {
	ID               int64      `json:"id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	FileRef          string     `json:"file_ref"`
	Status           string     `json:"status"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	ActualMinutes    int        `json:"actual_minutes"`
	RawCost          float64    `json:"raw_cost"`
	PriorityScore    float64    `json:"priority_score"`
	ReceiptNumber    string     `json:"receipt_number"`
	IsPaid           bool       `json:"is_paid"`
	AdminNotes       string     `json:"admin_notes"`
	CreatedAt        time.Time  `json:"created_at"`
	ApprovedAt       *time.Time `json:"approved_at"`
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
}

// QueuedJob is a queued print job joined with its owner's accumulated
// print time, the two inputs the priority score is computed from.
type QueuedJob struct {
	JobID            int64
	UserID           string
	EstimatedMinutes int
	PriorityScore    float64
	AccumulatedHours float64
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Webhook struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Secret     string    `json:"secret,omitempty"`
	EventsJSON string    `json:"events_json"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditLog struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    int64     `json:"entity_id"`
	DetailsJSON string    `json:"details_json"`
	IPAddress   string    `json:"ip_address"`
	CreatedAt   time.Time `json:"created_at"`
}

type ArchivedJob struct {
	ID            int64     `json:"id"`
	OriginalJobID int64     `json:"original_job_id"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	ReceiptNumber string    `json:"receipt_number"`
	RawCost       float64   `json:"raw_cost"`
	ActualMinutes int       `json:"actual_minutes"`
	ArchivedAt    time.Time `json:"archived_at"`
}

type JobFilter struct {
	UserID   string
	Status   string
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
