package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/orrn/printfair/internal/db"
)

type JobStore interface {
	CreateJob(ctx context.Context, j *db.PrintJob) error
	GetJobByID(ctx context.Context, id int64) (*db.PrintJob, error)
	CountActiveByUser(ctx context.Context, userID string) (int64, error)
	GetPrintingJob(ctx context.Context) (*db.PrintJob, error)
	Approve(ctx context.Context, id int64, receipt string, rawCost float64, estimatedMinutes int, adminNotes string, isPaid bool, priorityScore float64) (int64, error)
	Reject(ctx context.Context, id int64, adminNotes string) (int64, error)
	Start(ctx context.Context, id int64) (int64, error)
	Complete(ctx context.Context, id int64, actualMinutes int, isPaid *bool) (int64, error)
	Fail(ctx context.Context, id int64, adminNotes string) (int64, error)
}

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*db.User, error)
	AddPrintTime(ctx context.Context, id string, hours float64) error
}

type PriorityEngine interface {
	RecalculateAll(ctx context.Context) (RecalcSummary, error)
}

// EventSink receives job lifecycle events. Implementations must not block.
type EventSink interface {
	SendJobEvent(event string, job *db.PrintJob)
}

// FileCleaner is signalled when a job reaches a terminal state and its
// uploaded model file is no longer needed.
type FileCleaner interface {
	Remove(ctx context.Context, fileRef string) error
}

const (
	EventJobSubmitted = "job_submitted"
	EventJobApproved  = "job_approved"
	EventJobRejected  = "job_rejected"
	EventJobStarted   = "job_started"
	EventJobCompleted = "job_completed"
	EventJobFailed    = "job_failed"
)

// Lifecycle validates and performs every transition a print job can undergo.
// All status checks ride on conditional store updates, so a transition that
// lost a race affects zero rows and is reported as a state conflict instead
// of silently clobbering the record.
type Lifecycle struct {
	jobs          JobStore
	users         UserStore
	guard         *AdmissionGuard
	recalc        PriorityEngine
	events        EventSink
	files         FileCleaner
	receiptPrefix string
}

func NewLifecycle(jobs JobStore, users UserStore, recalc PriorityEngine, events EventSink, files FileCleaner, receiptPrefix string) *Lifecycle {
	if receiptPrefix == "" {
		receiptPrefix = "PRT"
	}
	return &Lifecycle{
		jobs:          jobs,
		users:         users,
		guard:         NewAdmissionGuard(jobs),
		recalc:        recalc,
		events:        events,
		files:         files,
		receiptPrefix: receiptPrefix,
	}
}

type SubmitInput struct {
	UserID  string
	Title   string
	FileRef string
}

type ApproveInput struct {
	RawCost          float64
	EstimatedMinutes int
	AdminNotes       string
	IsPaid           bool
}

type CompleteInput struct {
	ActualMinutes int
	IsPaid        *bool
}

// Submit creates a job in pending_review for the given user, refusing when
// the user already has an active job.
func (l *Lifecycle) Submit(ctx context.Context, in SubmitInput) (*db.PrintJob, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	if _, err := l.users.GetUserByID(ctx, in.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, in.UserID)
		}
		return nil, fmt.Errorf("%w: fetching user: %v", ErrDependency, err)
	}

	if err := l.guard.CanSubmit(ctx, in.UserID); err != nil {
		return nil, err
	}

	job := &db.PrintJob{
		UserID:  in.UserID,
		Title:   in.Title,
		FileRef: in.FileRef,
	}
	if err := l.jobs.CreateJob(ctx, job); err != nil {
		// The admission check races with concurrent submits; the unique
		// index on active jobs is what actually decides the loser.
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w (user %s)", ErrAdmissionConflict, in.UserID)
		}
		return nil, fmt.Errorf("%w: creating job: %v", ErrDependency, err)
	}

	job, err := l.reload(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	l.emit(EventJobSubmitted, job)
	return job, nil
}

// Approve prices a pending_review job and moves it into the queue, assigning
// the receipt number and the initial priority score. The queue-wide
// recalculation it triggers is logged-and-continue: a stale score never
// rolls back an approval.
func (l *Lifecycle) Approve(ctx context.Context, jobID int64, in ApproveInput) (*db.PrintJob, error) {
	if in.RawCost <= 0 {
		return nil, fmt.Errorf("%w: raw cost must be positive", ErrValidation)
	}
	if in.EstimatedMinutes <= 0 {
		return nil, fmt.Errorf("%w: estimated duration must be positive", ErrValidation)
	}

	job, err := l.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}

	owner, err := l.users.GetUserByID(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, job.UserID)
		}
		return nil, fmt.Errorf("%w: fetching owner: %v", ErrDependency, err)
	}

	receipt := ReceiptNumber(l.receiptPrefix, time.Now())
	score := Score(owner.AccumulatedHours, in.EstimatedMinutes)

	affected, err := l.jobs.Approve(ctx, jobID, receipt, in.RawCost, in.EstimatedMinutes, in.AdminNotes, in.IsPaid, score)
	if err != nil {
		return nil, fmt.Errorf("%w: approving job: %v", ErrDependency, err)
	}
	if affected == 0 {
		return nil, l.conflict(ctx, jobID, "approve", StatusPendingReview)
	}

	l.triggerRecalc(ctx, "approve")

	job, err = l.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	l.emit(EventJobApproved, job)
	return job, nil
}

// Reject declines a pending_review job.
func (l *Lifecycle) Reject(ctx context.Context, jobID int64, adminNotes string) (*db.PrintJob, error) {
	affected, err := l.jobs.Reject(ctx, jobID, adminNotes)
	if err != nil {
		return nil, fmt.Errorf("%w: rejecting job: %v", ErrDependency, err)
	}
	if affected == 0 {
		return nil, l.conflict(ctx, jobID, "reject", StatusPendingReview)
	}

	job, err := l.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	l.emit(EventJobRejected, job)
	return job, nil
}

// Start puts a queued job on the printer. There is one physical printer, so
// the store-level guard refuses when any other job is already printing.
func (l *Lifecycle) Start(ctx context.Context, jobID int64) (*db.PrintJob, error) {
	affected, err := l.jobs.Start(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: starting job: %v", ErrDependency, err)
	}
	if affected == 0 {
		job, err := l.reload(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if JobStatus(job.Status) != StatusQueued {
			return nil, fmt.Errorf("%w: cannot start job %d in status %s", ErrStateConflict, jobID, job.Status)
		}
		if printing, err := l.jobs.GetPrintingJob(ctx); err == nil {
			return nil, fmt.Errorf("%w: job %d is already printing", ErrStateConflict, printing.ID)
		}
		return nil, fmt.Errorf("%w: cannot start job %d", ErrStateConflict, jobID)
	}

	job, err := l.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	l.emit(EventJobStarted, job)
	return job, nil
}

// Complete finishes a printing job, credits the owner's accumulated print
// time with the actual duration, releases the stored model file, and
// triggers a queue recalculation.
func (l *Lifecycle) Complete(ctx context.Context, jobID int64, in CompleteInput) (*db.PrintJob, error) {
	if in.ActualMinutes < 0 {
		return nil, fmt.Errorf("%w: actual duration must be non-negative", ErrValidation)
	}

	// Captured before the update clears it.
	before, err := l.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}

	affected, err := l.jobs.Complete(ctx, jobID, in.ActualMinutes, in.IsPaid)
	if err != nil {
		return nil, fmt.Errorf("%w: completing job: %v", ErrDependency, err)
	}
	if affected == 0 {
		return nil, l.conflict(ctx, jobID, "complete", StatusPrinting)
	}

	if err := l.users.AddPrintTime(ctx, before.UserID, float64(in.ActualMinutes)/60); err != nil {
		log.Printf("[lifecycle] failed to credit print time for user %s: %v", before.UserID, err)
	}

	l.cleanupFile(ctx, before.FileRef)
	l.triggerRecalc(ctx, "complete")

	job, err := l.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	l.emit(EventJobCompleted, job)
	return job, nil
}

// Fail marks a printing job as failed. Durations and cost are zeroed, the
// model file is released, and the owner's accumulated time is left alone:
// failed prints are free retries.
func (l *Lifecycle) Fail(ctx context.Context, jobID int64, adminNotes string) (*db.PrintJob, error) {
	before, err := l.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}

	affected, err := l.jobs.Fail(ctx, jobID, adminNotes)
	if err != nil {
		return nil, fmt.Errorf("%w: failing job: %v", ErrDependency, err)
	}
	if affected == 0 {
		return nil, l.conflict(ctx, jobID, "fail", StatusPrinting)
	}

	l.cleanupFile(ctx, before.FileRef)

	job, err := l.reload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	l.emit(EventJobFailed, job)
	return job, nil
}

func (l *Lifecycle) reload(ctx context.Context, jobID int64) (*db.PrintJob, error) {
	job, err := l.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %d", ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("%w: fetching job %d: %v", ErrDependency, jobID, err)
	}
	return job, nil
}

// conflict explains why a guarded transition affected zero rows.
func (l *Lifecycle) conflict(ctx context.Context, jobID int64, op string, want JobStatus) error {
	job, err := l.reload(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s job %d in status %s (requires %s)",
		ErrStateConflict, op, jobID, job.Status, want)
}

func (l *Lifecycle) triggerRecalc(ctx context.Context, cause string) {
	if l.recalc == nil {
		return
	}
	if summary, err := l.recalc.RecalculateAll(ctx); err != nil {
		log.Printf("[lifecycle] priority recalculation after %s failed: %v (updated=%d failed=%d)",
			cause, err, summary.Updated, summary.Failed)
	}
}

func (l *Lifecycle) cleanupFile(ctx context.Context, fileRef string) {
	if l.files == nil || fileRef == "" {
		return
	}
	if err := l.files.Remove(ctx, fileRef); err != nil {
		log.Printf("[lifecycle] failed to remove file %s: %v", fileRef, err)
	}
}

func (l *Lifecycle) emit(event string, job *db.PrintJob) {
	if l.events == nil {
		return
	}
	l.events.SendJobEvent(event, job)
}

// Guard exposes the admission guard for callers that want the pre-check
// without submitting.
func (l *Lifecycle) Guard() *AdmissionGuard {
	return l.guard
}
