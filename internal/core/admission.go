package core

import (
	"context"
	"fmt"
)

type ActiveJobCounter interface {
	CountActiveByUser(ctx context.Context, userID string) (int64, error)
}

// AdmissionGuard enforces the one-active-job-per-user rule at submission
// time. The check-then-create sequence is racy on its own; the store's
// partial unique index is the backstop that closes it.
type AdmissionGuard struct {
	jobs ActiveJobCounter
}

func NewAdmissionGuard(jobs ActiveJobCounter) *AdmissionGuard {
	return &AdmissionGuard{jobs: jobs}
}

// CanSubmit returns nil when userID may submit a job, ErrAdmissionConflict
// when an active job already exists, and ErrDependency when the store
// cannot answer.
func (g *AdmissionGuard) CanSubmit(ctx context.Context, userID string) error {
	count, err := g.jobs.CountActiveByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: counting active jobs: %v", ErrDependency, err)
	}
	if count > 0 {
		return fmt.Errorf("%w (user %s)", ErrAdmissionConflict, userID)
	}
	return nil
}
