package core

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/orrn/printfair/internal/db"
)

type QueueStore interface {
	ListQueuedWithOwner(ctx context.Context) ([]*db.QueuedJob, error)
	UpdatePriority(ctx context.Context, id int64, score float64) error
}

// RecalcSummary reports the outcome of one recalculation pass.
type RecalcSummary struct {
	Updated   int
	Unchanged int
	Failed    int
}

// Recalculator recomputes the priority score of every queued job from the
// owner's current accumulated print time. It runs on demand after the two
// events that can invalidate queue ordering (approval and completion);
// there is no polling loop.
type Recalculator struct {
	store QueueStore
}

func NewRecalculator(store QueueStore) *Recalculator {
	return &Recalculator{store: store}
}

// RecalculateAll writes back only scores that differ from the stored value,
// so a pass over an unchanged queue performs zero writes. Per-job updates
// run independently; one failed write is logged and counted without
// aborting the rest of the pass.
func (r *Recalculator) RecalculateAll(ctx context.Context) (RecalcSummary, error) {
	var summary RecalcSummary

	entries, err := r.store.ListQueuedWithOwner(ctx)
	if err != nil {
		return summary, fmt.Errorf("%w: listing queued jobs: %v", ErrDependency, err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(e *db.QueuedJob) {
			defer wg.Done()

			newScore := Score(e.AccumulatedHours, e.EstimatedMinutes)
			if newScore == e.PriorityScore {
				mu.Lock()
				summary.Unchanged++
				mu.Unlock()
				return
			}

			if err := r.store.UpdatePriority(ctx, e.JobID, newScore); err != nil {
				log.Printf("[recalc] failed to update job %d: %v", e.JobID, err)
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return
			}

			mu.Lock()
			summary.Updated++
			mu.Unlock()
		}(entry)
	}
	wg.Wait()

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %d of %d priority updates failed",
			ErrDependency, summary.Failed, len(entries))
	}
	return summary, nil
}
