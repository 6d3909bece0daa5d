package archive

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/orrn/printfair/internal/db"
)

// Archiver moves terminal jobs (completed, rejected, failed) older than the
// retention window into the archive table, keeping the live queue tables
// small. Active jobs are never touched.
type Archiver struct {
	store       *db.Store
	archiveDays int
	stopCh      chan struct{}
	mu          sync.Mutex
}

func NewArchiver(store *db.Store, archiveDays int) *Archiver {
	if archiveDays <= 0 {
		archiveDays = 90
	}
	return &Archiver{
		store:       store,
		archiveDays: archiveDays,
		stopCh:      make(chan struct{}),
	}
}

func (a *Archiver) Start() {
	go a.runDaily()
}

func (a *Archiver) Stop() {
	close(a.stopCh)
}

func (a *Archiver) runDaily() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			if _, err := a.RunArchive(context.Background()); err != nil {
				log.Printf("[archive] pass failed: %v", err)
			}
		}
	}
}

// RunArchive performs one archival pass and returns the number of jobs
// moved. Passes are serialized; a failure on one job skips it and continues.
func (a *Archiver) RunArchive(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	jobs, err := a.store.Jobs.GetJobsForArchival(ctx, a.archiveDays)
	if err != nil {
		return 0, fmt.Errorf("failed to find jobs for archival: %w", err)
	}

	moved := 0
	for _, job := range jobs {
		archived := &db.ArchivedJob{
			OriginalJobID: job.ID,
			UserID:        job.UserID,
			Status:        job.Status,
			ReceiptNumber: job.ReceiptNumber,
			RawCost:       job.RawCost,
			ActualMinutes: job.ActualMinutes,
		}
		if err := a.store.Archive.CreateArchivedJob(ctx, archived); err != nil {
			log.Printf("[archive] failed to archive job %d: %v", job.ID, err)
			continue
		}
		if err := a.store.Jobs.DeleteJob(ctx, job.ID); err != nil {
			log.Printf("[archive] failed to delete archived job %d: %v", job.ID, err)
			continue
		}
		moved++
	}

	if moved > 0 {
		log.Printf("[archive] moved %d jobs older than %d days", moved, a.archiveDays)
	}
	return moved, nil
}
