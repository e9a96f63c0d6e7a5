package worker

import (
	"context"
	"log"
	"time"
)

// SweepJob is one idempotent cleanup pass. Jobs run on their own tickers
// and may run concurrently in any number of replicas: each pass is a
// conditional transition guarded by a timestamp, so overlapping runs are
// harmless.
type SweepJob struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) (int64, error)
}

// Sweeper runs a set of sweep jobs until its context is cancelled.
type Sweeper struct {
	jobs   []SweepJob
	logger *log.Logger
}

func NewSweeper(logger *log.Logger, jobs ...SweepJob) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{jobs: jobs, logger: logger}
}

// Run blocks until ctx is cancelled. Each job gets its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	done := make(chan struct{})
	for _, job := range s.jobs {
		go func(job SweepJob) {
			s.runJob(ctx, job)
			done <- struct{}{}
		}(job)
	}
	for range s.jobs {
		<-done
	}
}

func (s *Sweeper) runJob(ctx context.Context, job SweepJob) {
	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()

	s.logger.Printf("sweep %s started interval=%s", job.Name, job.Every)
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("sweep %s stopping", job.Name)
			return
		case <-ticker.C:
			n, err := job.Run(ctx)
			if err != nil {
				s.logger.Printf("sweep %s error: %v", job.Name, err)
				continue
			}
			if n > 0 {
				s.logger.Printf("sweep %s reaped=%d", job.Name, n)
			}
		}
	}
}
