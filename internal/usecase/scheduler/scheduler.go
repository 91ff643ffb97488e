package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
)

// Config holds the scheduler's loop parameters
type Config struct {
	// Interval between ticks.
	Interval time.Duration
	// RetryBatchSize bounds how many due records one sweep resumes.
	RetryBatchSize int
}

// Monitor detects new qualifying inbound transfers.
type Monitor interface {
	Check(ctx context.Context) []domain.IncomingTransfer
}

// Workflow processes fresh transfers and resumes retry-pending records.
type Workflow interface {
	Process(ctx context.Context, transfer domain.IncomingTransfer) error
	Resume(ctx context.Context, rec *domain.TransferRecord) error
}

// Scheduler drives the monitor and the retry sweep on a fixed interval.
// All processing within a tick is sequential, one transfer at a time; the
// funding wallet's balance is never touched by two attempts concurrently.
type Scheduler struct {
	monitor Monitor
	engine  Workflow
	repo    domain.TransferRepository
	cfg     Config
}

// New creates a new scheduler
func New(monitor Monitor, engine Workflow, repo domain.TransferRepository, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.RetryBatchSize <= 0 {
		cfg.RetryBatchSize = 10
	}
	return &Scheduler{monitor: monitor, engine: engine, repo: repo, cfg: cfg}
}

// Run executes an immediate first pass, then ticks until the context is
// cancelled. One tick's failure never prevents the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one monitor pass and one retry sweep. Panics are contained so
// the loop survives a misbehaving collaborator.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: tick panicked: %v", r)
		}
	}()

	// New transfers first, in detection order.
	for _, transfer := range s.monitor.Check(ctx) {
		if err := s.engine.Process(ctx, transfer); err != nil {
			// Already routed through the retry contract; one
			// transfer's failure never aborts the batch.
			log.Printf("scheduler: transfer %s attempt failed: %v", transfer.Signature, err)
		}
	}

	// Then the retry sweep, oldest first.
	due, err := s.repo.FindDueForRetry(ctx, s.cfg.RetryBatchSize)
	if err != nil {
		log.Printf("scheduler: retry sweep query failed: %v", err)
		return
	}
	for _, rec := range due {
		if err := s.engine.Resume(ctx, rec); err != nil {
			log.Printf("scheduler: retry of %s failed: %v", rec.IncomingSignature, err)
		}
	}
}
