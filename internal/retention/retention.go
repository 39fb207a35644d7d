// Package retention runs the periodic expiry sweep against the storage
// backend.
//
// The scheduler is a single fire-and-forget background task tied to the
// process lifetime: it ticks on a fixed interval, invokes Expire with the
// configured retention, logs and swallows any failure, and keeps ticking.
// It never blocks ingestion or query paths and its failure never crashes
// the service.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/xtxerr/metricsd/config"
	"github.com/xtxerr/metricsd/internal/logging"
	"github.com/xtxerr/metricsd/internal/storage"
)

// Scheduler periodically expires old records.
type Scheduler struct {
	backend   storage.Backend
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger

	// sweepTimeout bounds one expiry call.
	sweepTimeout time.Duration
}

// New creates a Scheduler. Zero interval and retention select the
// defaults (24h sweep, 30 day retention); tests inject short values.
func New(backend storage.Backend, interval, retention time.Duration) *Scheduler {
	if interval <= 0 {
		interval = config.DefaultCleanupInterval
	}
	if retention <= 0 {
		retention = config.DefaultRetentionPeriod
	}
	return &Scheduler{
		backend:      backend,
		interval:     interval,
		retention:    retention,
		log:          logging.Component("retention"),
		sweepTimeout: config.DefaultQueryTimeout,
	}
}

// Run ticks until ctx is cancelled. An error during one cycle is logged
// and swallowed; the next cycle still fires on schedule. Run always
// returns nil so a task group treats cancellation as a clean stop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("retention scheduler started",
		"interval", s.interval, "retention", s.retention)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("retention scheduler stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one expiry cycle under a bounded context.
func (s *Scheduler) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.sweepTimeout)
	defer cancel()

	deleted, err := s.backend.Expire(sweepCtx, s.retention)
	if err != nil {
		// Retried on the next scheduled tick, not immediately.
		s.log.Error("retention sweep failed", "error", err)
		return
	}

	if deleted > 0 {
		s.log.Info("retention sweep finished", "deleted", deleted)
	}
}
