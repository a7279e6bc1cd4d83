package main

import (
	"context"
	"sync"
	"time"

	"tillcore/internal/core/clock"
	appctx "tillcore/internal/core/context"
	"tillcore/pkg/logger"
)

// Sweeper expires lapsed holds.
type Sweeper interface {
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
}

// Relay delivers and maintains the outbox.
type Relay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Cleaner drops expired idempotency keys.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Locker runs a job under a cluster-wide lease.
type Locker interface {
	Run(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// Deps are the collaborators of the worker.
type Deps struct {
	Holds       Sweeper
	Outbox      Relay
	Idempotency Cleaner
	Locker      Locker
	Clock       clock.Clock
}

// Intervals configure how often each job runs. Zero values use defaults.
type Intervals struct {
	Sweep       time.Duration
	Outbox      time.Duration
	Maintenance time.Duration
	Retention   time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	if iv.Sweep <= 0 {
		iv.Sweep = time.Minute
	}
	if iv.Outbox <= 0 {
		iv.Outbox = 500 * time.Millisecond
	}
	if iv.Maintenance <= 0 {
		iv.Maintenance = time.Hour
	}
	if iv.Retention <= 0 {
		iv.Retention = 7 * 24 * time.Hour
	}
	return iv
}

const sweepLease = "hold-sweep"

// Worker runs the periodic background jobs.
type Worker struct {
	deps      Deps
	intervals Intervals
	log       *logger.Logger
}

// NewWorker creates a worker.
func NewWorker(deps Deps, intervals Intervals, log *logger.Logger) *Worker {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	return &Worker{deps: deps, intervals: intervals.withDefaults(), log: log.WithComponent("worker")}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	loops := []struct {
		every time.Duration
		job   func(ctx context.Context)
	}{
		{w.intervals.Sweep, w.sweep},
		{w.intervals.Outbox, w.relay},
		{w.intervals.Maintenance, w.maintain},
	}

	for _, l := range loops {
		wg.Add(1)
		go func(every time.Duration, job func(ctx context.Context)) {
			defer wg.Done()
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					job(appctx.WithTrace(ctx, appctx.NewTraceContext()))
				}
			}
		}(l.every, l.job)
	}

	wg.Wait()
}

func (w *Worker) sweep(ctx context.Context) {
	ran, err := w.deps.Locker.Run(ctx, sweepLease, w.intervals.Sweep, func(ctx context.Context) error {
		n, err := w.deps.Holds.ExpireSweep(ctx, w.deps.Clock.Now())
		if n > 0 {
			w.log.WithContext(ctx).Infow("expired held sales", "count", n)
		}
		return err
	})
	if err != nil {
		w.log.WithContext(ctx).Errorw("hold sweep failed", "error", err)
		return
	}
	if !ran {
		w.log.WithContext(ctx).Debugw("hold sweep skipped, lease held elsewhere")
	}
}

func (w *Worker) relay(ctx context.Context) {
	n, err := w.deps.Outbox.ProcessBatch(ctx)
	if err != nil {
		w.log.WithContext(ctx).Errorw("outbox relay failed", "error", err)
		return
	}
	if n > 0 {
		w.log.WithContext(ctx).Debugw("relayed outbox batch", "count", n)
	}
}

func (w *Worker) maintain(ctx context.Context) {
	log := w.log.WithContext(ctx)

	if n, err := w.deps.Outbox.MoveToDLQ(ctx); err != nil {
		log.Errorw("outbox dead-letter move failed", "error", err)
	} else if n > 0 {
		log.Warnw("moved failed outbox messages to DLQ", "count", n)
	}

	if n, err := w.deps.Outbox.PurgePublished(ctx, w.intervals.Retention); err != nil {
		log.Errorw("outbox purge failed", "error", err)
	} else if n > 0 {
		log.Infow("purged published outbox messages", "count", n)
	}

	if n, err := w.deps.Idempotency.CleanupExpired(ctx); err != nil {
		log.Errorw("idempotency cleanup failed", "error", err)
	} else if n > 0 {
		log.Infow("cleaned up idempotency keys", "count", n)
	}
}
