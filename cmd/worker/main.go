// Package main is the entry point for the dairyflow background worker.
// Every interval it visits all active tenants and bills the previous month on
// or after the configured day. It also publishes overdue gauges, relays the
// outbox and expires idempotency keys.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"

	"dairyflow/internal/app"
	"dairyflow/internal/config"
	appctx "dairyflow/internal/core/context"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/overdue"
	"dairyflow/internal/infrastructure/storage/postgres"
	"dairyflow/internal/observability/metrics"
	"dairyflow/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Infow("starting dairyflow worker", "storage", cfg.Storage.Driver, "interval", cfg.Worker.Interval)
	metrics.Init()

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer rt.Close()

	worker := NewWorker(rt, cfg.Worker, log)
	if *once {
		if err := worker.RunOnce(ctx); err != nil {
			log.Errorw("worker pass failed", "error", err)
			os.Exit(1)
		}
		return
	}

	worker.Run(ctx)
	log.Info("worker stopped")
}

// Worker runs the periodic billing jobs of all tenants.
type Worker struct {
	rt    *app.Runtime
	cfg   config.WorkerConfig
	log   *logger.Logger
	now   func() time.Time
	relay postgres.OutboxHandler
}

func NewWorker(rt *app.Runtime, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	w := &Worker{
		rt:  rt,
		cfg: cfg,
		log: log.WithComponent("worker"),
		now: time.Now,
	}
	w.relay = postgres.OutboxHandlerFunc(w.publish)
	return w
}

// Run executes a pass immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	interval := w.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Errorw("worker pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce visits every active tenant with bounded concurrency. Tenant errors
// are joined; one failing tenant does not stop the others.
func (w *Worker) RunOnce(ctx context.Context) error {
	tenants, err := w.rt.Tenants.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	p := pool.New().WithErrors().WithMaxGoroutines(max(w.cfg.Concurrency, 1))
	for _, t := range tenants {
		p.Go(func() error {
			if err := w.runTenant(ctx, t); err != nil {
				return fmt.Errorf("tenant %s: %w", t.ID, err)
			}
			return nil
		})
	}
	return p.Wait()
}

func (w *Worker) runTenant(ctx context.Context, t *tenant.Tenant) error {
	ctx, release, err := w.rt.Tenants.Bind(ctx, t.ID)
	if err != nil {
		return err
	}
	defer release()
	ctx = appctx.WithUser(ctx, appctx.System(t.ID))

	log := w.log.With("tenant_id", t.ID)
	now := w.now().UTC()

	var errs []error
	// Every pass from GenerateDay on retries the previous month, so a worker that
	// was down on the day catches up. Already billed clients are skipped.
	if now.Day() >= w.cfg.GenerateDay {
		errs = append(errs, w.generate(ctx, log, types.PeriodOf(now).Previous()))
	}
	errs = append(errs,
		w.scanOverdue(ctx, log, t.ID, now),
		w.relayOutbox(ctx, log),
		w.cleanupIdempotency(ctx, log),
	)
	return errors.Join(errs...)
}

func (w *Worker) generate(ctx context.Context, log *logger.Logger, period types.Period) error {
	start := time.Now()
	res, err := w.rt.Services.Billing.GenerateMonthlyBills(ctx, period)
	if err != nil {
		metrics.ObserveGeneration(0, 0, 0, time.Since(start), err)
		return fmt.Errorf("generate %s: %w", period, err)
	}
	metrics.ObserveGeneration(res.GeneratedCount, len(res.SkippedClientIDs), len(res.Failures), time.Since(start), nil)

	for _, f := range res.Failures {
		log.Warnw("bill generation failed", "period", period.String(), "client_id", f.ClientID, "error", f.Err)
	}
	if res.GeneratedCount > 0 || len(res.Failures) > 0 {
		log.Infow("monthly bills generated",
			"period", period.String(),
			"generated", res.GeneratedCount,
			"skipped", len(res.SkippedClientIDs),
			"failed", len(res.Failures),
		)
	}
	return nil
}

func (w *Worker) scanOverdue(ctx context.Context, log *logger.Logger, tenantID string, now time.Time) error {
	entries, err := w.rt.Services.Overdue.ListOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("list overdue: %w", err)
	}

	summary := overdue.Summarize(entries)
	for bucket, s := range summary.Buckets {
		metrics.SetOverdue(tenantID, string(bucket), s.Count, s.Outstanding.InexactFloat64())
	}
	if summary.Count > 0 {
		critical := summary.Buckets[overdue.BucketCritical]
		log.Warnw("overdue bills",
			"count", summary.Count,
			"outstanding", summary.Outstanding.StringFixed(2),
			"critical", critical.Count,
		)
	}
	return nil
}

func (w *Worker) relayOutbox(ctx context.Context, log *logger.Logger) error {
	n, err := w.rt.RelayOutbox(ctx, w.relay)
	metrics.IncOutboxRelayed(err)
	if err != nil {
		return fmt.Errorf("relay outbox: %w", err)
	}
	if n > 0 {
		log.Debugw("outbox batch relayed", "count", n)
	}
	return nil
}

// publish is the outbox sink. Bill events are logged for downstream collectors.
func (w *Worker) publish(ctx context.Context, msg *postgres.OutboxMessage) error {
	w.log.WithContext(ctx).Infow("bill event",
		"event_type", msg.EventType,
		"aggregate_id", msg.AggregateID,
		"payload", string(msg.Payload),
	)
	return nil
}

func (w *Worker) cleanupIdempotency(ctx context.Context, log *logger.Logger) error {
	n, err := w.rt.Idempotency.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	metrics.AddIdempotencyExpired(n)
	if n > 0 {
		log.Infow("cleaned up idempotency keys", "count", n)
	}
	return nil
}
