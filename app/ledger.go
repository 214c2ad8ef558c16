package app

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/speechgate/adapters/metrics"
	"github.com/artpar/speechgate/domain/quota"
	"github.com/artpar/speechgate/domain/synth"
	"github.com/artpar/speechgate/domain/usage"
	"github.com/artpar/speechgate/domain/voice"
	"github.com/artpar/speechgate/ports"
	"github.com/rs/zerolog"
)

// Ledger tracks per-tier usage against monthly caps.
//
// Quota checks read the persisted ledger directly and may run
// concurrently. Commits are serialized through a single goroutine in
// submission order, so each commit sees every previously committed
// increment, and no concurrent commits are lost.
//
// A check and a later commit are deliberately not atomic with respect to
// each other: two requests can both pass the check near the cap and both
// commit. Usage is metered exactly; the cap can be overshot by at most
// the in-flight requests.
type Ledger struct {
	store   ports.LedgerStore
	clock   ports.Clock
	log     zerolog.Logger
	metrics *metrics.Collector

	// mu guards the registry, swapped on config reload.
	mu       sync.RWMutex
	registry voice.Registry

	jobs chan commitJob
	done chan struct{}
}

type commitJob struct {
	ctx   context.Context
	tier  string
	count int64
	reply chan error
}

// LedgerConfig configures a Ledger.
type LedgerConfig struct {
	Store    ports.LedgerStore
	Registry voice.Registry
	Clock    ports.Clock
	Logger   zerolog.Logger
	Metrics  *metrics.Collector // Optional
}

// NewLedger creates a ledger service and starts its commit worker.
// Call Close to stop the worker.
func NewLedger(cfg LedgerConfig) *Ledger {
	l := &Ledger{
		store:    cfg.Store,
		registry: cfg.Registry,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		jobs:     make(chan commitJob),
		done:     make(chan struct{}),
	}
	go l.commitLoop()
	return l
}

// Close stops the commit worker. Pending commits submitted before Close
// are processed; Commit must not be called after Close.
func (l *Ledger) Close() {
	close(l.jobs)
	<-l.done
}

// SetRegistry swaps the tier registry, so reloaded tier caps show up in
// usage reports without a restart.
func (l *Ledger) SetRegistry(reg voice.Registry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registry = reg
}

// CheckAllows reports whether a request costing count units of tier fits
// within the tier's monthly cap. If the ledger cannot be read, usage is
// treated as zero and the request is allowed; metering must not block
// synthesis on a degraded store.
func (l *Ledger) CheckAllows(ctx context.Context, tier voice.Tier, count int64) quota.Decision {
	current := l.currentUsage(ctx, tier.Name)
	return quota.Check(tier, current, count)
}

// Commit records count units against tier for the current period. It
// returns once the increment is durably persisted; a persistence failure
// is reported as a LedgerPersistError and nothing is recorded. Once the
// worker has accepted the job, Commit waits for the actual outcome even
// if ctx is cancelled, so an applied increment is never reported as
// failed.
func (l *Ledger) Commit(ctx context.Context, tier string, count int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job := commitJob{ctx: ctx, tier: tier, count: count, reply: make(chan error, 1)}
	select {
	case l.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-job.reply
}

// Usage returns the recorded usage for every known tier in the current
// period along with the period key.
func (l *Ledger) Usage(ctx context.Context) (string, map[string]quota.Decision, error) {
	now := l.clock.Now()
	period := usage.PeriodKey(now)

	ledger, err := l.store.Read(ctx)
	if err != nil {
		return period, nil, err
	}

	l.mu.RLock()
	registry := l.registry
	l.mu.RUnlock()

	report := make(map[string]quota.Decision)
	for _, tier := range registry.Tiers() {
		current := ledger.Get(period, tier.Name)
		report[tier.Name] = quota.Check(tier, current, 0)
	}
	return period, report, nil
}

func (l *Ledger) currentUsage(ctx context.Context, tier string) int64 {
	ledger, err := l.store.Read(ctx)
	if err != nil {
		l.log.Warn().Err(err).Str("tier", tier).Msg("ledger read failed, assuming zero usage")
		return 0
	}
	return ledger.Get(usage.PeriodKey(l.clock.Now()), tier)
}

func (l *Ledger) commitLoop() {
	defer close(l.done)
	for job := range l.jobs {
		job.reply <- l.applyCommit(job)
	}
}

func (l *Ledger) applyCommit(job commitJob) error {
	start := time.Now()

	ledger, err := l.store.Read(job.ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("ledger read failed during commit, starting from empty")
		ledger = make(usage.Ledger)
	}

	period := usage.PeriodKey(l.clock.Now())
	ledger.Add(period, job.tier, job.count)

	if err := l.store.Write(job.ctx, ledger); err != nil {
		if l.metrics != nil {
			l.metrics.LedgerCommitErrors.Inc()
		}
		l.log.Error().
			Err(err).
			Str("tier", job.tier).
			Int64("count", job.count).
			Msg("ledger persist failed")
		return &synth.LedgerPersistError{Err: err}
	}

	if l.metrics != nil {
		l.metrics.LedgerCommitDuration.Observe(time.Since(start).Seconds())
	}
	l.log.Debug().
		Str("tier", job.tier).
		Str("period", period).
		Int64("count", job.count).
		Int64("total", ledger.Get(period, job.tier)).
		Msg("usage committed")
	return nil
}
