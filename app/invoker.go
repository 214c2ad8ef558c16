// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"time"

	"github.com/artpar/speechgate/adapters/metrics"
	"github.com/artpar/speechgate/domain/retry"
	"github.com/artpar/speechgate/domain/synth"
	"github.com/rs/zerolog"
)

// Invoker wraps outbound provider calls with a timeout and a classified,
// bounded retry-with-backoff policy. It is call-shape-agnostic: the same
// wrapper serves billable synthesis calls and metadata calls.
type Invoker struct {
	timeout time.Duration
	policy  retry.Policy
	sleep   func(ctx context.Context, d time.Duration) error
	log     zerolog.Logger
	metrics *metrics.Collector
}

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	Timeout     time.Duration // Per-attempt timeout (default: 30s)
	MaxAttempts int           // Total attempts including the first (default: 3)
	BaseDelay   time.Duration // Backoff before the first retry (default: 1s)

	// Sleep overrides the inter-attempt wait (for tests).
	Sleep func(ctx context.Context, d time.Duration) error

	Logger  zerolog.Logger
	Metrics *metrics.Collector // Optional
}

// NewInvoker creates an invoker.
func NewInvoker(cfg InvokerConfig) *Invoker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}

	return &Invoker{
		timeout: cfg.Timeout,
		policy:  retry.Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay},
		sleep:   cfg.Sleep,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Call runs op under the invoker's timeout and retry policy.
//
// Each attempt races op against a timer. If the timer fires first the
// attempt fails with a TimeoutError; the underlying operation is not
// cancelled and its eventual result is discarded. Retryable failures
// (throttling, unavailability, exhaustion, timeout) back off exponentially
// and re-attempt up to the budget; fatal failures propagate immediately.
//
// The number of attempts made is always returned, including on failure.
func Call[T any](ctx context.Context, inv *Invoker, label string, op func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= inv.policy.MaxAttempts; attempt++ {
		result, err := inv.attempt(ctx, label, func(ctx context.Context) (any, error) {
			return op(ctx)
		})
		if err == nil {
			if inv.metrics != nil {
				inv.metrics.ProviderAttempts.WithLabelValues(label, "success").Inc()
			}
			return result.(T), attempt, nil
		}

		lastErr = err
		outcome := retry.Classify(err)
		if inv.metrics != nil {
			inv.metrics.ProviderAttempts.WithLabelValues(label, outcome.String()).Inc()
		}

		if outcome == retry.OutcomeFatal {
			inv.log.Warn().
				Err(err).
				Str("operation", label).
				Int("attempt", attempt).
				Msg("provider call failed fatally")
			return zero, attempt, err
		}

		if attempt == inv.policy.MaxAttempts {
			break
		}

		delay := inv.policy.Delay(attempt)
		inv.log.Warn().
			Err(err).
			Str("operation", label).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("provider call failed, retrying")
		if inv.metrics != nil {
			inv.metrics.ProviderRetries.WithLabelValues(label).Inc()
		}

		if err := inv.sleep(ctx, delay); err != nil {
			return zero, attempt, err
		}
	}

	inv.log.Error().
		Err(lastErr).
		Str("operation", label).
		Int("attempts", inv.policy.MaxAttempts).
		Msg("provider call failed after retry budget")
	return zero, inv.policy.MaxAttempts, lastErr
}

// attempt races a single invocation against the timeout. The timer is
// always stopped on either outcome.
func (inv *Invoker) attempt(ctx context.Context, label string, op func(ctx context.Context) (any, error)) (any, error) {
	type outcome struct {
		result any
		err    error
	}

	// Buffered so a late completion after timeout does not leak the
	// goroutine; its result is discarded.
	ch := make(chan outcome, 1)
	go func() {
		result, err := op(ctx)
		ch <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(inv.timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-timer.C:
		return nil, &synth.TimeoutError{Label: label, After: inv.timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
