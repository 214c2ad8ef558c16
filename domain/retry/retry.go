// Package retry provides failure classification and backoff policy for
// outbound provider calls. Classification and delay computation are pure;
// the loop that consumes them lives in app.Invoker.
package retry

import (
	"errors"
	"strings"
	"time"

	"github.com/artpar/speechgate/domain/synth"
)

// Outcome classifies a single attempt's failure.
type Outcome int

const (
	// OutcomeFatal failures propagate on first occurrence.
	OutcomeFatal Outcome = iota
	// OutcomeRetryable failures are retried with backoff up to the
	// attempt budget.
	OutcomeRetryable
	// OutcomeTimeout is a retryable failure caused by the invoker's
	// timeout rather than a provider response.
	OutcomeTimeout
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeRetryable:
		return "retryable"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "fatal"
	}
}

// Policy holds retry configuration as plain data.
type Policy struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Delay before the first retry; doubles each retry
}

// transientMarkers are substrings that mark an untyped error as transient.
// Kept deliberately small: throttling, unavailability, exhaustion.
var transientMarkers = []string{
	"rate limit",
	"too many requests",
	"resource_exhausted",
	"resource exhausted",
	"unavailable",
	"429",
	"503",
}

// Classify maps an attempt error to an outcome. Typed errors take
// precedence; untyped errors are matched against a fixed set of transient
// markers and are otherwise fatal.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeFatal
	}

	var timeout *synth.TimeoutError
	if errors.As(err, &timeout) {
		return OutcomeTimeout
	}

	var provider *synth.ProviderError
	if errors.As(err, &provider) {
		if provider.Retryable {
			return OutcomeRetryable
		}
		return OutcomeFatal
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return OutcomeRetryable
		}
	}
	return OutcomeFatal
}

// Delay returns the backoff delay before the given retry. The first retry
// (retry 1) waits BaseDelay; each subsequent retry doubles it.
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
	}
	return d
}
