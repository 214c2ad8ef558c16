package synth

import (
	"fmt"
	"time"
)

// AdmissionDeniedError is returned when a client is over its request
// window. It is terminal for the request; callers surface it as throttling.
type AdmissionDeniedError struct {
	ClientKey         string
	RetryAfterSeconds int
}

func (e *AdmissionDeniedError) Error() string {
	return fmt.Sprintf("admission denied: retry after %ds", e.RetryAfterSeconds)
}

// QuotaExceededError is returned when a request would push a tier past its
// monthly cap.
type QuotaExceededError struct {
	Tier         string
	CurrentUsage int64
	Limit        int64
	Remaining    int64
	Requested    int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for tier %s: usage %d of %d, requested %d, remaining %d",
		e.Tier, e.CurrentUsage, e.Limit, e.Requested, e.Remaining)
}

// TimeoutError is returned when an outbound call did not complete within
// the configured duration. The underlying operation is not cancelled; its
// eventual result is discarded.
type TimeoutError struct {
	Label string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Label, e.After)
}

// ProviderError is a failure reported by the speech provider. Retryable
// marks transient conditions (throttling, unavailability, exhaustion);
// everything else is fatal and surfaced on first occurrence.
type ProviderError struct {
	Label      string
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: provider error %s (status %d): %s", e.Label, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: provider error (status %d): %s", e.Label, e.StatusCode, e.Message)
}

// LedgerPersistError is a write failure while committing usage. It always
// propagates: the cost must never be assumed applied when the write failed.
type LedgerPersistError struct {
	Err error
}

func (e *LedgerPersistError) Error() string {
	return fmt.Sprintf("ledger persist failed: %v", e.Err)
}

func (e *LedgerPersistError) Unwrap() error {
	return e.Err
}
