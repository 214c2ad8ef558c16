// Package ratelimit provides a pure fixed-window admission algorithm.
// All functions are deterministic - same input always produces same output.
package ratelimit

import "time"

// WindowState represents one client's current window (value type).
// A zero WindowState means the client has no active window.
type WindowState struct {
	Count   int       // Requests admitted or attempted in the window
	ResetAt time.Time // When the window expires
}

// Config holds rate limit configuration (value type).
type Config struct {
	MaxRequests int           // Requests allowed per window
	Window      time.Duration // Window length
}

// Decision represents the outcome of an admission check (value type).
type Decision struct {
	Allowed           bool
	Remaining         int
	ResetAt           time.Time
	RetryAfterSeconds int // Whole seconds until the window resets, when denied
}

// Check performs a fixed-window admission check.
//
// If the client has no window, or its window has expired, a fresh window
// starting at now replaces it (the old record is discarded, not merged).
// The request is counted, then allowed iff the count is within the limit.
//
// Returns the decision and the updated state; the caller persists the state.
func Check(state WindowState, cfg Config, now time.Time) (Decision, WindowState) {
	if state.ResetAt.IsZero() || !now.Before(state.ResetAt) {
		state = WindowState{ResetAt: now.Add(cfg.Window)}
	}

	state.Count++

	remaining := cfg.MaxRequests - state.Count
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   state.Count <= cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   state.ResetAt,
	}
	if !d.Allowed {
		d.RetryAfterSeconds = retryAfterSeconds(state.ResetAt, now)
	}

	return d, state
}

// Expired reports whether the window has passed and the record can be
// swept.
func (s WindowState) Expired(now time.Time) bool {
	return !s.ResetAt.IsZero() && !now.Before(s.ResetAt)
}

// retryAfterSeconds returns ceil(resetAt-now) in whole seconds, at least 1.
func retryAfterSeconds(resetAt, now time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
