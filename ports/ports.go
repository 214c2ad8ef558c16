// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/speechgate/domain/ratelimit"
	"github.com/artpar/speechgate/domain/synth"
	"github.com/artpar/speechgate/domain/usage"
	"github.com/artpar/speechgate/domain/voice"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// LedgerStore persists the usage ledger as a whole document keyed by
// period ("YYYY-MM") and tier name. There are no partial updates: Read
// returns the entire document, Write replaces it.
//
// A missing or unparseable store is not an error; implementations return
// an empty document so prior usage reads as zero. Write failures are real
// errors and must be returned.
type LedgerStore interface {
	// Read loads the full ledger document.
	Read(ctx context.Context) (usage.Ledger, error)

	// Write replaces the full ledger document.
	Write(ctx context.Context, l usage.Ledger) error
}

// RateLimitStore tracks per-client admission windows.
//
// Admit performs the read-modify-write of a client's window state as one
// atomic step, so concurrent requests for the same client never interleave
// mid-update.
type RateLimitStore interface {
	// Admit applies the fixed-window check for clientKey and returns the
	// decision.
	Admit(ctx context.Context, clientKey string, cfg ratelimit.Config, now time.Time) (ratelimit.Decision, error)

	// Close stops background sweeping and releases resources.
	Close() error
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// SpeechProvider is the outbound speech-synthesis service. Calls are
// metered and billed by the provider; callers wrap them with the resilient
// invoker rather than calling directly.
type SpeechProvider interface {
	// Synthesize renders text (or speech markup) to audio bytes.
	Synthesize(ctx context.Context, req synth.ProviderRequest) ([]byte, error)

	// ListVoices returns the provider's voice catalog, optionally filtered
	// by BCP-47 language code.
	ListVoices(ctx context.Context, languageCode string) ([]voice.Descriptor, error)
}
