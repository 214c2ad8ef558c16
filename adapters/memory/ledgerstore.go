package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/artpar/speechgate/domain/usage"
	"github.com/artpar/speechgate/ports"
)

// LedgerStore is an in-memory implementation of ports.LedgerStore, used in
// tests and for ephemeral deployments.
type LedgerStore struct {
	mu     sync.Mutex
	ledger usage.Ledger

	// FailWrites makes Write return an error (for tests).
	FailWrites bool
}

// NewLedgerStore creates an empty in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{ledger: make(usage.Ledger)}
}

// Read returns a copy of the stored ledger.
func (s *LedgerStore) Read(ctx context.Context) (usage.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone(), nil
}

// Write replaces the stored ledger.
func (s *LedgerStore) Write(ctx context.Context, l usage.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errors.New("write disabled")
	}
	s.ledger = l.Clone()
	return nil
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*LedgerStore)(nil)
