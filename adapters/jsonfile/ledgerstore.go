// Package jsonfile provides a file-backed ledger store. The ledger is one
// JSON document keyed by period, read and written whole.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/speechgate/domain/usage"
	"github.com/artpar/speechgate/ports"
)

// LedgerStore persists the usage ledger as a single JSON file.
//
// Reads never fail: a missing or unparseable file yields an empty ledger,
// which the quota layer treats as zero prior usage. Writes go through a
// temp file and rename so a crash mid-write cannot corrupt the document.
type LedgerStore struct {
	path string
}

// NewLedgerStore creates a store backed by the given file path.
func NewLedgerStore(path string) *LedgerStore {
	return &LedgerStore{path: path}
}

// Read loads the ledger document.
func (s *LedgerStore) Read(ctx context.Context) (usage.Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return make(usage.Ledger), nil
	}

	var l usage.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return make(usage.Ledger), nil
	}
	if l == nil {
		l = make(usage.Ledger)
	}
	return l, nil
}

// Write replaces the ledger document.
func (s *LedgerStore) Write(ctx context.Context, l usage.Ledger) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close ledger: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*LedgerStore)(nil)
