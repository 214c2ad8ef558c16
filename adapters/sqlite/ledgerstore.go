package sqlite

import (
	"context"
	"fmt"

	"github.com/artpar/speechgate/domain/usage"
	"github.com/artpar/speechgate/ports"
)

// LedgerStore is a SQLite implementation of ports.LedgerStore.
//
// The ledger is still handled as a whole document: Read loads every row,
// Write replaces the table contents in one transaction. Query failures on
// the read path yield an empty ledger, matching the file store's
// zero-prior-usage behavior.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a SQLite-backed ledger store.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Read loads the full ledger document.
func (s *LedgerStore) Read(ctx context.Context) (usage.Ledger, error) {
	l := make(usage.Ledger)

	rows, err := s.db.QueryContext(ctx, "SELECT period, tier, count FROM usage_ledger")
	if err != nil {
		return l, nil
	}
	defer rows.Close()

	for rows.Next() {
		var period, tier string
		var count int64
		if err := rows.Scan(&period, &tier, &count); err != nil {
			return make(usage.Ledger), nil
		}
		l.Add(period, tier, count)
	}
	if rows.Err() != nil {
		return make(usage.Ledger), nil
	}
	return l, nil
}

// Write replaces the full ledger document.
func (s *LedgerStore) Write(ctx context.Context, l usage.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger write: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM usage_ledger"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear ledger: %w", err)
	}

	for period, tiers := range l {
		for tier, count := range tiers {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO usage_ledger (period, tier, count) VALUES (?, ?, ?)",
				period, tier, count,
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert ledger row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger write: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*LedgerStore)(nil)
