package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artpar/speechgate/adapters/clock"
	"github.com/artpar/speechgate/adapters/memory"
	"github.com/artpar/speechgate/app"
	"github.com/artpar/speechgate/domain/synth"
	"github.com/artpar/speechgate/domain/usage"
	"github.com/artpar/speechgate/domain/voice"
	"github.com/rs/zerolog"
)

func newTestLedger(t *testing.T, store *memory.LedgerStore, clk *clock.Fake) *app.Ledger {
	t.Helper()
	l := app.NewLedger(app.LedgerConfig{
		Store:    store,
		Registry: voice.Default(),
		Clock:    clk,
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(l.Close)
	return l
}

func TestLedgerConcurrentCommitsSumExactly(t *testing.T) {
	store := memory.NewLedgerStore()
	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	l := newTestLedger(t, store, clk)

	costs := []int64{100, 200, 300}
	var wg sync.WaitGroup
	for _, c := range costs {
		wg.Add(1)
		go func(c int64) {
			defer wg.Done()
			if err := l.Commit(context.Background(), "standard", c); err != nil {
				t.Errorf("Commit(%d) error = %v", c, err)
			}
		}(c)
	}
	wg.Wait()

	ledger, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := ledger.Get("2026-08", "standard"); got != 600 {
		t.Errorf("usage = %d, want 600", got)
	}
}

func TestLedgerManyConcurrentCommits(t *testing.T) {
	store := memory.NewLedgerStore()
	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	l := newTestLedger(t, store, clk)

	const n = 50
	var want int64
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		want += int64(i)
		wg.Add(1)
		go func(c int64) {
			defer wg.Done()
			if err := l.Commit(context.Background(), "neural2", c); err != nil {
				t.Errorf("Commit(%d) error = %v", c, err)
			}
		}(int64(i))
	}
	wg.Wait()

	ledger, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := ledger.Get("2026-08", "neural2"); got != want {
		t.Errorf("usage = %d, want %d", got, want)
	}
}

func TestLedgerCheckAllows(t *testing.T) {
	store := memory.NewLedgerStore()
	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	l := newTestLedger(t, store, clk)

	reg := voice.Default()
	tier, _ := reg.Tier("studio") // 100,000 character cap

	if err := l.Commit(context.Background(), "studio", 99_999); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	d := l.CheckAllows(context.Background(), tier, 1)
	if !d.Allowed {
		t.Errorf("CheckAllows(1) at 99,999/100,000 = denied, want allowed")
	}
	d = l.CheckAllows(context.Background(), tier, 2)
	if d.Allowed {
		t.Errorf("CheckAllows(2) at 99,999/100,000 = allowed, want denied")
	}
	if d.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", d.Remaining)
	}
}

func TestLedgerCheckAllowsOnDegradedStore(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	l := app.NewLedger(app.LedgerConfig{
		Store:    &failingReadStore{},
		Registry: voice.Default(),
		Clock:    clk,
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(l.Close)

	tier, _ := voice.Default().Tier("studio")
	if d := l.CheckAllows(context.Background(), tier, 50_000); !d.Allowed {
		t.Error("CheckAllows on unreadable store = denied, want allowed with zero usage")
	}
}

func TestLedgerCommitPersistFailure(t *testing.T) {
	store := memory.NewLedgerStore()
	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	l := newTestLedger(t, store, clk)

	store.FailWrites = true
	err := l.Commit(context.Background(), "standard", 100)
	var persistErr *synth.LedgerPersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("Commit() error = %v, want LedgerPersistError", err)
	}

	// A failed write must not wedge subsequent commits.
	store.FailWrites = false
	if err := l.Commit(context.Background(), "standard", 100); err != nil {
		t.Fatalf("Commit() after recovery error = %v", err)
	}
	ledger, _ := store.Read(context.Background())
	if got := ledger.Get("2026-08", "standard"); got != 100 {
		t.Errorf("usage = %d, want 100", got)
	}
}

func TestLedgerCommitCancelledContext(t *testing.T) {
	store := memory.NewLedgerStore()
	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	l := newTestLedger(t, store, clk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Commit(ctx, "neural2", 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("Commit() error = %v, want context.Canceled", err)
	}

	// Nothing may be recorded when the commit was never accepted.
	ledger, _ := store.Read(context.Background())
	if got := ledger.Get("2026-08", "neural2"); got != 0 {
		t.Errorf("usage after cancelled commit = %d, want 0", got)
	}
}

func TestLedgerSetRegistryReflectedInUsage(t *testing.T) {
	store := memory.NewLedgerStore()
	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	l := newTestLedger(t, store, clk)

	if err := l.Commit(context.Background(), "studio", 10); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	l.SetRegistry(voice.NewRegistry([]voice.Tier{
		{Name: "studio", Unit: voice.UnitCharacters, MonthlyCap: 200_000},
	}, "studio"))

	_, report, err := l.Usage(context.Background())
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("report has %d tiers, want 1 after registry swap", len(report))
	}
	studio := report["studio"]
	if studio.Limit != 200_000 {
		t.Errorf("studio limit = %d, want the reloaded 200,000", studio.Limit)
	}
	if studio.CurrentUsage != 10 {
		t.Errorf("studio usage = %d, want 10", studio.CurrentUsage)
	}
}

func TestLedgerUsageReport(t *testing.T) {
	store := memory.NewLedgerStore()
	clk := clock.NewFake(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	l := newTestLedger(t, store, clk)

	if err := l.Commit(context.Background(), "wavenet", 1234); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	period, report, err := l.Usage(context.Background())
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if period != "2026-08" {
		t.Errorf("period = %q, want %q", period, "2026-08")
	}
	wavenet, ok := report["wavenet"]
	if !ok {
		t.Fatal("report missing wavenet tier")
	}
	if wavenet.CurrentUsage != 1234 {
		t.Errorf("wavenet usage = %d, want 1234", wavenet.CurrentUsage)
	}
	if wavenet.Limit != 1_000_000 {
		t.Errorf("wavenet limit = %d, want 1,000,000", wavenet.Limit)
	}
	if std, ok := report["standard"]; !ok || std.CurrentUsage != 0 {
		t.Errorf("standard usage = %+v, want present with zero usage", std)
	}
}

// failingReadStore always fails reads; writes succeed into the void.
type failingReadStore struct{}

func (s *failingReadStore) Read(context.Context) (usage.Ledger, error) {
	return nil, errors.New("store unavailable")
}

func (s *failingReadStore) Write(context.Context, usage.Ledger) error { return nil }
