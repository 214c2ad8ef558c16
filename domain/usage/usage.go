// Package usage defines the durable usage ledger document.
package usage

import "time"

// PeriodLayout is the time layout of a ledger period key.
const PeriodLayout = "2006-01"

// Ledger maps a period key ("YYYY-MM") to per-tier accumulated counts.
// Within a period a tier's count only grows, and only via Add on a commit.
// Periods persist indefinitely; there is no pruning.
type Ledger map[string]map[string]int64

// PeriodKey returns the calendar year-month key for t.
func PeriodKey(t time.Time) string {
	return t.Format(PeriodLayout)
}

// Get returns the accumulated count for a tier in a period, zero if the
// period or tier has never been written.
func (l Ledger) Get(period, tier string) int64 {
	return l[period][tier]
}

// Add increments the count for a tier in a period, creating the period
// entry lazily on first commit.
func (l Ledger) Add(period, tier string, n int64) {
	m, ok := l[period]
	if !ok {
		m = make(map[string]int64)
		l[period] = m
	}
	m[tier] += n
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for period, tiers := range l {
		m := make(map[string]int64, len(tiers))
		for tier, n := range tiers {
			m[tier] = n
		}
		out[period] = m
	}
	return out
}
