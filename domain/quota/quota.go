// Package quota provides pure functions for quota enforcement.
// All functions are deterministic with no side effects.
package quota

import "github.com/artpar/speechgate/domain/voice"

// Decision represents the outcome of a quota check (value type).
type Decision struct {
	Allowed      bool
	CurrentUsage int64
	Limit        int64 // 0 = no limit configured
	Remaining    int64
	Requested    int64
}

// Check decides whether a request of the given cost fits under a tier's
// monthly cap. The boundary is inclusive: a request that lands exactly on
// the cap is allowed. A tier without a configured cap always allows.
func Check(tier voice.Tier, currentUsage, requested int64) Decision {
	if tier.MonthlyCap <= 0 {
		return Decision{
			Allowed:      true,
			CurrentUsage: currentUsage,
			Requested:    requested,
		}
	}

	remaining := tier.MonthlyCap - currentUsage
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:      currentUsage+requested <= tier.MonthlyCap,
		CurrentUsage: currentUsage,
		Limit:        tier.MonthlyCap,
		Remaining:    remaining,
		Requested:    requested,
	}
}
