// Package voice provides voice-family tier classification.
// All functions are deterministic with no side effects.
package voice

import "strings"

// Unit is the billing unit a tier is metered in.
type Unit string

const (
	// UnitBytes bills by UTF-8 encoded byte length of the spoken text.
	UnitBytes Unit = "bytes"
	// UnitCharacters bills by UTF-16 code units of the text.
	UnitCharacters Unit = "characters"
)

// Tier is a named category of voice with a billing unit and monthly cap.
type Tier struct {
	Name       string
	Unit       Unit
	MonthlyCap int64 // 0 = no cap configured, always allow
}

// Descriptor describes one voice offered by the provider.
type Descriptor struct {
	ID            string   `json:"id"`
	LanguageCodes []string `json:"language_codes"`
	Gender        string   `json:"gender"`
	SampleRateHz  int      `json:"sample_rate_hz"`
}

// Registry resolves voice identifiers to tiers by ordered, case-insensitive
// substring match. First match wins; unmatched identifiers resolve to the
// default tier.
type Registry struct {
	tiers       []Tier
	defaultTier Tier
}

// NewRegistry creates a registry. The order of tiers is the match order.
// defaultName must name one of the given tiers.
func NewRegistry(tiers []Tier, defaultName string) Registry {
	r := Registry{tiers: tiers}
	for _, t := range tiers {
		if t.Name == defaultName {
			r.defaultTier = t
		}
	}
	if r.defaultTier.Name == "" && len(tiers) > 0 {
		r.defaultTier = tiers[len(tiers)-1]
	}
	return r
}

// Default returns a registry with the built-in tier table. Premium families
// are byte-billed; Studio and Standard are character-billed. Standard is the
// fallback for unrecognized families — a deliberate policy: a voice family
// the registry does not know is billed at the cheapest tier until an
// operator pins it in configuration.
func Default() Registry {
	return NewRegistry([]Tier{
		{Name: "neural2", Unit: UnitBytes, MonthlyCap: 1_000_000},
		{Name: "wavenet", Unit: UnitBytes, MonthlyCap: 1_000_000},
		{Name: "polyglot", Unit: UnitBytes, MonthlyCap: 1_000_000},
		{Name: "studio", Unit: UnitCharacters, MonthlyCap: 100_000},
		{Name: "standard", Unit: UnitCharacters, MonthlyCap: 4_000_000},
	}, "standard")
}

// Resolve maps a voice identifier (e.g. "en-US-Neural2-A") to its tier.
// The second return reports whether the identifier matched a known family
// or fell through to the default tier.
func (r Registry) Resolve(voiceID string) (Tier, bool) {
	id := strings.ToLower(voiceID)
	for _, t := range r.tiers {
		if strings.Contains(id, strings.ToLower(t.Name)) {
			return t, true
		}
	}
	return r.defaultTier, false
}

// Tier returns the tier with the given name.
func (r Registry) Tier(name string) (Tier, bool) {
	for _, t := range r.tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// Tiers returns all tiers in match order.
func (r Registry) Tiers() []Tier {
	out := make([]Tier, len(r.tiers))
	copy(out, r.tiers)
	return out
}

// DefaultTier returns the fallback tier for unmatched identifiers.
func (r Registry) DefaultTier() Tier {
	return r.defaultTier
}
