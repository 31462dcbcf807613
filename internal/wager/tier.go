// ABOUTME: Confidence tiers as an ordered breakpoint table over edge
// ABOUTME: Tier values are ordered so that a larger edge never yields a lower tier

package wager

import (
	"fmt"
	"strings"
)

// Tier is a confidence label. Values are ordered: TierNone < ... < TierMaximum.
type Tier int

const (
	TierNone Tier = iota
	TierSlightLean
	TierDecent
	TierSolid
	TierHigh
	TierVeryHigh
	TierMaximum
)

var tierNames = map[Tier]string{
	TierNone:       "none",
	TierSlightLean: "slight_lean",
	TierDecent:     "decent",
	TierSolid:      "solid",
	TierHigh:       "high",
	TierVeryHigh:   "very_high",
	TierMaximum:    "maximum",
}

// String returns the wire label for the tier
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier converts a wire label back to a Tier.
func ParseTier(s string) (Tier, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for t, name := range tierNames {
		if name == want {
			return t, nil
		}
	}
	return TierNone, fmt.Errorf("%w: unknown tier %q", ErrInvalidConfig, s)
}

// MarshalText implements encoding.TextMarshaler so tiers serialize by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Breakpoint maps a minimum edge (percentage points, inclusive) to a tier.
type Breakpoint struct {
	MinEdge float64 `json:"min_edge" yaml:"min_edge" toml:"min_edge"`
	Tier    Tier    `json:"tier" yaml:"tier" toml:"tier"`
}

// DefaultBreakpoints is the ladder used when no configuration overrides it.
// Entries are checked top to bottom; the first MinEdge the edge reaches wins.
var DefaultBreakpoints = []Breakpoint{
	{MinEdge: 15, Tier: TierMaximum},
	{MinEdge: 10, Tier: TierVeryHigh},
	{MinEdge: 7, Tier: TierHigh},
	{MinEdge: 5, Tier: TierSolid},
	{MinEdge: 3, Tier: TierDecent},
	{MinEdge: 1, Tier: TierSlightLean},
}

// validateBreakpoints requires strictly descending MinEdge and strictly descending Tier,
// which together make the lookup monotone in edge.
func validateBreakpoints(table []Breakpoint) error {
	for i := 1; i < len(table); i++ {
		prev, cur := table[i-1], table[i]
		if cur.MinEdge >= prev.MinEdge {
			return fmt.Errorf("%w: breakpoint %d min_edge %.2f must be below %.2f", ErrInvalidConfig, i, cur.MinEdge, prev.MinEdge)
		}
		if cur.Tier >= prev.Tier {
			return fmt.Errorf("%w: breakpoint %d tier %s must rank below %s", ErrInvalidConfig, i, cur.Tier, prev.Tier)
		}
	}
	for i, bp := range table {
		if bp.Tier == TierNone {
			return fmt.Errorf("%w: breakpoint %d maps to none", ErrInvalidConfig, i)
		}
	}
	return nil
}

func lookupTier(table []Breakpoint, edge float64) Tier {
	for _, bp := range table {
		if edge >= bp.MinEdge {
			return bp.Tier
		}
	}
	return TierNone
}
