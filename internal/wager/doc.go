// Package wager computes betting value from prices and estimated hit rates.
//
// # Engine
//
// An Engine is built once at startup from a Config and passed to whatever needs it:
//
//	engine, err := wager.NewEngine(wager.DefaultConfig())
//
// It holds no mutable state, so concurrent callers need no coordination.
//
// # Units
//
// Probabilities are fractions in [0, 1]. Edge is expressed in percentage points:
// a 58% hit rate against a 52.4% implied probability is an edge of +5.6.
// KellyStakeFraction takes that same edge and converts it back to a fraction
// before dividing by the odds against, then clamps to [0, KellyCap].
//
// # Tiers
//
// ConfidenceTier walks an ordered Breakpoint table (highest MinEdge first).
// DefaultBreakpoints holds the stock ladder 15/10/7/5/3/1. Both the ladder and
// the 0.25 Kelly cap are configuration defaults, not derived constants.
//
// # Parlays
//
// CombineParlay multiplies decimal prices across legs. The result is a value,
// not state: callers recompute it whenever the leg set changes.
package wager
