// ABOUTME: Wager analytics engine: edge, Kelly stake sizing, confidence tiers, parlays
// ABOUTME: Stateless after construction; every method is a pure function of its inputs

package wager

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/2389/parley-gateway/internal/odds"
)

// Validation errors
var (
	ErrInvalidProbability    = errors.New("probability must be within [0, 1]")
	ErrDegenerateProbability = errors.New("implied probability must be strictly between 0 and 1")
	ErrInvalidStake          = errors.New("stake must be a finite non-negative amount")
	ErrInvalidConfig         = errors.New("invalid analytics config")
)

// DefaultKellyCap is the bankroll ceiling applied to Kelly sizing
const DefaultKellyCap = 0.25

// Config holds the tunable parts of the engine.
type Config struct {
	// KellyCap bounds the stake fraction; must be in (0, 1].
	KellyCap float64
	// Breakpoints is the ordered tier ladder, highest edge first.
	Breakpoints []Breakpoint
}

// DefaultConfig returns the stock cap and tier ladder.
func DefaultConfig() Config {
	return Config{
		KellyCap:    DefaultKellyCap,
		Breakpoints: append([]Breakpoint(nil), DefaultBreakpoints...),
	}
}

// Validate checks the cap and the tier ladder.
func (c Config) Validate() error {
	if math.IsNaN(c.KellyCap) || c.KellyCap <= 0 || c.KellyCap > 1 {
		return fmt.Errorf("%w: kelly cap %v must be in (0, 1]", ErrInvalidConfig, c.KellyCap)
	}
	return validateBreakpoints(c.Breakpoints)
}

// Engine computes wager analytics. It holds only immutable configuration and
// is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine. The breakpoint table is copied.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Breakpoints = append([]Breakpoint(nil), cfg.Breakpoints...)
	return &Engine{cfg: cfg}, nil
}

// KellyCap returns the configured stake ceiling
func (e *Engine) KellyCap() float64 {
	return e.cfg.KellyCap
}

// Edge returns hitRate minus implied probability, in percentage points.
func (e *Engine) Edge(hitRate, implied float64) (float64, error) {
	if err := checkProbability("hit rate", hitRate); err != nil {
		return 0, err
	}
	if err := checkProbability("implied probability", implied); err != nil {
		return 0, err
	}
	return (hitRate - implied) * 100, nil
}

// KellyStakeFraction sizes a stake from an edge in percentage points and the
// implied probability of the price. The result is clamped to [0, KellyCap].
func (e *Engine) KellyStakeFraction(edge, implied float64) (float64, error) {
	if math.IsNaN(edge) {
		return 0, fmt.Errorf("%w: edge is NaN", ErrInvalidProbability)
	}
	if math.IsNaN(implied) || implied <= 0 || implied >= 1 {
		return 0, fmt.Errorf("%w: got %v", ErrDegenerateProbability, implied)
	}

	oddsAgainst := implied / (1 - implied)
	raw := (edge / 100) / oddsAgainst
	return math.Max(0, math.Min(e.cfg.KellyCap, raw)), nil
}

// ConfidenceTier maps an edge in percentage points to a tier using the breakpoint table.
func (e *Engine) ConfidenceTier(edge float64) Tier {
	return lookupTier(e.cfg.Breakpoints, edge)
}

// Leg is a single proposed bet
type Leg struct {
	Label      string   `json:"label"`
	Market     string   `json:"market"`
	American   int      `json:"american"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// PricedLeg echoes a leg with its decimal price.
type PricedLeg struct {
	Leg
	Decimal float64 `json:"decimal"`
}

// ParlayQuote is the derived price of a set of legs. It is recomputed on every
// call and never cached across leg changes.
type ParlayQuote struct {
	Legs     []PricedLeg `json:"legs"`
	Decimal  float64     `json:"decimal"`
	American int         `json:"american"` // 0 when there are no legs
	Stake    float64     `json:"stake"`
	Payout   float64     `json:"payout"`
	Profit   float64     `json:"profit"`
}

// CombineParlay multiplies the legs' decimal prices and applies the stake.
// Leg order is kept as given. An empty leg set is a no-op quote at decimal 1.0.
func (e *Engine) CombineParlay(legs []Leg, stake float64) (*ParlayQuote, error) {
	if math.IsNaN(stake) || math.IsInf(stake, 0) || stake < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidStake, stake)
	}

	priced := make([]PricedLeg, 0, len(legs))
	for i, leg := range legs {
		decimal, err := odds.AmericanToDecimal(leg.American)
		if err != nil {
			return nil, fmt.Errorf("leg %d (%s): %w", i+1, leg.Label, err)
		}
		priced = append(priced, PricedLeg{Leg: leg, Decimal: decimal})
	}

	total := lo.Reduce(priced, func(acc float64, l PricedLeg, _ int) float64 {
		return acc * l.Decimal
	}, 1.0)

	quote := &ParlayQuote{
		Legs:    priced,
		Decimal: total,
		Stake:   stake,
		Payout:  stake * total,
	}
	quote.Profit = quote.Payout - stake

	if len(priced) > 0 {
		american, err := odds.DecimalToAmerican(total)
		if err != nil {
			return nil, fmt.Errorf("pricing parlay: %w", err)
		}
		quote.American = american
	}
	return quote, nil
}

// Recommendation is the coarse call attached to an analysis
type Recommendation string

const (
	RecommendStrong Recommendation = "strong_bet"
	RecommendSolid  Recommendation = "solid_bet"
	RecommendLean   Recommendation = "lean"
	RecommendPass   Recommendation = "pass"
)

// Analysis bundles the value metrics for a single priced bet.
type Analysis struct {
	American       int            `json:"american"`
	Implied        float64        `json:"implied_probability"`
	HitRate        float64        `json:"hit_rate"`
	Edge           float64        `json:"edge"`
	KellyFraction  float64        `json:"kelly_fraction"`
	Tier           Tier           `json:"tier"`
	Recommendation Recommendation `json:"recommendation"`
}

// Analyze prices a bet against an estimated hit rate.
func (e *Engine) Analyze(hitRate float64, american int) (*Analysis, error) {
	implied, err := odds.ImpliedProbability(american)
	if err != nil {
		return nil, err
	}
	edge, err := e.Edge(hitRate, implied)
	if err != nil {
		return nil, err
	}
	kelly, err := e.KellyStakeFraction(edge, implied)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		American:       american,
		Implied:        implied,
		HitRate:        hitRate,
		Edge:           edge,
		KellyFraction:  kelly,
		Tier:           e.ConfidenceTier(edge),
		Recommendation: recommend(edge),
	}, nil
}

func recommend(edge float64) Recommendation {
	switch {
	case edge > 10:
		return RecommendStrong
	case edge > 5:
		return RecommendSolid
	case edge > 2:
		return RecommendLean
	default:
		return RecommendPass
	}
}

func checkProbability(name string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %s %v", ErrInvalidProbability, name, p)
	}
	return nil
}
