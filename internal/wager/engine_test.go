// ABOUTME: Tests for the wager analytics engine
// ABOUTME: Covers edge, Kelly clamping, tier monotonicity, parlay math, and config validation

package wager

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parley-gateway/internal/odds"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestEngine_Edge(t *testing.T) {
	e := newTestEngine(t)

	edge, err := e.Edge(0.58, 0.524)
	require.NoError(t, err)
	assert.InDelta(t, 5.6, edge, 0.0001)

	edge, err = e.Edge(0.40, 0.50)
	require.NoError(t, err)
	assert.InDelta(t, -10, edge, 0.0001)

	_, err = e.Edge(1.2, 0.5)
	assert.ErrorIs(t, err, ErrInvalidProbability)
	_, err = e.Edge(0.5, -0.1)
	assert.ErrorIs(t, err, ErrInvalidProbability)
	_, err = e.Edge(math.NaN(), 0.5)
	assert.ErrorIs(t, err, ErrInvalidProbability)
}

func TestEngine_KellyStakeFraction(t *testing.T) {
	e := newTestEngine(t)

	// 5.6 points of edge at -110: 0.056 / (0.5238/0.4762)
	f, err := e.KellyStakeFraction(5.6, 0.5238)
	require.NoError(t, err)
	assert.InDelta(t, 0.0509, f, 0.0005)

	f, err = e.KellyStakeFraction(-3, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f, "negative edge sizes to zero")
}

func TestEngine_KellyStakeFraction_NeverExceedsCap(t *testing.T) {
	e := newTestEngine(t)

	for _, edge := range []float64{0, 1, 10, 50, 99, 1e6, math.Inf(1), -1e6, math.Inf(-1)} {
		for _, implied := range []float64{0.01, 0.2, 0.5, 0.8, 0.99} {
			f, err := e.KellyStakeFraction(edge, implied)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, f, 0.0)
			assert.LessOrEqual(t, f, DefaultKellyCap)
		}
	}
}

func TestEngine_KellyStakeFraction_CustomCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KellyCap = 0.05
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	f, err := e.KellyStakeFraction(40, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.05, f)
}

func TestEngine_KellyStakeFraction_RejectsDegenerate(t *testing.T) {
	e := newTestEngine(t)

	for _, implied := range []float64{1, 0, 1.5, -0.2, math.NaN()} {
		_, err := e.KellyStakeFraction(5, implied)
		assert.ErrorIs(t, err, ErrDegenerateProbability, "implied %v", implied)
	}
}

func TestEngine_ConfidenceTier_Breakpoints(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		edge float64
		want Tier
	}{
		{20, TierMaximum},
		{15, TierMaximum},
		{14.99, TierVeryHigh},
		{10, TierVeryHigh},
		{7, TierHigh},
		{6.99, TierSolid},
		{5, TierSolid},
		{3, TierDecent},
		{1, TierSlightLean},
		{0.99, TierNone},
		{-8, TierNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, e.ConfidenceTier(tt.edge), "edge %v", tt.edge)
	}
}

func TestEngine_ConfidenceTier_Monotone(t *testing.T) {
	e := newTestEngine(t)

	prev := e.ConfidenceTier(-50)
	for edge := -50.0; edge <= 50; edge += 0.05 {
		cur := e.ConfidenceTier(edge)
		assert.GreaterOrEqual(t, cur, prev, "tier dropped at edge %.2f", edge)
		prev = cur
	}
}

func TestEngine_CombineParlay_TwoLegs(t *testing.T) {
	e := newTestEngine(t)

	legs := []Leg{
		{Label: "A", Market: "moneyline", American: -150},
		{Label: "B", Market: "moneyline", American: 130},
	}
	q, err := e.CombineParlay(legs, 100)
	require.NoError(t, err)

	assert.InDelta(t, 3.8333, q.Decimal, 0.0001)
	assert.InDelta(t, 383.33, q.Payout, 0.01)
	assert.InDelta(t, 283.33, q.Profit, 0.01)
	assert.Equal(t, 283, q.American)
	require.Len(t, q.Legs, 2)
	assert.Equal(t, "A", q.Legs[0].Label)
	assert.Equal(t, "B", q.Legs[1].Label)
	assert.InDelta(t, 1.6667, q.Legs[0].Decimal, 0.0001)
}

func TestEngine_CombineParlay_SingleLegIdentity(t *testing.T) {
	e := newTestEngine(t)

	for _, american := range []int{-odds.MaxAmerican, -300, -110, 100, 145, 900, odds.MaxAmerican} {
		decimal, err := odds.AmericanToDecimal(american)
		require.NoError(t, err)

		q, err := e.CombineParlay([]Leg{{Label: "solo", American: american}}, 50)
		require.NoError(t, err)
		assert.Equal(t, decimal, q.Decimal)
		assert.Equal(t, 50*decimal, q.Payout)
		assert.Equal(t, american, q.American)
	}
}

func TestEngine_CombineParlay_Empty(t *testing.T) {
	e := newTestEngine(t)

	q, err := e.CombineParlay(nil, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.Decimal)
	assert.Equal(t, 100.0, q.Payout)
	assert.Equal(t, 0.0, q.Profit)
	assert.Equal(t, 0, q.American)
	assert.Empty(t, q.Legs)
}

func TestEngine_CombineParlay_OrderKeptProductCommutative(t *testing.T) {
	e := newTestEngine(t)

	a := Leg{Label: "A", American: -150}
	b := Leg{Label: "B", American: 130}
	c := Leg{Label: "C", American: 210}

	q1, err := e.CombineParlay([]Leg{a, b, c}, 10)
	require.NoError(t, err)
	q2, err := e.CombineParlay([]Leg{c, a, b}, 10)
	require.NoError(t, err)

	assert.InDelta(t, q1.Decimal, q2.Decimal, 1e-9)
	assert.Equal(t, "C", q2.Legs[0].Label)
	assert.Equal(t, "A", q1.Legs[0].Label)
}

func TestEngine_CombineParlay_RejectsInvalid(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CombineParlay([]Leg{{Label: "bad", American: 0}}, 100)
	assert.ErrorIs(t, err, odds.ErrInvalidOdds)

	_, err = e.CombineParlay([]Leg{{Label: "lock", American: -odds.MaxAmerican - 1}}, 100)
	assert.ErrorIs(t, err, odds.ErrInvalidOdds)

	_, err = e.CombineParlay([]Leg{{American: -110}}, -1)
	assert.ErrorIs(t, err, ErrInvalidStake)

	_, err = e.CombineParlay([]Leg{{American: -110}}, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidStake)
}

func TestEngine_Analyze_SolidScenario(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Analyze(0.58, -110)
	require.NoError(t, err)

	assert.InDelta(t, 0.524, a.Implied, 0.001)
	assert.InDelta(t, 5.6, a.Edge, 0.1)
	assert.Equal(t, TierSolid, a.Tier)
	assert.Equal(t, "solid", a.Tier.String())
	assert.Equal(t, RecommendSolid, a.Recommendation)
	assert.Greater(t, a.KellyFraction, 0.0)
}

func TestEngine_Analyze_RejectsBadOdds(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Analyze(0.58, 0)
	assert.ErrorIs(t, err, odds.ErrInvalidOdds)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.KellyCap = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.KellyCap = 1.5
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Breakpoints = []Breakpoint{{MinEdge: 5, Tier: TierSolid}, {MinEdge: 10, Tier: TierDecent}}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.Breakpoints = []Breakpoint{{MinEdge: 10, Tier: TierDecent}, {MinEdge: 5, Tier: TierSolid}}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestTier_TextRoundTrip(t *testing.T) {
	for tier := TierNone; tier <= TierMaximum; tier++ {
		b, err := tier.MarshalText()
		require.NoError(t, err)
		var got Tier
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, tier, got)
	}

	var bad Tier
	assert.Error(t, bad.UnmarshalText([]byte("legendary")))
}
