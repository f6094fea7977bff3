package scoring

import (
	"math/rand"
	"testing"

	"github.com/aristath/council/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(id string, pos domain.Position, conv domain.Conviction) domain.Opinion {
	return domain.Opinion{
		PersonaID:   id,
		PersonaName: id,
		Position:    pos,
		Conviction:  conv,
		Reasoning:   "reasoning",
	}
}

func setOf(symbol string, opinions ...domain.Opinion) *domain.OpinionSet {
	return &domain.OpinionSet{
		Symbol:         symbol,
		Opinions:       opinions,
		RequestedCount: len(opinions),
	}
}

func newScorer() *Scorer {
	return New(Config{}, zerolog.Nop())
}

// TestClassifyConsensus tests majority and strength classification.
func TestClassifyConsensus(t *testing.T) {
	tests := []struct {
		name         string
		opinions     []domain.Opinion
		wantPosition *domain.Position
		wantStrength domain.ConsensusStrength
	}{
		{
			name: "unanimous is strong",
			opinions: []domain.Opinion{
				op("a", domain.PositionBullish, domain.ConvictionMedium),
				op("b", domain.PositionBullish, domain.ConvictionMedium),
				op("c", domain.PositionBullish, domain.ConvictionMedium),
			},
			wantPosition: ptr(domain.PositionBullish),
			wantStrength: domain.ConsensusStrong,
		},
		{
			name: "five of six is strong",
			opinions: []domain.Opinion{
				op("a", domain.PositionBullish, domain.ConvictionMedium),
				op("b", domain.PositionBullish, domain.ConvictionMedium),
				op("c", domain.PositionBullish, domain.ConvictionMedium),
				op("d", domain.PositionBullish, domain.ConvictionMedium),
				op("e", domain.PositionBullish, domain.ConvictionMedium),
				op("f", domain.PositionNeutral, domain.ConvictionMedium),
			},
			wantPosition: ptr(domain.PositionBullish),
			wantStrength: domain.ConsensusStrong,
		},
		{
			name: "four of six is weak",
			opinions: []domain.Opinion{
				op("a", domain.PositionBearish, domain.ConvictionMedium),
				op("b", domain.PositionBearish, domain.ConvictionMedium),
				op("c", domain.PositionBearish, domain.ConvictionMedium),
				op("d", domain.PositionBearish, domain.ConvictionMedium),
				op("e", domain.PositionBullish, domain.ConvictionMedium),
				op("f", domain.PositionNeutral, domain.ConvictionMedium),
			},
			wantPosition: ptr(domain.PositionBearish),
			wantStrength: domain.ConsensusWeak,
		},
		{
			name: "three of six is not a strict majority",
			opinions: []domain.Opinion{
				op("a", domain.PositionBullish, domain.ConvictionMedium),
				op("b", domain.PositionBullish, domain.ConvictionMedium),
				op("c", domain.PositionBullish, domain.ConvictionMedium),
				op("d", domain.PositionBearish, domain.ConvictionMedium),
				op("e", domain.PositionBearish, domain.ConvictionMedium),
				op("f", domain.PositionAvoid, domain.ConvictionMedium),
			},
			wantPosition: nil,
			wantStrength: domain.ConsensusNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, strength := classifyConsensus(tt.opinions)
			assert.Equal(t, tt.wantPosition, pos)
			assert.Equal(t, tt.wantStrength, strength)
		})
	}
}

func ptr(p domain.Position) *domain.Position { return &p }

// TestScore_HighConvictionConsensus tests the rarest and strongest pattern:
// four or more high-conviction opinions behind a strict majority.
func TestScore_HighConvictionConsensus(t *testing.T) {
	set := setOf("AAPL",
		op("ackman", domain.PositionBullish, domain.ConvictionHigh),
		op("buffett", domain.PositionBullish, domain.ConvictionHigh),
		op("burry", domain.PositionBullish, domain.ConvictionHigh),
		op("dalio", domain.PositionBullish, domain.ConvictionHigh),
		op("lynch", domain.PositionNeutral, domain.ConvictionMedium),
		op("munger", domain.PositionBullish, domain.ConvictionMedium),
	)

	score := newScorer().Score(set)

	assert.Equal(t, PatternHighConvictionConsensus, score.WinningPattern)
	assert.Equal(t, 9.0, score.Value)
	require.NotNil(t, score.ConsensusPosition)
	assert.Equal(t, domain.PositionBullish, *score.ConsensusPosition)
	assert.Equal(t, domain.ConsensusStrong, score.ConsensusStrength)

	require.NotEmpty(t, score.AllMatches)
	assert.Equal(t, PatternHighConvictionConsensus, score.AllMatches[0].PatternID)
	assert.ElementsMatch(t,
		[]string{"ackman", "buffett", "burry", "dalio"},
		score.AllMatches[0].ContributingPersonaIDs)
}

// TestScore_ContrarianQuality tests quality personas staying constructive
// against a bearish market hint.
func TestScore_ContrarianQuality(t *testing.T) {
	set := setOf("KO",
		op("buffett", domain.PositionBullish, domain.ConvictionMedium),
		op("burry", domain.PositionBearish, domain.ConvictionMedium),
		op("dalio", domain.PositionBearish, domain.ConvictionMedium),
		op("lynch", domain.PositionAvoid, domain.ConvictionLow),
	)

	score := newScorer().Score(set, WithMarketSentiment("bearish"))

	assert.Equal(t, PatternContrarianQuality, score.WinningPattern)
	assert.Equal(t, 9.0, score.Value)
	assert.Equal(t, []string{"buffett"}, score.AllMatches[0].ContributingPersonaIDs)

	// Same set without the bearish hint does not fire the rule.
	calm := newScorer().Score(set)
	assert.NotEqual(t, PatternContrarianQuality, calm.WinningPattern)
}

// TestScore_StrategicDisagreement tests the anchor personas at opposite
// extremes, in both directions.
func TestScore_StrategicDisagreement(t *testing.T) {
	tests := []struct {
		name             string
		buffett, burry   domain.Opinion
	}{
		{
			name:    "buffett avoids while burry is bullish at high conviction",
			buffett: op("buffett", domain.PositionAvoid, domain.ConvictionMedium),
			burry:   op("burry", domain.PositionBullish, domain.ConvictionHigh),
		},
		{
			name:    "burry bearish while buffett is bullish at high conviction",
			buffett: op("buffett", domain.PositionBullish, domain.ConvictionHigh),
			burry:   op("burry", domain.PositionBearish, domain.ConvictionMedium),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := setOf("GME",
				tt.buffett,
				tt.burry,
				op("dalio", domain.PositionNeutral, domain.ConvictionLow),
				op("lynch", domain.PositionNeutral, domain.ConvictionLow),
			)

			score := newScorer().Score(set)

			assert.Equal(t, PatternStrategicDisagreement, score.WinningPattern)
			assert.Equal(t, 8.0, score.Value)
			assert.Equal(t, []string{"buffett", "burry"}, score.AllMatches[0].ContributingPersonaIDs)
		})
	}
}

// TestScore_StrategicDisagreement_NotAtHighConviction tests that the bull
// side must hold high conviction for the tension to count.
func TestScore_StrategicDisagreement_NotAtHighConviction(t *testing.T) {
	set := setOf("GME",
		op("buffett", domain.PositionAvoid, domain.ConvictionMedium),
		op("burry", domain.PositionBullish, domain.ConvictionMedium),
		op("dalio", domain.PositionNeutral, domain.ConvictionLow),
	)

	score := newScorer().Score(set)
	assert.NotEqual(t, PatternStrategicDisagreement, score.WinningPattern)
}

// TestScore_BlindSpotArbitrage tests the majority ignoring a risk theme
// that two personas independently flag as their blind spot.
func TestScore_BlindSpotArbitrage(t *testing.T) {
	bullish := func(id string) domain.Opinion {
		o := op(id, domain.PositionBullish, domain.ConvictionMedium)
		o.Risks = []string{"Competitive pressure from new entrants"}
		return o
	}
	flagged := func(id string, pos domain.Position) domain.Opinion {
		o := op(id, pos, domain.ConvictionMedium)
		o.AcknowledgedBlindSpots = []string{"I tend to underweight macro cycle risk"}
		return o
	}

	set := setOf("CAT",
		bullish("ackman"),
		bullish("buffett"),
		bullish("lynch"),
		bullish("munger"),
		flagged("burry", domain.PositionNeutral),
		flagged("dalio", domain.PositionBearish),
	)

	score := newScorer().Score(set)

	assert.Equal(t, PatternBlindSpotArbitrage, score.WinningPattern)
	assert.Equal(t, 7.0, score.Value)
	assert.ElementsMatch(t, []string{"burry", "dalio"}, score.AllMatches[0].ContributingPersonaIDs)
}

// TestScore_BlindSpotArbitrage_MajorityPricesTheRisk tests that the rule
// does not fire when the majority already lists the flagged theme.
func TestScore_BlindSpotArbitrage_MajorityPricesTheRisk(t *testing.T) {
	bullish := func(id string) domain.Opinion {
		o := op(id, domain.PositionBullish, domain.ConvictionMedium)
		o.Risks = []string{"Macro slowdown would hit earnings"}
		return o
	}
	flagged := func(id string) domain.Opinion {
		o := op(id, domain.PositionNeutral, domain.ConvictionMedium)
		o.AcknowledgedBlindSpots = []string{"I discount macro signals too readily"}
		return o
	}

	set := setOf("CAT",
		bullish("ackman"), bullish("buffett"), bullish("lynch"),
		flagged("burry"), flagged("dalio"),
	)

	score := newScorer().Score(set)
	assert.NotEqual(t, PatternBlindSpotArbitrage, score.WinningPattern)
}

// TestScore_CatalystAlignment tests a high-priority trigger backed by at
// least three personas sharing a non-Avoid position.
func TestScore_CatalystAlignment(t *testing.T) {
	set := setOf("OXY",
		op("ackman", domain.PositionBullish, domain.ConvictionMedium),
		op("buffett", domain.PositionBullish, domain.ConvictionMedium),
		op("lynch", domain.PositionBullish, domain.ConvictionMedium),
		op("burry", domain.PositionAvoid, domain.ConvictionMedium),
		op("dalio", domain.PositionBearish, domain.ConvictionMedium),
		op("munger", domain.PositionAvoid, domain.ConvictionLow),
	)

	score := newScorer().Score(set, WithTriggerPriority(domain.PriorityHigh))

	assert.Equal(t, PatternCatalystAlignment, score.WinningPattern)
	assert.Equal(t, 6.0, score.Value)
	assert.ElementsMatch(t, []string{"ackman", "buffett", "lynch"}, score.AllMatches[0].ContributingPersonaIDs)

	// Medium priority never fires the rule.
	medium := newScorer().Score(set, WithTriggerPriority(domain.PriorityMedium))
	assert.NotEqual(t, PatternCatalystAlignment, medium.WinningPattern)
}

// TestScore_BoringAgreementFallback tests that strong consensus without
// conviction scores low: six medium-conviction opinions land on 3.0.
func TestScore_BoringAgreementFallback(t *testing.T) {
	set := setOf("PG",
		op("ackman", domain.PositionBullish, domain.ConvictionMedium),
		op("buffett", domain.PositionBullish, domain.ConvictionMedium),
		op("burry", domain.PositionBullish, domain.ConvictionMedium),
		op("dalio", domain.PositionBullish, domain.ConvictionMedium),
		op("lynch", domain.PositionBullish, domain.ConvictionMedium),
		op("munger", domain.PositionNeutral, domain.ConvictionMedium),
	)

	score := newScorer().Score(set)

	assert.Equal(t, PatternFallback, score.WinningPattern)
	assert.Equal(t, 3.0, score.Value)
	assert.Equal(t, domain.ConsensusStrong, score.ConsensusStrength)
	assert.Empty(t, score.AllMatches)
}

// TestScore_FallbackScalesWithConviction tests the fallback formula and
// its 5.0 ceiling.
func TestScore_FallbackScalesWithConviction(t *testing.T) {
	// Two high-conviction opinions but no consensus and no other pattern.
	set := setOf("X",
		op("ackman", domain.PositionBullish, domain.ConvictionHigh),
		op("dalio", domain.PositionBearish, domain.ConvictionHigh),
		op("lynch", domain.PositionNeutral, domain.ConvictionLow),
		op("munger", domain.PositionAvoid, domain.ConvictionLow),
	)
	score := newScorer().Score(set)
	assert.Equal(t, PatternFallback, score.WinningPattern)
	assert.Equal(t, 4.0, score.Value)

	// Ceiling: the fallback never exceeds 5.0 regardless of conviction count.
	many := setOf("Y",
		op("ackman", domain.PositionBullish, domain.ConvictionHigh),
		op("buffett", domain.PositionBearish, domain.ConvictionHigh),
		op("burry", domain.PositionNeutral, domain.ConvictionHigh),
		op("dalio", domain.PositionAvoid, domain.ConvictionHigh),
		op("lynch", domain.PositionBullish, domain.ConvictionHigh),
		op("munger", domain.PositionBearish, domain.ConvictionHigh),
	)
	score = newScorer().Score(many)
	assert.Equal(t, 5.0, score.Value)
}

// TestScore_AllMatchesTransparency tests that every matching rule is
// recorded even when it does not win.
func TestScore_AllMatchesTransparency(t *testing.T) {
	// High-conviction consensus AND catalyst alignment both hold.
	set := setOf("NVDA",
		op("ackman", domain.PositionBullish, domain.ConvictionHigh),
		op("buffett", domain.PositionBullish, domain.ConvictionHigh),
		op("burry", domain.PositionBullish, domain.ConvictionHigh),
		op("dalio", domain.PositionBullish, domain.ConvictionHigh),
		op("lynch", domain.PositionBullish, domain.ConvictionMedium),
		op("munger", domain.PositionNeutral, domain.ConvictionMedium),
	)

	score := newScorer().Score(set, WithTriggerPriority(domain.PriorityHigh))

	assert.Equal(t, PatternHighConvictionConsensus, score.WinningPattern)
	assert.Equal(t, 9.0, score.Value)

	ids := make([]string, 0, len(score.AllMatches))
	for _, m := range score.AllMatches {
		ids = append(ids, m.PatternID)
	}
	assert.Equal(t, []string{PatternHighConvictionConsensus, PatternCatalystAlignment}, ids)
}

// TestScore_ItemDeduplication tests that action items and risk factors are
// deduplicated by normalized text, keeping the first occurrence's wording.
func TestScore_ItemDeduplication(t *testing.T) {
	a := op("buffett", domain.PositionBullish, domain.ConvictionMedium)
	a.KeyFactors = []string{"Durable moat", "Pricing power"}
	a.Risks = []string{"Regulatory scrutiny."}

	b := op("munger", domain.PositionBullish, domain.ConvictionMedium)
	b.KeyFactors = []string{"durable   MOAT", "Owner-operator management"}
	b.Risks = []string{"regulatory scrutiny", "Customer concentration"}

	score := newScorer().Score(setOf("AAPL", a, b))

	assert.Equal(t, []string{"Durable moat", "Pricing power", "Owner-operator management"}, score.ActionItems)
	assert.Equal(t, []string{"Regulatory scrutiny.", "Customer concentration"}, score.RiskFactors)
}

// TestScore_PermutationInvariance tests that shuffling the opinions never
// changes the value, winning pattern, or consensus classification.
func TestScore_PermutationInvariance(t *testing.T) {
	opinions := []domain.Opinion{
		op("ackman", domain.PositionBullish, domain.ConvictionHigh),
		op("buffett", domain.PositionAvoid, domain.ConvictionMedium),
		op("burry", domain.PositionBullish, domain.ConvictionHigh),
		op("dalio", domain.PositionBearish, domain.ConvictionHigh),
		op("lynch", domain.PositionBullish, domain.ConvictionHigh),
		op("munger", domain.PositionNeutral, domain.ConvictionLow),
	}

	base := newScorer().Score(setOf("TSLA", opinions...))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.Opinion(nil), opinions...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := newScorer().Score(setOf("TSLA", shuffled...))

		assert.Equal(t, base.Value, got.Value)
		assert.Equal(t, base.WinningPattern, got.WinningPattern)
		assert.Equal(t, base.ConsensusPosition, got.ConsensusPosition)
		assert.Equal(t, base.ConsensusStrength, got.ConsensusStrength)
		assert.ElementsMatch(t, base.ActionItems, got.ActionItems)
		assert.ElementsMatch(t, base.RiskFactors, got.RiskFactors)
	}
}

// TestScore_ValueAlwaysInRange tests the documented score range across a
// spread of randomly assembled opinion sets.
func TestScore_ValueAlwaysInRange(t *testing.T) {
	positions := []domain.Position{
		domain.PositionBullish, domain.PositionBearish,
		domain.PositionNeutral, domain.PositionAvoid,
	}
	convictions := []domain.Conviction{
		domain.ConvictionHigh, domain.ConvictionMedium, domain.ConvictionLow,
	}
	ids := []string{"ackman", "buffett", "burry", "dalio", "lynch", "munger"}

	rng := rand.New(rand.NewSource(7))
	scorer := newScorer()

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(len(ids))
		opinions := make([]domain.Opinion, 0, n)
		for j := 0; j < n; j++ {
			opinions = append(opinions, op(ids[j], positions[rng.Intn(4)], convictions[rng.Intn(3)]))
		}

		opts := []Option{}
		if rng.Intn(2) == 0 {
			opts = append(opts, WithMarketSentiment("bearish"))
		}
		if rng.Intn(2) == 0 {
			opts = append(opts, WithTriggerPriority(domain.PriorityHigh))
		}

		score := scorer.Score(setOf("RAND", opinions...), opts...)
		assert.GreaterOrEqual(t, score.Value, 0.0)
		assert.LessOrEqual(t, score.Value, 10.0)
	}
}

// TestScore_EmptySet tests that an empty set returns a zero score instead
// of panicking.
func TestScore_EmptySet(t *testing.T) {
	score := newScorer().Score(&domain.OpinionSet{Symbol: "NONE"})
	assert.Equal(t, 0.0, score.Value)
	assert.Nil(t, score.ConsensusPosition)
	assert.Equal(t, domain.ConsensusNone, score.ConsensusStrength)
}

// TestScore_CustomAnchors tests that the anchor personas are configurable.
func TestScore_CustomAnchors(t *testing.T) {
	scorer := New(Config{AnchorPersonaIDs: [2]string{"dalio", "lynch"}}, zerolog.Nop())

	set := setOf("F",
		op("dalio", domain.PositionAvoid, domain.ConvictionMedium),
		op("lynch", domain.PositionBullish, domain.ConvictionHigh),
		op("munger", domain.PositionNeutral, domain.ConvictionLow),
	)

	score := scorer.Score(set)
	assert.Equal(t, PatternStrategicDisagreement, score.WinningPattern)
	assert.Equal(t, 8.0, score.Value)
}
