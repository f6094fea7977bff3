// Package scoring classifies a council opinion set into named strategic
// patterns and derives a single actionable opportunity score.
//
// The scorer is pure: same opinion set in, same score out, no I/O. It is
// total for any non-empty set and invariant under permutation of the
// opinions (the item lists follow the set's own opinion order, which the
// orchestrator already fixes to registration order).
package scoring

import (
	"sort"

	"github.com/aristath/council/internal/domain"
	"github.com/aristath/council/internal/utils"
	"github.com/rs/zerolog"
)

const (
	// Score range and fallback formula. "Boring agreement" (strong consensus
	// with no high conviction) deliberately scores low: 3.0 + 0.5 per
	// high-conviction opinion, capped at 5.0.
	ScoreMax          = 10.0
	ScoreMin          = 0.0
	FallbackBase      = 3.0
	FallbackPerHigh   = 0.5
	FallbackCeiling   = 5.0
	StrongConsensusAt = 0.80 // share of opinions for "strong"
)

// Config selects which personas the persona-sensitive rules key on.
type Config struct {
	// QualityPersonaIDs are the personas whose optimism against a bearish
	// market reads as a contrarian quality signal.
	QualityPersonaIDs []string

	// AnchorPersonaIDs are the two personas whose head-on disagreement
	// reads as strategic tension worth investigating.
	AnchorPersonaIDs [2]string
}

func (c Config) withDefaults() Config {
	if len(c.QualityPersonaIDs) == 0 {
		c.QualityPersonaIDs = []string{"buffett", "munger"}
	}
	if c.AnchorPersonaIDs == ([2]string{}) {
		c.AnchorPersonaIDs = [2]string{"buffett", "burry"}
	}
	return c
}

// Scorer evaluates opinion sets against the ordered pattern rule table.
type Scorer struct {
	cfg Config
	log zerolog.Logger
}

// New creates a Scorer. Zero-value Config selects the default quality and
// anchor personas.
func New(cfg Config, log zerolog.Logger) *Scorer {
	return &Scorer{
		cfg: cfg.withDefaults(),
		log: log.With().Str("module", "scoring").Logger(),
	}
}

// Option supplies evaluation context the opinion set itself does not carry.
type Option func(*scoreInput)

// WithMarketSentiment supplies the broad market-sentiment hint
// ("bearish", "neutral", "bullish"). Absent hint defaults to neutral.
func WithMarketSentiment(sentiment string) Option {
	return func(in *scoreInput) { in.sentiment = sentiment }
}

// WithTriggerPriority supplies the priority of the trigger condition that
// put the asset in front of the council.
func WithTriggerPriority(p domain.Priority) Option {
	return func(in *scoreInput) { in.priority = p }
}

// scoreInput is the assembled evaluation context handed to each rule.
type scoreInput struct {
	set       *domain.OpinionSet
	byID      map[string]*domain.Opinion
	consensus *domain.Position
	strength  domain.ConsensusStrength
	sentiment string
	priority  domain.Priority
	cfg       Config
}

// Score classifies the opinion set and returns its opportunity score.
// The set must be non-empty; an empty set returns the zero-value score
// with ConsensusNone rather than panicking.
func (s *Scorer) Score(set *domain.OpinionSet, opts ...Option) domain.OpportunityScore {
	if set == nil || len(set.Opinions) == 0 {
		return domain.OpportunityScore{ConsensusStrength: domain.ConsensusNone}
	}

	in := &scoreInput{set: set, cfg: s.cfg}
	for _, opt := range opts {
		opt(in)
	}

	in.byID = make(map[string]*domain.Opinion, len(set.Opinions))
	for i := range set.Opinions {
		in.byID[set.Opinions[i].PersonaID] = &set.Opinions[i]
	}
	in.consensus, in.strength = classifyConsensus(set.Opinions)

	var (
		matches []domain.PatternMatch
		winner  domain.PatternMatch
	)
	for _, r := range ruleTable {
		m := r.detect(in)
		if !m.Detected {
			continue
		}
		m.PatternID = r.id
		m.ScoreImpact = r.impact
		matches = append(matches, m)
		if winner.PatternID == "" {
			winner = m
		}
	}

	score := domain.OpportunityScore{
		ConsensusPosition: in.consensus,
		ConsensusStrength: in.strength,
		AllMatches:        matches,
		ActionItems:       collectUnique(set.Opinions, func(o *domain.Opinion) []string { return o.KeyFactors }),
		RiskFactors:       collectUnique(set.Opinions, func(o *domain.Opinion) []string { return o.Risks }),
	}

	if winner.PatternID != "" {
		score.Value = winner.ScoreImpact
		score.WinningPattern = winner.PatternID
	} else {
		hc := domain.HighConvictionCount(set.Opinions)
		score.Value = FallbackBase + FallbackPerHigh*float64(hc)
		if score.Value > FallbackCeiling {
			score.Value = FallbackCeiling
		}
		score.WinningPattern = PatternFallback
	}

	s.log.Debug().
		Str("symbol", set.Symbol).
		Float64("score", score.Value).
		Str("pattern", score.WinningPattern).
		Int("matches", len(matches)).
		Msg("opinion set scored")

	return score
}

// classifyConsensus returns the strict-majority position (nil when none)
// and the consensus strength tier.
func classifyConsensus(opinions []domain.Opinion) (*domain.Position, domain.ConsensusStrength) {
	counts := make(map[domain.Position]int, 4)
	for _, o := range opinions {
		counts[o.Position]++
	}

	var (
		top      domain.Position
		topCount int
	)
	// Deterministic scan order; ties never reach majority anyway.
	for _, p := range []domain.Position{
		domain.PositionBullish, domain.PositionBearish,
		domain.PositionNeutral, domain.PositionAvoid,
	} {
		if counts[p] > topCount {
			top, topCount = p, counts[p]
		}
	}

	total := len(opinions)
	if topCount*2 <= total {
		return nil, domain.ConsensusNone
	}

	pos := top
	if float64(topCount) >= StrongConsensusAt*float64(total) {
		return &pos, domain.ConsensusStrong
	}
	return &pos, domain.ConsensusWeak
}

// collectUnique gathers one list field across all opinions, deduplicated by
// normalized text, keeping the first occurrence's original wording and order.
func collectUnique(opinions []domain.Opinion, field func(*domain.Opinion) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range opinions {
		for _, item := range field(&opinions[i]) {
			key := utils.NormalizeText(item)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// sortedIDs returns persona ids in a stable order for match reporting.
func sortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
