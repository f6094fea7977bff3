package scoring

import (
	"fmt"
	"strings"

	"github.com/aristath/council/internal/domain"
	"github.com/aristath/council/internal/utils"
)

// Pattern identifiers. The rule table is ordered by decreasing rarity;
// the first matching rule wins, ties never need breaking.
const (
	PatternHighConvictionConsensus = "high_conviction_consensus"
	PatternContrarianQuality       = "contrarian_quality"
	PatternStrategicDisagreement   = "strategic_disagreement"
	PatternBlindSpotArbitrage      = "blind_spot_arbitrage"
	PatternCatalystAlignment       = "catalyst_alignment"
	PatternFallback                = "conviction_fallback"
)

// Pattern score impacts.
const (
	ImpactHighConvictionConsensus = 9.0
	ImpactContrarianQuality       = 9.0
	ImpactStrategicDisagreement   = 8.0
	ImpactBlindSpotArbitrage      = 7.0
	ImpactCatalystAlignment       = 6.0
)

// Detection thresholds.
const (
	minHighConvictionForConsensus = 4
	minSharedForCatalyst          = 3
	minFlaggersForBlindSpot       = 2
)

// overlapKeywords are the risk themes blind-spot arbitrage matches on.
var overlapKeywords = []string{
	"valuation", "growth", "macro", "consumer", "moat", "management",
}

type rule struct {
	id     string
	impact float64
	detect func(*scoreInput) domain.PatternMatch
}

// ruleTable is evaluated in order; each rule only sets Detected, Insight
// and ContributingPersonaIDs, the reducer fills in id and impact.
var ruleTable = []rule{
	{PatternHighConvictionConsensus, ImpactHighConvictionConsensus, detectHighConvictionConsensus},
	{PatternContrarianQuality, ImpactContrarianQuality, detectContrarianQuality},
	{PatternStrategicDisagreement, ImpactStrategicDisagreement, detectStrategicDisagreement},
	{PatternBlindSpotArbitrage, ImpactBlindSpotArbitrage, detectBlindSpotArbitrage},
	{PatternCatalystAlignment, ImpactCatalystAlignment, detectCatalystAlignment},
}

// detectHighConvictionConsensus fires when at least four opinions carry
// high conviction and a strict-majority position exists. Rare, and the
// strongest signal the council produces.
func detectHighConvictionConsensus(in *scoreInput) domain.PatternMatch {
	if in.consensus == nil {
		return domain.PatternMatch{}
	}

	var contributing []string
	for _, o := range in.set.Opinions {
		if o.Conviction == domain.ConvictionHigh {
			contributing = append(contributing, o.PersonaID)
		}
	}
	if len(contributing) < minHighConvictionForConsensus {
		return domain.PatternMatch{}
	}

	return domain.PatternMatch{
		Detected: true,
		Insight: fmt.Sprintf("Rare consensus: %d of %d personas hold high conviction with a %s majority.",
			len(contributing), len(in.set.Opinions), *in.consensus),
		ContributingPersonaIDs: sortedIDs(contributing),
	}
}

// detectContrarianQuality fires when a quality-focused persona stays
// neutral or bullish against a bearish market hint. Greedy when others
// are fearful.
func detectContrarianQuality(in *scoreInput) domain.PatternMatch {
	if in.sentiment != "bearish" {
		return domain.PatternMatch{}
	}

	var contributing []string
	for _, id := range in.cfg.QualityPersonaIDs {
		o, ok := in.byID[id]
		if !ok {
			continue
		}
		if o.Position == domain.PositionBullish || o.Position == domain.PositionNeutral {
			contributing = append(contributing, id)
		}
	}
	if len(contributing) == 0 {
		return domain.PatternMatch{}
	}

	return domain.PatternMatch{
		Detected: true,
		Insight: fmt.Sprintf("Contrarian quality signal: market bearish but %s still see value.",
			strings.Join(sortedIDs(contributing), ", ")),
		ContributingPersonaIDs: sortedIDs(contributing),
	}
}

// detectStrategicDisagreement fires when the two anchor personas sit at
// opposite extremes: one at Avoid or Bearish, the other Bullish at high
// conviction. Direction does not matter; the tension is the signal.
func detectStrategicDisagreement(in *scoreInput) domain.PatternMatch {
	a, okA := in.byID[in.cfg.AnchorPersonaIDs[0]]
	b, okB := in.byID[in.cfg.AnchorPersonaIDs[1]]
	if !okA || !okB {
		return domain.PatternMatch{}
	}

	bearish := func(o *domain.Opinion) bool {
		return o.Position == domain.PositionAvoid || o.Position == domain.PositionBearish
	}
	bullishHigh := func(o *domain.Opinion) bool {
		return o.Position == domain.PositionBullish && o.Conviction == domain.ConvictionHigh
	}

	if !(bearish(a) && bullishHigh(b)) && !(bearish(b) && bullishHigh(a)) {
		return domain.PatternMatch{}
	}

	return domain.PatternMatch{
		Detected: true,
		Insight: fmt.Sprintf("Strategic tension: %s and %s hold opposite extremes. This disagreement often resolves profitably.",
			a.PersonaID, b.PersonaID),
		ContributingPersonaIDs: sortedIDs([]string{a.PersonaID, b.PersonaID}),
	}
}

// detectBlindSpotArbitrage fires when at least two personas independently
// acknowledge the same risk theme in their blind spots while no opinion on
// the majority side lists that theme among its risks. The majority is
// collectively blind to something part of the council can already see.
func detectBlindSpotArbitrage(in *scoreInput) domain.PatternMatch {
	if in.consensus == nil {
		return domain.PatternMatch{}
	}

	flaggers := make(map[string]map[string]struct{}) // keyword -> persona ids
	for _, o := range in.set.Opinions {
		for _, spot := range o.AcknowledgedBlindSpots {
			norm := utils.NormalizeText(spot)
			for _, kw := range overlapKeywords {
				if strings.Contains(norm, kw) {
					if flaggers[kw] == nil {
						flaggers[kw] = make(map[string]struct{})
					}
					flaggers[kw][o.PersonaID] = struct{}{}
				}
			}
		}
	}

	majorityRisks := make(map[string]bool) // keyword -> mentioned by majority side
	for _, o := range in.set.Opinions {
		if o.Position != *in.consensus {
			continue
		}
		for _, r := range o.Risks {
			norm := utils.NormalizeText(r)
			for _, kw := range overlapKeywords {
				if strings.Contains(norm, kw) {
					majorityRisks[kw] = true
				}
			}
		}
	}

	for _, kw := range overlapKeywords {
		ids := flaggers[kw]
		if len(ids) < minFlaggersForBlindSpot || majorityRisks[kw] {
			continue
		}
		contributing := make([]string, 0, len(ids))
		for id := range ids {
			contributing = append(contributing, id)
		}
		return domain.PatternMatch{
			Detected: true,
			Insight: fmt.Sprintf("Blind spot arbitrage: %d personas flag %q as a blind spot, yet the %s majority does not price that risk.",
				len(ids), kw, *in.consensus),
			ContributingPersonaIDs: sortedIDs(contributing),
		}
	}
	return domain.PatternMatch{}
}

// detectCatalystAlignment fires when a high-priority trigger put the asset
// in front of the council and at least three personas land on the same
// non-Avoid position. The catalyst and the council point the same way.
func detectCatalystAlignment(in *scoreInput) domain.PatternMatch {
	if in.priority != domain.PriorityHigh {
		return domain.PatternMatch{}
	}

	byPosition := make(map[domain.Position][]string)
	for _, o := range in.set.Opinions {
		if o.Position == domain.PositionAvoid {
			continue
		}
		byPosition[o.Position] = append(byPosition[o.Position], o.PersonaID)
	}

	for _, p := range []domain.Position{
		domain.PositionBullish, domain.PositionBearish, domain.PositionNeutral,
	} {
		ids := byPosition[p]
		if len(ids) < minSharedForCatalyst {
			continue
		}
		return domain.PatternMatch{
			Detected: true,
			Insight: fmt.Sprintf("Catalyst alignment: high-priority trigger and %d personas share a %s stance.",
				len(ids), p),
			ContributingPersonaIDs: sortedIDs(ids),
		}
	}
	return domain.PatternMatch{}
}
