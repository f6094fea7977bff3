package screener

import (
	"fmt"
	"math"

	"github.com/aristath/council/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Metrics the screener derives from the scan universe itself.
const (
	MetricPEZScore       = "pe_zscore"
	MetricDrawdownZScore = "drawdown_zscore"
)

// zscoreSources maps derived metric names to the raw metric they are
// computed from.
var zscoreSources = map[string]string{
	MetricPEZScore:       "pe_ratio",
	MetricDrawdownZScore: "price_change_30d",
}

// minUniverseForZScores is the minimum number of universe members carrying a
// raw metric before a z-score over it is meaningful.
const minUniverseForZScores = 3

// Screener evaluates trigger conditions against asset metrics. Pure and
// deterministic: identical input always yields identical output, and no
// method performs I/O.
type Screener struct {
	conditions []Condition
	log        zerolog.Logger
}

// New creates a Screener over a loaded condition table.
func New(conditions []Condition, log zerolog.Logger) *Screener {
	return &Screener{
		conditions: conditions,
		log:        log.With().Str("module", "screener").Logger(),
	}
}

// Conditions returns the condition table in evaluation order.
func (s *Screener) Conditions() []Condition {
	return s.conditions
}

// Evaluate checks every trigger condition against one asset's metrics.
// Returns nil when nothing matches. Matches from multiple conditions are
// merged: condition ids in table order, priority is the max tier, relevant
// personas are the deduplicated union in table order.
func (s *Screener) Evaluate(asset domain.AssetMetrics) *domain.TriggeredAsset {
	var triggered *domain.TriggeredAsset
	seenPersonas := make(map[string]bool)

	for _, cond := range s.conditions {
		if !cond.matches(asset.Metrics) {
			continue
		}

		if triggered == nil {
			triggered = &domain.TriggeredAsset{
				Symbol:      asset.Symbol,
				Priority:    cond.Priority,
				PriceAtScan: asset.Price,
			}
		}

		triggered.MatchedConditionIDs = append(triggered.MatchedConditionIDs, cond.ID)
		triggered.Priority = domain.MaxPriority(triggered.Priority, cond.Priority)
		for _, pid := range cond.RelevantPersonaIDs {
			if !seenPersonas[pid] {
				seenPersonas[pid] = true
				triggered.RelevantPersonaIDs = append(triggered.RelevantPersonaIDs, pid)
			}
		}
	}

	return triggered
}

// Scan evaluates a universe in input order. Malformed elements are skipped
// and recorded, never aborting the scan. Universe-relative derived metrics
// (z-scores) are computed from this call's input only, so the scan stays
// referentially transparent.
func (s *Screener) Scan(universe []domain.AssetMetrics) ([]domain.TriggeredAsset, []domain.SkippedAsset) {
	var triggered []domain.TriggeredAsset
	var skipped []domain.SkippedAsset

	derived := deriveZScores(universe)

	for i, asset := range universe {
		if reason := malformed(asset); reason != "" {
			skipped = append(skipped, domain.SkippedAsset{Index: i, Symbol: asset.Symbol, Reason: reason})
			s.log.Warn().Int("index", i).Str("symbol", asset.Symbol).Str("reason", reason).Msg("Skipping universe element")
			continue
		}

		enriched := asset
		if extra, ok := derived[asset.Symbol]; ok {
			merged := make(map[string]float64, len(asset.Metrics)+len(extra))
			for k, v := range asset.Metrics {
				merged[k] = v
			}
			for k, v := range extra {
				merged[k] = v
			}
			enriched.Metrics = merged
		}

		if hit := s.Evaluate(enriched); hit != nil {
			triggered = append(triggered, *hit)
			s.log.Debug().
				Str("symbol", hit.Symbol).
				Strs("conditions", hit.MatchedConditionIDs).
				Str("priority", string(hit.Priority)).
				Msg("Asset triggered")
		}
	}

	return triggered, skipped
}

// malformed returns a non-empty reason when a universe element cannot be
// evaluated.
func malformed(asset domain.AssetMetrics) string {
	if asset.Symbol == "" {
		return "empty symbol"
	}
	if len(asset.Metrics) == 0 {
		return "no metrics"
	}
	for name, v := range asset.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Sprintf("metric %s is not finite", name)
		}
	}
	return ""
}

// deriveZScores computes universe-relative z-scores for each symbol from the
// raw metrics of well-formed universe members. A z-score is only produced
// when enough members carry the raw metric and it actually varies.
func deriveZScores(universe []domain.AssetMetrics) map[string]map[string]float64 {
	derived := make(map[string]map[string]float64)

	for zName, rawName := range zscoreSources {
		var values []float64
		for _, asset := range universe {
			if malformed(asset) != "" {
				continue
			}
			if v, ok := asset.Metrics[rawName]; ok {
				values = append(values, v)
			}
		}

		if len(values) < minUniverseForZScores {
			continue
		}

		mean, std := stat.MeanStdDev(values, nil)
		if std == 0 {
			continue
		}

		for _, asset := range universe {
			if malformed(asset) != "" {
				continue
			}
			v, ok := asset.Metrics[rawName]
			if !ok {
				continue
			}
			if derived[asset.Symbol] == nil {
				derived[asset.Symbol] = make(map[string]float64, len(zscoreSources))
			}
			derived[asset.Symbol][zName] = (v - mean) / std
		}
	}

	return derived
}
