// Package opportunities turns scored council evaluations into flat records
// for downstream storage and reporting. The core emits records; durable
// storage belongs to an external collaborator behind the Sink interface.
package opportunities

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/council/internal/domain"
)

// Record is the flat persistence contract for one scored opportunity.
// Everything downstream (storage, price-performance tracking, reporting)
// works from this shape alone.
type Record struct {
	ScanID              uuid.UUID `json:"scan_id"`
	Symbol              string    `json:"symbol"`
	Score               float64   `json:"score"`
	WinningPattern      string    `json:"winning_pattern"`
	ConsensusPosition   string    `json:"consensus_position,omitempty"`
	ConsensusStrength   string    `json:"consensus_strength"`
	HighConvictionCount int       `json:"high_conviction_count"`
	TotalPersonas       int       `json:"total_personas"`
	BullishPersonaIDs   []string  `json:"bullish_persona_ids"`
	BearishPersonaIDs   []string  `json:"bearish_persona_ids"`
	KeyInsight          string    `json:"key_insight,omitempty"`
	MarketContext       string    `json:"market_context,omitempty"`
	PriceAtScan         float64   `json:"price_at_scan"`
	DetectedAt          time.Time `json:"detected_at"`
}

// BuildRecord flattens one scored opinion set into a Record. scanID ties
// all records of one scan pass together.
func BuildRecord(scanID uuid.UUID, set *domain.OpinionSet, score domain.OpportunityScore, marketContext string, priceAtScan float64) Record {
	rec := Record{
		ScanID:              scanID,
		Symbol:              set.Symbol,
		Score:               score.Value,
		WinningPattern:      score.WinningPattern,
		ConsensusStrength:   string(score.ConsensusStrength),
		HighConvictionCount: domain.HighConvictionCount(set.Opinions),
		TotalPersonas:       set.SucceededCount(),
		MarketContext:       marketContext,
		PriceAtScan:         priceAtScan,
		DetectedAt:          time.Now().UTC(),
	}

	if score.ConsensusPosition != nil {
		rec.ConsensusPosition = string(*score.ConsensusPosition)
	}
	if len(score.AllMatches) > 0 {
		rec.KeyInsight = score.AllMatches[0].Insight
	} else {
		rec.KeyInsight = fmt.Sprintf("Mixed signals across the council: %d of %d opinions at high conviction, no clear pattern detected.",
			rec.HighConvictionCount, rec.TotalPersonas)
	}

	for _, o := range set.Opinions {
		switch o.Position {
		case domain.PositionBullish:
			rec.BullishPersonaIDs = append(rec.BullishPersonaIDs, o.PersonaID)
		case domain.PositionBearish, domain.PositionAvoid:
			rec.BearishPersonaIDs = append(rec.BearishPersonaIDs, o.PersonaID)
		}
	}

	return rec
}

// Sink receives finished records. The in-repo default just logs them;
// durable storage implements the same interface externally.
type Sink interface {
	Store(ctx context.Context, rec Record) error
}

// LogSink writes each record to the structured log.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a Sink that emits one info line per record.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("module", "opportunities").Logger()}
}

// Store logs the record. Never fails.
func (s *LogSink) Store(_ context.Context, rec Record) error {
	s.log.Info().
		Str("scan_id", rec.ScanID.String()).
		Str("symbol", rec.Symbol).
		Float64("score", rec.Score).
		Str("pattern", rec.WinningPattern).
		Str("consensus", rec.ConsensusPosition).
		Str("strength", rec.ConsensusStrength).
		Int("high_conviction", rec.HighConvictionCount).
		Int("personas", rec.TotalPersonas).
		Float64("price", rec.PriceAtScan).
		Msg("opportunity detected")
	return nil
}
