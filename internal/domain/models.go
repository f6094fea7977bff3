// Package domain contains the core types shared across the council system.
// The domain layer is pure: no clients, no I/O, no logging.
package domain

import "time"

// Position is a persona's directional stance on an asset.
type Position string

const (
	PositionBullish Position = "bullish"
	PositionBearish Position = "bearish"
	PositionNeutral Position = "neutral"
	PositionAvoid   Position = "avoid"
)

// Valid reports whether p is one of the four known positions.
func (p Position) Valid() bool {
	switch p {
	case PositionBullish, PositionBearish, PositionNeutral, PositionAvoid:
		return true
	}
	return false
}

// Conviction is the ordinal confidence a persona attaches to its position.
type Conviction string

const (
	ConvictionHigh   Conviction = "high"
	ConvictionMedium Conviction = "medium"
	ConvictionLow    Conviction = "low"
)

// Valid reports whether c is one of the three known conviction levels.
func (c Conviction) Valid() bool {
	switch c {
	case ConvictionHigh, ConvictionMedium, ConvictionLow:
		return true
	}
	return false
}

// Rank returns the ordinal rank of the conviction level (high > medium > low).
func (c Conviction) Rank() int {
	switch c {
	case ConvictionHigh:
		return 3
	case ConvictionMedium:
		return 2
	case ConvictionLow:
		return 1
	}
	return 0
}

// Priority is the urgency tier of a trigger condition. Only high and medium
// exist; anything below medium is not worth a council evaluation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Valid reports whether p is a known priority tier.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium
}

// Rank returns the ordinal rank of the priority (high > medium).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

// MaxPriority returns the higher-ranked of two priorities.
func MaxPriority(a, b Priority) Priority {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// AssetMetrics is one element of a screening universe: a symbol plus the
// named numeric metrics the trigger conditions predicate over. Metrics are
// externally supplied; the screener never fetches anything.
type AssetMetrics struct {
	Symbol  string             `yaml:"symbol" json:"symbol"`
	Price   float64            `yaml:"price" json:"price"`
	Metrics map[string]float64 `yaml:"metrics" json:"metrics"`
}

// TriggeredAsset is an asset that matched at least one trigger condition
// during a screening pass. Short-lived: produced per scan, consumed by the
// evaluation pipeline.
type TriggeredAsset struct {
	Symbol              string
	MatchedConditionIDs []string
	Priority            Priority
	RelevantPersonaIDs  []string
	PriceAtScan         float64
}

// SkippedAsset records a universe element the screener could not evaluate.
// Skips never abort a scan.
type SkippedAsset struct {
	Index  int
	Symbol string
	Reason string
}

// EvaluationRequest asks the orchestrator for a council evaluation of one
// symbol. PersonaIDs nil or empty means the full registered panel.
type EvaluationRequest struct {
	Symbol      string
	ContextText string
	PersonaIDs  []string
}

// Opinion is one persona's structured output for one evaluation request.
// Immutable once produced; owned by the OpinionSet that carries it.
type Opinion struct {
	PersonaID              string
	PersonaName            string
	Position               Position
	Conviction             Conviction
	Reasoning              string
	KeyFactors             []string
	Risks                  []string
	AcknowledgedBlindSpots []string
	Timestamp              time.Time
}

// FailureKind classifies why a single persona evaluation failed.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureService     FailureKind = "service_error"
	FailureParse       FailureKind = "parse_error"
)

// PersonaFailure records one persona unit that did not produce an opinion.
type PersonaFailure struct {
	PersonaID string
	Kind      FailureKind
	Detail    string
}

// OpinionSet is the aggregate result of one council evaluation. Opinions are
// in persona registration order, not arrival order. The invariant
// SucceededCount() + len(Failures) == RequestedCount always holds.
type OpinionSet struct {
	Symbol         string
	Opinions       []Opinion
	Failures       []PersonaFailure
	RequestedCount int
}

// SucceededCount returns the number of personas that produced an opinion.
func (s *OpinionSet) SucceededCount() int {
	return len(s.Opinions)
}

// ConsensusStrength describes how aligned the council's positions are.
type ConsensusStrength string

const (
	ConsensusStrong ConsensusStrength = "strong"
	ConsensusWeak   ConsensusStrength = "weak"
	ConsensusNone   ConsensusStrength = "none"
)

// PatternMatch records the outcome of one scoring pattern check. Every
// detected pattern is recorded even when it does not win, for transparency.
type PatternMatch struct {
	PatternID              string
	Detected               bool
	ScoreImpact            float64
	Insight                string
	ContributingPersonaIDs []string
}

// OpportunityScore is the scorer's pure output for one OpinionSet.
type OpportunityScore struct {
	Value             float64
	ConsensusPosition *Position
	ConsensusStrength ConsensusStrength
	WinningPattern    string
	AllMatches        []PatternMatch
	ActionItems       []string
	RiskFactors       []string
}

// HighConvictionCount returns how many opinions carry High conviction.
func HighConvictionCount(opinions []Opinion) int {
	n := 0
	for _, o := range opinions {
		if o.Conviction == ConvictionHigh {
			n++
		}
	}
	return n
}
