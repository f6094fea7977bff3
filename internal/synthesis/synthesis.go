// Package synthesis turns a complete opinion set into a free-form
// cross-opinion narrative: where the council agrees, where it splits, and
// what none of its members can see. Synthesis is strictly best-effort; a
// failed call or unparseable reply degrades to an unavailable result and
// never disturbs the already-computed score.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/council/internal/council"
	"github.com/aristath/council/internal/domain"
	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog"
)

// Result is the parsed synthesis narrative. Available is false whenever the
// collaborator call or reply parsing failed; all lists are empty then.
type Result struct {
	Available            bool
	ConsensusPoints      []string
	Disagreements        []string
	NonObviousInsights   []string
	CollectiveBlindSpots []string
}

// Unavailable is the degraded result returned on any synthesis failure.
func Unavailable() *Result {
	return &Result{}
}

// Adapter assembles the synthesis prompt, invokes the reasoning
// collaborator once, and parses the structured reply.
type Adapter struct {
	reasoner    council.Reasoner
	temperature float64
	maxTokens   int
	log         zerolog.Logger
}

// New creates a synthesis Adapter. Zero maxTokens falls back to 1024.
func New(reasoner council.Reasoner, temperature float64, maxTokens int, log zerolog.Logger) *Adapter {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Adapter{
		reasoner:    reasoner,
		temperature: temperature,
		maxTokens:   maxTokens,
		log:         log.With().Str("module", "synthesis").Logger(),
	}
}

// Synthesize produces the cross-opinion narrative for set. Never returns an
// error: every failure path yields an unavailable Result.
func (a *Adapter) Synthesize(ctx context.Context, set *domain.OpinionSet) *Result {
	if set == nil || len(set.Opinions) == 0 {
		return Unavailable()
	}

	raw, err := a.reasoner.Invoke(ctx, council.InvokeRequest{
		User:        buildSynthesisPrompt(set),
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", set.Symbol).Msg("synthesis call failed, continuing without narrative")
		return Unavailable()
	}

	res, err := parseSynthesis(raw)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", set.Symbol).Msg("synthesis reply unparseable, continuing without narrative")
		return Unavailable()
	}
	return res
}

// buildSynthesisPrompt serializes the opinion set in its canonical order
// and frames the cross-perspective questions.
func buildSynthesisPrompt(set *domain.OpinionSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are analyzing competing investment perspectives on %s.\n\n", set.Symbol)
	b.WriteString("Here are the analyses from different investor personas:\n")

	for _, o := range set.Opinions {
		fmt.Fprintf(&b, "\n## %s (%s, %s conviction)\n", o.PersonaName, o.Position, o.Conviction)
		fmt.Fprintf(&b, "Reasoning: %s\n", o.Reasoning)
		fmt.Fprintf(&b, "Key Factors: %s\n", strings.Join(o.KeyFactors, ", "))
		fmt.Fprintf(&b, "Risks: %s\n", strings.Join(o.Risks, ", "))
		fmt.Fprintf(&b, "Acknowledged Blind Spots: %s\n", strings.Join(o.AcknowledgedBlindSpots, ", "))
	}

	b.WriteString(`
Synthesize these perspectives. Focus on:
1. CONSENSUS - Where do they agree? Is the agreement meaningful or just conventional wisdom?
2. DISAGREEMENTS - Where do they differ and WHY? What philosophical differences drive this?
3. INSIGHTS - What non-obvious insights emerge from the disagreement?
4. BLIND SPOTS - What are ALL of them missing?

Respond in JSON format:
{
    "consensus_points": ["..."],
    "disagreements": ["topic and the philosophical driver behind it"],
    "non_obvious_insights": ["..."],
    "collective_blind_spots": ["what they are all missing"]
}

Be provocative about disagreements - that is where insight lives.`)

	return b.String()
}

type synthesisPayload struct {
	ConsensusPoints      []string `json:"consensus_points"`
	Disagreements        []string `json:"disagreements"`
	NonObviousInsights   []string `json:"non_obvious_insights"`
	CollectiveBlindSpots []string `json:"collective_blind_spots"`
}

func parseSynthesis(raw string) (*Result, error) {
	body := council.ExtractJSON(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON object in synthesis reply")
	}

	var payload synthesisPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil {
			return nil, fmt.Errorf("decode synthesis reply: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return nil, fmt.Errorf("decode repaired synthesis reply: %w", err)
		}
	}

	return &Result{
		Available:            true,
		ConsensusPoints:      payload.ConsensusPoints,
		Disagreements:        payload.Disagreements,
		NonObviousInsights:   payload.NonObviousInsights,
		CollectiveBlindSpots: payload.CollectiveBlindSpots,
	}, nil
}
