package council

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aristath/council/internal/domain"
	"github.com/aristath/council/internal/personas"
	"github.com/aristath/council/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config holds orchestration parameters.
type Config struct {
	// UnitTimeout bounds each persona's external call. Zero means the
	// default of 60s.
	UnitTimeout time.Duration

	// MaxConcurrent caps simultaneously in-flight external calls. Zero
	// means panel size: council panels are small, so full fan-out is the
	// default. Excess units queue rather than spawn.
	MaxConcurrent int

	// RequestsPerMinute throttles calls to the reasoning collaborator.
	// Zero means unlimited.
	RequestsPerMinute int

	// Temperature and MaxTokens are passed through to every invoke.
	Temperature float64
	MaxTokens   int
}

func (c Config) withDefaults() Config {
	if c.UnitTimeout <= 0 {
		c.UnitTimeout = 60 * time.Second
	}
	if c.Temperature == 0 {
		c.Temperature = 0.8
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	return c
}

// Orchestrator fans one evaluation request out to every requested persona
// and aggregates the settled results. Units are isolated: they share no
// mutable state and communicate nothing to each other while running, so one
// persona's output can never contaminate another's reasoning.
type Orchestrator struct {
	registry *personas.Handle
	reasoner Reasoner
	limiter  *rate.Limiter
	cfg      Config
	log      zerolog.Logger
}

// New creates an Orchestrator.
func New(registry *personas.Handle, reasoner Reasoner, cfg Config, log zerolog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &Orchestrator{
		registry: registry,
		reasoner: reasoner,
		limiter:  limiter,
		cfg:      cfg,
		log:      log.With().Str("module", "council").Logger(),
	}
}

// unitResult is the settled outcome of one persona unit: exactly one of
// opinion or failure is set.
type unitResult struct {
	opinion *domain.Opinion
	failure *domain.PersonaFailure
}

// EvaluateCouncil runs one isolated evaluation per requested persona and
// aggregates the outcomes. Unknown persona ids fail the call before any
// external work starts. A unit's failure never cancels another unit; only
// zero successes fail the whole call, as *domain.CouncilEvaluationFailedError.
//
// Opinions are returned in persona registration order regardless of arrival
// order, so repeated calls with identical external replies produce
// structurally identical OpinionSets except timestamps.
func (o *Orchestrator) EvaluateCouncil(ctx context.Context, req domain.EvaluationRequest) (*domain.OpinionSet, error) {
	defer utils.OperationTimer("evaluate_council", o.log)()

	reg := o.registry.Current()

	ids := req.PersonaIDs
	if len(ids) == 0 {
		ids = reg.ListIDs()
	} else {
		ids = inRegistrationOrder(ids, reg.ListIDs())
	}

	// Resolve everything up front: an unknown id is fatal before any
	// external call is made.
	defs := make([]*personas.Definition, len(ids))
	for i, id := range ids {
		def, err := reg.Get(id)
		if err != nil {
			return nil, err
		}
		defs[i] = def
	}

	o.log.Info().
		Str("symbol", req.Symbol).
		Int("panel_size", len(defs)).
		Msg("Starting council evaluation")

	limit := o.cfg.MaxConcurrent
	if limit <= 0 {
		limit = len(defs)
	}

	results := make([]unitResult, len(defs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, def := range defs {
		g.Go(func() error {
			// Each unit writes only results[i]; no other shared state.
			results[i] = o.evaluateOne(ctx, def, req)
			return nil
		})
	}
	_ = g.Wait() // units never return errors; failures are recorded in results

	set := &domain.OpinionSet{
		Symbol:         req.Symbol,
		RequestedCount: len(defs),
	}
	for _, r := range results {
		if r.opinion != nil {
			set.Opinions = append(set.Opinions, *r.opinion)
		} else {
			set.Failures = append(set.Failures, *r.failure)
		}
	}

	if set.SucceededCount() == 0 {
		o.log.Error().
			Str("symbol", req.Symbol).
			Int("failures", len(set.Failures)).
			Msg("Council evaluation failed: no persona succeeded")
		return nil, &domain.CouncilEvaluationFailedError{Symbol: req.Symbol, Failures: set.Failures}
	}

	o.log.Info().
		Str("symbol", req.Symbol).
		Int("succeeded", set.SucceededCount()).
		Int("failed", len(set.Failures)).
		Msg("Council evaluation complete")

	return set, nil
}

// evaluateOne runs a single persona unit to a settled result. Never panics,
// never returns an error: every failure mode maps to a PersonaFailure.
func (o *Orchestrator) evaluateOne(ctx context.Context, def *personas.Definition, req domain.EvaluationRequest) unitResult {
	system := buildSystemPrompt(def)
	user := buildUserPrompt(req.Symbol, req.ContextText)

	raw, failure := o.invoke(ctx, def.ID, system, user)
	if failure != nil {
		return unitResult{failure: failure}
	}

	payload, perr := parseOpinion(raw)
	if perr != nil {
		// One bounded retry with a structured-output-only instruction.
		o.log.Debug().
			Str("persona", def.ID).
			Err(perr).
			Msg("Opinion parse failed, retrying with strict instruction")

		raw, failure = o.invoke(ctx, def.ID, system, user+strictRetryInstruction)
		if failure != nil {
			return unitResult{failure: failure}
		}
		payload, perr = parseOpinion(raw)
		if perr != nil {
			return unitResult{failure: &domain.PersonaFailure{
				PersonaID: def.ID,
				Kind:      domain.FailureParse,
				Detail:    perr.Error(),
			}}
		}
	}

	return unitResult{opinion: &domain.Opinion{
		PersonaID:              def.ID,
		PersonaName:            def.Name,
		Position:               domain.Position(payload.Position),
		Conviction:             domain.Conviction(payload.Conviction),
		Reasoning:              payload.Reasoning,
		KeyFactors:             payload.KeyFactors,
		Risks:                  payload.Risks,
		AcknowledgedBlindSpots: payload.BlindSpotsAcknowledged,
		Timestamp:              time.Now().UTC(),
	}}
}

// invoke performs one reasoning call under the per-unit timeout and maps
// any error to a PersonaFailure.
func (o *Orchestrator) invoke(ctx context.Context, personaID, system, user string) (string, *domain.PersonaFailure) {
	uctx, cancel := context.WithTimeout(ctx, o.cfg.UnitTimeout)
	defer cancel()

	if o.limiter != nil {
		if err := o.limiter.Wait(uctx); err != nil {
			return "", &domain.PersonaFailure{
				PersonaID: personaID,
				Kind:      domain.FailureTimeout,
				Detail:    "timed out waiting for rate limiter",
			}
		}
	}

	raw, err := o.reasoner.Invoke(uctx, InvokeRequest{
		System:      system,
		User:        user,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		return "", &domain.PersonaFailure{
			PersonaID: personaID,
			Kind:      classifyInvokeError(uctx, err),
			Detail:    err.Error(),
		}
	}

	return raw, nil
}

// inRegistrationOrder reorders requested ids into registry load order, which
// is the canonical order for everything downstream. Ids unknown to the
// registry keep their request order at the tail so resolution still reports
// them as not found.
func inRegistrationOrder(requested, registered []string) []string {
	rank := make(map[string]int, len(registered))
	for i, id := range registered {
		rank[id] = i
	}

	ordered := make([]string, len(requested))
	copy(ordered, requested)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, iok := rank[ordered[i]]
		rj, jok := rank[ordered[j]]
		if iok != jok {
			return iok
		}
		return ri < rj
	})
	return ordered
}

// classifyInvokeError maps an invoke error to a failure kind. Adapters
// pre-classify via *domain.InvokeError; anything else falls back to context
// inspection, then to a generic service error.
func classifyInvokeError(ctx context.Context, err error) domain.FailureKind {
	var ie *domain.InvokeError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return domain.FailureTimeout
	}
	return domain.FailureService
}
