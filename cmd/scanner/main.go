// Package main is the entry point for the council opportunity scanner.
// One run screens the configured universe, puts every triggered asset in
// front of the persona council, scores the resulting opinion sets, and
// emits opportunity records plus a console report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aristath/council/internal/clients/enrichment"
	openaiclient "github.com/aristath/council/internal/clients/openai"
	"github.com/aristath/council/internal/config"
	"github.com/aristath/council/internal/council"
	"github.com/aristath/council/internal/domain"
	"github.com/aristath/council/internal/opportunities"
	"github.com/aristath/council/internal/personas"
	"github.com/aristath/council/internal/scoring"
	"github.com/aristath/council/internal/screener"
	"github.com/aristath/council/internal/synthesis"
	"github.com/aristath/council/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("scan failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Persona registry: embedded default council unless a directory of
	// custom definitions is configured.
	var (
		registry *personas.Registry
		err      error
	)
	if cfg.PersonaDir != "" {
		registry, err = personas.Load(cfg.PersonaDir)
	} else {
		registry, err = personas.Default()
	}
	if err != nil {
		return fmt.Errorf("load personas: %w", err)
	}
	handle := personas.NewHandle(registry)
	log.Info().Int("personas", registry.Len()).Msg("council assembled")

	// Trigger conditions.
	var conditions []screener.Condition
	if cfg.TriggersPath != "" {
		conditions, err = screener.LoadConditions(cfg.TriggersPath)
	} else {
		conditions, err = screener.DefaultConditions()
	}
	if err != nil {
		return fmt.Errorf("load trigger conditions: %w", err)
	}
	scr := screener.New(conditions, log)

	universe, err := loadUniverse(cfg.UniversePath, cfg.Watchlist)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	if len(universe) == 0 {
		log.Warn().Msg("universe is empty, nothing to scan")
		return nil
	}

	triggered, skipped := scr.Scan(universe)
	for _, s := range skipped {
		log.Warn().Int("index", s.Index).Str("symbol", s.Symbol).Str("reason", s.Reason).Msg("universe element skipped")
	}
	log.Info().Int("scanned", len(universe)).Int("triggered", len(triggered)).Msg("screening complete")
	if len(triggered) == 0 {
		opportunities.RenderTable(os.Stdout, nil)
		return nil
	}

	reasoner := openaiclient.NewClient(openaiclient.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.Model,
	}, log)

	orch := council.New(handle, reasoner, council.Config{
		UnitTimeout:       cfg.UnitTimeout,
		MaxConcurrent:     cfg.MaxConcurrent,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Temperature:       cfg.PersonaTemperature,
		MaxTokens:         cfg.MaxOutputTokens,
	}, log)

	scorer := scoring.New(scoring.Config{}, log)
	synth := synthesis.New(reasoner, cfg.SynthesisTemperature, cfg.MaxOutputTokens, log)
	sink := opportunities.NewLogSink(log)

	var enricher *enrichment.Client
	if cfg.FinnhubAPIKey != "" {
		enricher = enrichment.NewClient(enrichment.Config{APIKey: cfg.FinnhubAPIKey}, log)
	}

	scanID := uuid.New()
	var records []opportunities.Record

	for _, asset := range triggered {
		if ctx.Err() != nil {
			log.Warn().Msg("scan interrupted")
			break
		}

		contextText := ""
		if enricher != nil {
			text, err := enricher.Enrich(ctx, asset.Symbol)
			switch {
			case err == nil:
				contextText = text
			case errors.Is(err, domain.ErrEnrichmentUnavailable):
				log.Debug().Str("symbol", asset.Symbol).Msg("no enrichment context available")
			}
		}

		set, err := orch.EvaluateCouncil(ctx, domain.EvaluationRequest{
			Symbol:      asset.Symbol,
			ContextText: contextText,
			PersonaIDs:  panelFor(asset),
		})
		if err != nil {
			// One asset's failure never aborts the scan.
			log.Error().Err(err).Str("symbol", asset.Symbol).Msg("council evaluation failed")
			continue
		}

		scoreOpts := []scoring.Option{scoring.WithTriggerPriority(asset.Priority)}
		if cfg.MarketSentiment != "" {
			scoreOpts = append(scoreOpts, scoring.WithMarketSentiment(cfg.MarketSentiment))
		}
		score := scorer.Score(set, scoreOpts...)

		rec := opportunities.BuildRecord(scanID, set, score, contextText, asset.PriceAtScan)
		if err := sink.Store(ctx, rec); err != nil {
			log.Error().Err(err).Str("symbol", asset.Symbol).Msg("record store failed")
		}
		records = append(records, rec)

		if narrative := synth.Synthesize(ctx, set); narrative.Available {
			printNarrative(os.Stdout, asset.Symbol, narrative)
		}
	}

	opportunities.RenderTable(os.Stdout, records)
	return nil
}

// minRelevantPanel is the smallest trigger-relevant persona subset worth
// evaluating on its own; below it the full council runs instead.
const minRelevantPanel = 3

// panelFor prefers the personas the matched triggers name, when enough of
// them exist to form a meaningful panel. Nil means the full council.
func panelFor(asset domain.TriggeredAsset) []string {
	if len(asset.RelevantPersonaIDs) >= minRelevantPanel {
		return asset.RelevantPersonaIDs
	}
	return nil
}

// loadUniverse reads the metrics file and keeps only watchlist symbols when
// a watchlist is configured.
func loadUniverse(path string, watchlist []string) ([]domain.AssetMetrics, error) {
	if path == "" {
		return nil, fmt.Errorf("universe path not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var universe []domain.AssetMetrics
	if err := yaml.Unmarshal(data, &universe); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if len(watchlist) == 0 {
		return universe, nil
	}

	wanted := make(map[string]struct{}, len(watchlist))
	for _, s := range watchlist {
		wanted[s] = struct{}{}
	}
	var filtered []domain.AssetMetrics
	for _, a := range universe {
		if _, ok := wanted[a.Symbol]; ok {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

func printNarrative(w io.Writer, symbol string, res *synthesis.Result) {
	fmt.Fprintf(w, "\n=== Council synthesis: %s ===\n", symbol)
	printSection(w, "Consensus", res.ConsensusPoints)
	printSection(w, "Disagreements", res.Disagreements)
	printSection(w, "Non-obvious insights", res.NonObviousInsights)
	printSection(w, "Collective blind spots", res.CollectiveBlindSpots)
}

func printSection(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}
