package main

import (
	"fmt"
	"log/slog"

	"github.com/livinlefevreloca/scout/internal/ai"
	"github.com/livinlefevreloca/scout/internal/analyzer"
	"github.com/livinlefevreloca/scout/internal/classifier"
	"github.com/livinlefevreloca/scout/internal/config"
	"github.com/livinlefevreloca/scout/internal/discovery"
	"github.com/livinlefevreloca/scout/internal/orchestrator"
	"github.com/livinlefevreloca/scout/internal/planner"
	"github.com/livinlefevreloca/scout/internal/store"
	"github.com/livinlefevreloca/scout/internal/syncer"
	"github.com/livinlefevreloca/scout/internal/tracker"
)

// newOrchestrator wires the run pipeline against the Anthropic API
func newOrchestrator(cfg *config.Config, st *store.Store, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	client, err := ai.NewClient(cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}
	return buildOrchestrator(cfg, st, client, logger)
}

// buildOrchestrator wires the pipeline around any completer. Analysis always
// goes through the model; planning and urgency judgment only when configured.
func buildOrchestrator(cfg *config.Config, st *store.Store, completer ai.Completer, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	registry := discovery.NewDefaultRegistry(cfg.Discovery)
	pages := discovery.NewPageFetcher(cfg.Discovery, logger)

	var capability planner.Capability = planner.KeywordCapability{KeywordsPerQuery: cfg.Planner.KeywordsPerQuery}
	if cfg.Planner.Mode == "ai" {
		capability = ai.NewPlanner(completer, cfg.Planner.MaxQueries)
	}

	var judge classifier.UrgencyJudge = classifier.SignalJudge{}
	if cfg.Classifier.Judge == "ai" {
		judge = ai.NewJudge(completer)
	}
	memo, err := classifier.NewMemoJudge(judge, cfg.AI.JudgeCacheSize)
	if err != nil {
		return nil, err
	}

	writer, err := syncer.NewSyncer(cfg.Syncer, st, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create result writer: %w", err)
	}

	return orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Scouts:     st,
		Tracker:    tracker.New(st, logger),
		Planner:    planner.New(capability, registry, logger),
		Discoverer: discovery.NewDiscoverer(registry, cfg.Discovery, logger),
		Analyzer:   analyzer.New(ai.NewExtractor(completer, pages, logger), cfg.Runner, logger),
		Classifier: classifier.New(memo, logger),
		Writer:     writer,
	}, logger), nil
}
