// Command llmos is the kernel's CLI surface: a single-shot dispatch, an
// interactive REPL, and a boot subcommand that just validates wiring,
// grounded on the reference service's cmd/agent entry point.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"llmos/internal/agentregistry"
	"llmos/internal/cognitive"
	"llmos/internal/config"
	"llmos/internal/dispatcher"
	"llmos/internal/economy"
	"llmos/internal/eventbus"
	"llmos/internal/observability"
	"llmos/internal/orchestrator"
	"llmos/internal/project"
	"llmos/internal/toolexec"
	"llmos/internal/trace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	strategy := flag.String("strategy", "", "mode strategy override (auto | cost-optimized | speed-optimized | forced-learner | forced-follower)")
	projectName := flag.String("project", "", "project name (ORCHESTRATOR mode; auto-created if empty)")
	maxCost := flag.Float64("max-cost", cfg.BudgetUSD, "per-dispatch cost ceiling in USD")
	flag.Parse()

	observability.InitLogger(cfg.LogPath, cfg.LogLevel)
	ctx := context.Background()
	shutdown, err := observability.InitOTel(ctx, cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel_init_failed_continuing_without_observability")
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	d, err := wire(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring kernel components")
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: llmos [boot|interactive|<goal...>]")
		os.Exit(2)
	}

	switch args[0] {
	case "boot":
		log.Info().Msg("kernel wired successfully; exiting (boot only validates wiring)")
	case "interactive":
		runInteractive(ctx, d, *strategy, *projectName, *maxCost)
	default:
		goal := strings.Join(args, " ")
		runOnce(ctx, d, goal, *strategy, *projectName, *maxCost)
	}
}

// wire constructs every kernel component and returns the assembled
// Dispatcher, matching the reference service's single-process composition
// root pattern.
func wire(ctx context.Context, cfg config.Config) (*dispatcher.Dispatcher, error) {
	backend, err := cognitive.NewBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("construct cognitive backend: %w", err)
	}

	var store *trace.Store
	if cfg.DatabaseURL != "" {
		store, err = trace.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres trace store: %w", err)
		}
	} else {
		store, err = trace.NewFileStore(cfg.TracesDir())
		if err != nil {
			return nil, fmt.Errorf("open trace store: %w", err)
		}
	}
	matcher := trace.NewMatcher(store)

	projects, err := project.NewManager(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("open project manager: %w", err)
	}

	registry := agentregistry.NewRegistry(nil)
	executor := toolexec.New(cfg.Workspace)
	adapter := cognitive.NewAdapter(backend, executor)
	bus := eventbus.New()
	econ := economy.NewPersistent(cfg.BudgetUSD, cfg.SpendLogPath())

	if cfg.Memory.EnableLLMMatching {
		var cache trace.SimilarityCache
		if cfg.SimilarityCacheRedisURL != "" {
			redisCache, err := trace.NewRedisSimilarityCache(cfg.SimilarityCacheRedisURL)
			if err != nil {
				return nil, fmt.Errorf("connect similarity cache: %w", err)
			}
			cache = redisCache
		} else {
			cache = trace.NewInMemorySimilarityCache()
		}
		llmClassifier := cognitive.NewLLMClassifier(backend, econ)
		matcher = matcher.WithClassifier(trace.NewCachedClassifier(llmClassifier, cache))
	}

	orch := &orchestrator.Orchestrator{
		Adapter:         adapter,
		Registry:        registry,
		Projects:        projects,
		Economy:         econ,
		Bus:             bus,
		Matcher:         matcher,
		Store:           store,
		StepEstimateUSD: cfg.Dispatcher.LearnerEstimateUSD,
	}

	return dispatcher.New(econ, store, matcher, bus, adapter, orch, cfg), nil
}

func runOnce(ctx context.Context, d *dispatcher.Dispatcher, goal, strategy, projectName string, maxCost float64) {
	result, err := d.Dispatch(ctx, goal, strategy, projectName, maxCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("mode=%s success=%t cost_usd=%.4f\n", result.Mode, result.Success, result.CostUSD)
	if result.Output != "" {
		fmt.Println(result.Output)
	}
}

func runInteractive(ctx context.Context, d *dispatcher.Dispatcher, strategy, projectName string, maxCost float64) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("llmos interactive mode; type a goal and press enter, or 'exit' to quit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		goal := strings.TrimSpace(scanner.Text())
		if goal == "" {
			continue
		}
		if goal == "exit" || goal == "quit" {
			return
		}
		runOnce(ctx, d, goal, strategy, projectName, maxCost)
	}
}
