package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	undertow "github.com/100PercentTuna/the-undertow-sub000"
	"github.com/100PercentTuna/the-undertow-sub000/config"
	"github.com/100PercentTuna/the-undertow-sub000/internal/server"
	"github.com/100PercentTuna/the-undertow-sub000/internal/telemetry"
	"github.com/100PercentTuna/the-undertow-sub000/pipeline"
	"github.com/100PercentTuna/the-undertow-sub000/types"
)

// storyFile is the YAML shape accepted by `undertow run --story`. The
// analysis block is optional enrichment; everything else is the story.
type storyFile struct {
	Story    types.StoryContext     `yaml:",inline"`
	Analysis *types.AnalysisContext `yaml:"analysis,omitempty"`
}

func runStory(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file (YAML)")
	storyPath := fs.String("story", "", "path to the story file (YAML, required)")
	offline := fs.Bool("offline", false, "use the built-in heuristic agents")
	outPath := fs.String("out", "", "write the full result as JSON")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus /metrics on this address")
	_ = fs.Parse(args)

	if *storyPath == "" {
		fmt.Fprintln(os.Stderr, "run: --story is required")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 2
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	story, analysis, err := loadStory(*storyPath)
	if err != nil {
		logger.Error("load story", zap.Error(err))
		return 2
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Error("init telemetry", zap.Error(err))
		return 2
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(ctx)
	}()

	var opts []undertow.Option
	if *offline {
		opts = append(opts, undertow.WithHeuristicAgents())
	}
	sys, err := undertow.Build(cfg, logger, opts...)
	if err != nil {
		logger.Error("build pipeline", zap.Error(err))
		return 2
	}
	defer func() { _ = sys.Close() }()

	if addr := metricsListenAddr(*metricsAddr, cfg.Metrics); addr != "" {
		ops := server.NewOps(prometheus.DefaultGatherer, server.Config{Addr: addr}, logger)
		if err := ops.Start(); err != nil {
			logger.Error("start metrics listener", zap.Error(err))
			return 2
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ops.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := sys.Controller.Run(ctx, story, analysis)
	printSummary(result)

	if *outPath != "" {
		if err := writeResult(*outPath, result); err != nil {
			logger.Error("write result", zap.Error(err))
			return 2
		}
	}
	// Degraded runs still exit 0; the result carries the state.
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	return loader.Load()
}

func loadStory(path string) (*types.StoryContext, *types.AnalysisContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read story file: %w", err)
	}
	var sf storyFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, nil, fmt.Errorf("parse story file: %w", err)
	}
	if err := sf.Story.Validate(); err != nil {
		return nil, nil, err
	}
	return &sf.Story, sf.Analysis, nil
}

// metricsListenAddr prefers the flag, then the config, then nothing.
func metricsListenAddr(flagAddr string, cfg config.MetricsConfig) string {
	if flagAddr != "" {
		return flagAddr
	}
	if cfg.Enabled {
		return cfg.Addr
	}
	return ""
}

func printSummary(result *pipeline.PipelineResult) {
	fmt.Printf("run %s: %s\n", result.RunID, result.Status())
	fmt.Printf("  story:    %s\n", result.Headline)
	fmt.Printf("  quality:  %.3f  confidence: %.3f  disputed: %.2f\n",
		result.FinalQuality, result.Confidence, result.DisputedRatio)
	fmt.Printf("  cost:     $%.4f  duration: %s\n", result.TotalCost, result.TotalDuration.Round(time.Millisecond))
	for _, stage := range result.Stages {
		gateState := "-"
		if stage.Gate != nil {
			if stage.Gate.Passed {
				gateState = "pass"
			} else {
				gateState = "FAIL"
			}
		}
		fmt.Printf("  stage %-14s quality=%.3f gate=%s\n", stage.Name, stage.Quality, gateState)
	}
	if result.RequiresHumanReview {
		fmt.Println("  human review required:")
		for _, reason := range result.ReviewReasons {
			fmt.Printf("    - %s\n", reason)
		}
		if result.EscalationID != "" {
			fmt.Printf("  escalation: %s\n", result.EscalationID)
		}
	}
	if result.Article != nil {
		fmt.Printf("\n%s\n", result.Article.Title)
		fmt.Println(result.Article.Body)
	}
}

func writeResult(path string, result *pipeline.PipelineResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
