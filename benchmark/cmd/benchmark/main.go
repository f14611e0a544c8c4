package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/benchmark"
	"github.com/nvr-ai/go-yolo/logger"
)

func main() {
	var (
		outputDir     = flag.String("output", "./benchmark_results", "Output directory for results")
		comprehensive = flag.Bool("comprehensive", false, "Run comprehensive benchmark scenarios")
		iterations    = flag.Int("iterations", 0, "Override the iterations of every scenario")
		timeout       = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
		debug         = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	log := logger.New(*debug)
	defer func() { _ = log.Sync() }()

	scenarios := benchmark.QuickScenarios()
	if *comprehensive {
		scenarios = benchmark.ComprehensiveScenarios()
	}

	suite := benchmark.NewSuite(*outputDir, log)
	for _, scenario := range scenarios {
		if *iterations > 0 {
			scenario.Iterations = *iterations
		}
		suite.AddScenario(scenario)
	}
	log.Info("starting benchmark", zap.Int("scenarios", len(scenarios)))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := suite.RunAllScenarios(ctx); err != nil {
		log.Fatal("benchmark execution failed", zap.Error(err))
	}
	if _, err := suite.SaveResults(); err != nil {
		log.Fatal("failed to save results", zap.Error(err))
	}

	var (
		bestFPS      float64
		bestScenario string
	)
	for _, result := range suite.GetResults() {
		if result.FramesPerSecond > bestFPS {
			bestFPS = result.FramesPerSecond
			bestScenario = result.Scenario.Name
		}
	}
	log.Info("benchmark completed",
		zap.Duration("duration", time.Since(start)),
		zap.String("bestScenario", bestScenario),
		zap.Float64("bestFPS", bestFPS),
	)
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Measures YOLO post-processing on synthetic model outputs.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -iterations 50\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "  %s -comprehensive -output ./results\n", filepath.Base(os.Args[0]))
	}
}
