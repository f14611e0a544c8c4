package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/models"
)

// Suite manages and executes benchmark scenarios
type Suite struct {
	logger    *zap.Logger
	outputDir string
	mu        sync.RWMutex
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - outputDir: Where SaveResults writes its files.
//   - logger: Receives per-scenario progress; nil disables logging.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(outputDir string, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{
		logger:    logger,
		outputDir: outputDir,
		scenarios: make([]Scenario, 0),
		results:   make([]PerformanceMetrics, 0),
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// RunScenario post-processes a synthetic output Iterations times and reports the timing.
//
// Arguments:
//   - ctx: Checked between iterations.
//   - scenario: The workload.
//
// Returns:
//   - *PerformanceMetrics: The measurements.
//   - error: An ErrInvalidConfiguration for a bad scenario, or the context error.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	cfg := scenario.Config()
	detector, err := inference.NewDetector(cfg, models.YOLOClasses().LabelFunc())
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(scenario.Seed))
	output := SyntheticOutput(cfg, scenario.Slots, scenario.Candidates, rng)
	original := image.Pt(scenario.Resolution.Width, scenario.Resolution.Height)

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := detector.Postprocess(output, original); err != nil {
			return nil, errors.Wrap(err, "warmup failed")
		}
	}

	startMem := readMemStats()
	startTime := time.Now()
	detections, failures := 0, 0

	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := detector.Postprocess(output, original)
		if err != nil {
			failures++
			continue
		}
		detections = len(result)
	}

	total := time.Since(startTime)
	endMem := readMemStats()

	return &PerformanceMetrics{
		Scenario:            scenario,
		Timestamp:           startTime,
		TotalDuration:       total,
		PostProcessDuration: total / time.Duration(scenario.Iterations),
		FramesPerSecond:     float64(scenario.Iterations) / total.Seconds(),
		MemoryStats:         memoryDelta(startMem, endMem),
		NumCPU:              runtime.NumCPU(),
		DetectionCount:      detections,
		ErrorRate:           float64(failures) / float64(scenario.Iterations),
	}, nil
}

// RunAllScenarios executes every scenario. A failing scenario is logged and skipped;
// only cancellation stops the run.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	bs.mu.RLock()
	scenarios := make([]Scenario, len(bs.scenarios))
	copy(scenarios, bs.scenarios)
	bs.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			bs.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("fps", metrics.FramesPerSecond),
			zap.Duration("postProcess", metrics.PostProcessDuration),
			zap.Int("detections", metrics.DetectionCount),
		)
	}
	return nil
}

// SaveResults writes the results as JSON and a CSV summary into the output directory.
//
// Returns:
//   - []string: The files written.
//   - error: An error if the directory or a file cannot be written.
func (bs *Suite) SaveResults() ([]string, error) {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))
	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write results file")
	}
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return nil, errors.Wrap(err, "failed to save summary CSV")
	}

	bs.logger.Info("saved benchmark results", zap.String("results", resultsFile), zap.String("summary", summaryFile))
	return []string{resultsFile, summaryFile}, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	header := "Scenario,Layout,Resolution,Candidates,Workers,ClassAware,FPS,PostProcess_us,Alloc_KB,Detections,Error_Rate\n"
	if _, err := file.WriteString(header); err != nil {
		return err
	}

	for _, r := range results {
		line := fmt.Sprintf("%s,%s,%s,%d,%d,%t,%.2f,%.2f,%.2f,%d,%.4f\n",
			r.Scenario.Name,
			r.Scenario.Layout,
			r.Scenario.Resolution.Name,
			r.Scenario.Candidates,
			r.Scenario.Workers,
			r.Scenario.ClassAware,
			r.FramesPerSecond,
			float64(r.PostProcessDuration.Nanoseconds())/1e3,
			float64(r.MemoryStats.TotalAllocBytes)/1024,
			r.DetectionCount,
			r.ErrorRate,
		)
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
