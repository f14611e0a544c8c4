package benchmark

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
)

// Resolution is the size of the original image detections are mapped back onto.
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// CommonResolutions are typical camera frame sizes.
var CommonResolutions = []Resolution{
	{Width: 640, Height: 640, Name: "640x640"},
	{Width: 1280, Height: 720, Name: "720p"},
	{Width: 1920, Height: 1080, Name: "1080p"},
	{Width: 3840, Height: 2160, Name: "4K"},
}

// Scenario describes one synthetic workload. Slots is the number of dense rows; strided
// outputs always hold every grid slot. Candidates is the number of slots above the
// confidence threshold.
type Scenario struct {
	Name       string       `json:"name"`
	Layout     model.Layout `json:"layout"`
	Resolution Resolution   `json:"resolution"`
	Slots      int          `json:"slots"`
	Candidates int          `json:"candidates"`
	ClassAware bool         `json:"class_aware"`
	Workers    int          `json:"workers"`
	Iterations int          `json:"iterations"`
	WarmupRuns int          `json:"warmup_runs"`
	Seed       int64        `json:"seed"`
}

// Config returns the model configuration the scenario runs with.
func (s Scenario) Config() model.Config {
	cfg := model.DefaultConfig()
	cfg.Layout = s.Layout
	cfg.ClassAware = s.ClassAware
	if s.Workers > 0 {
		cfg.Workers = s.Workers
	}
	return cfg
}

// Validate rejects scenarios that cannot produce a measurement.
func (s Scenario) Validate() error {
	if s.Iterations <= 0 {
		return errors.Wrapf(model.ErrInvalidConfiguration, "scenario %s: iterations must be positive", s.Name)
	}
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 {
		return errors.Wrapf(model.ErrInvalidConfiguration, "scenario %s: empty resolution", s.Name)
	}
	if s.Candidates < 0 || s.Candidates > slotCount(s.Config(), s.Slots) {
		return errors.Wrapf(model.ErrInvalidConfiguration,
			"scenario %s: %d candidates do not fit the output", s.Name, s.Candidates)
	}
	return s.Config().Validate()
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder for a strided 1080p scenario.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Layout:     model.LayoutStrided,
			Resolution: CommonResolutions[2],
			Slots:      25200,
			Candidates: 100,
			Workers:    1,
			Iterations: 100,
			WarmupRuns: 10,
			Seed:       1,
		},
	}
}

// WithLayout sets the output layout
func (sb *ScenarioBuilder) WithLayout(layout model.Layout) *ScenarioBuilder {
	sb.scenario.Layout = layout
	return sb
}

// WithResolution sets the original image resolution
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithCandidates sets how many slots clear the threshold
func (sb *ScenarioBuilder) WithCandidates(candidates int) *ScenarioBuilder {
	sb.scenario.Candidates = candidates
	return sb
}

// WithSlots sets the number of dense rows
func (sb *ScenarioBuilder) WithSlots(slots int) *ScenarioBuilder {
	sb.scenario.Slots = slots
	return sb
}

// WithClassAware switches to per-class suppression
func (sb *ScenarioBuilder) WithClassAware(classAware bool) *ScenarioBuilder {
	sb.scenario.ClassAware = classAware
	return sb
}

// WithWorkers sets the number of stride levels decoded concurrently
func (sb *ScenarioBuilder) WithWorkers(workers int) *ScenarioBuilder {
	sb.scenario.Workers = workers
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// QuickScenarios covers both layouts at 1080p.
func QuickScenarios() []Scenario {
	return []Scenario{
		NewScenarioBuilder("strided-1080p").WithIterations(20).WithWarmupRuns(2).Build(),
		NewScenarioBuilder("dense-1080p").WithLayout(model.LayoutDense).WithIterations(20).WithWarmupRuns(2).Build(),
	}
}

// ComprehensiveScenarios sweeps resolutions, candidate density, suppression mode and
// decode concurrency.
func ComprehensiveScenarios() []Scenario {
	var scenarios []Scenario
	for _, res := range CommonResolutions {
		for _, candidates := range []int{10, 100, 1000} {
			for _, layout := range []model.Layout{model.LayoutStrided, model.LayoutDense} {
				scenarios = append(scenarios, NewScenarioBuilder(
					fmt.Sprintf("%s-%s-%d", layout, res.Name, candidates)).
					WithLayout(layout).
					WithResolution(res.Width, res.Height).
					WithCandidates(candidates).
					Build())
			}
		}
	}
	scenarios = append(scenarios,
		NewScenarioBuilder("strided-class-aware").WithClassAware(true).WithCandidates(1000).Build(),
		NewScenarioBuilder("strided-3-workers").WithWorkers(3).WithCandidates(1000).Build(),
	)
	return scenarios
}
