package inference

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Engine runs detection on decoded images.
type Engine interface {
	Predict(ctx context.Context, img image.Image) ([]postprocess.Detection, error)
	PredictBatch(ctx context.Context, imgs []image.Image, maxConcurrency int) ([][]postprocess.Detection, error)
	Close() error
}

// EngineBuilder assembles an Engine with a fluent API. The first error sticks and is
// returned by Build.
type EngineBuilder struct {
	logger     *zap.Logger
	runner     Runner
	closer     func()
	detector   *Detector
	translator *models.Translator
	err        error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{logger: zap.NewNop()}
}

// WithLogger sets the logger handed to the session and the detector. Call it first.
func (b *EngineBuilder) WithLogger(logger *zap.Logger) *EngineBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithTranslator localises the labels of every detection. Call it before WithDetector.
func (b *EngineBuilder) WithTranslator(t *models.Translator) *EngineBuilder {
	b.translator = t
	return b
}

// WithSession loads the model into an ONNX Runtime session and uses it as the runner.
//
// Arguments:
//   - cfg: The session configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithSession(cfg SessionConfig) *EngineBuilder {
	if b.HasError() {
		return b
	}

	session, err := NewSession(cfg, b.logger)
	if err != nil {
		b.err = err
		return b
	}
	b.runner = session
	b.closer = session.Close
	return b
}

// WithRunner uses an already built runner, e.g. a remote inference client.
func (b *EngineBuilder) WithRunner(runner Runner) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if runner == nil {
		b.err = errors.Wrap(model.ErrInvalidConfiguration, "runner is nil")
		return b
	}
	b.runner = runner
	return b
}

// WithDetector sets the post-processing configuration.
//
// Arguments:
//   - cfg: The model configuration.
//   - classes: The class names the model predicts.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithDetector(cfg model.Config, classes *models.ClassSet) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if classes == nil {
		b.err = errors.Wrap(model.ErrInvalidConfiguration, "class set is nil")
		return b
	}
	if err := classes.Check(cfg.NumClasses); err != nil {
		b.err = err
		return b
	}

	detector, err := NewDetector(cfg, classes.LabelFunc(),
		WithLogger(b.logger),
		WithTranslator(b.translator),
	)
	if err != nil {
		b.err = err
		return b
	}
	b.detector = detector
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine. On error, any session already created is closed.
//
// Returns:
//   - Engine: The engine.
//   - error: The error if any.
func (b *EngineBuilder) Build() (Engine, error) {
	err := b.err
	switch {
	case err != nil:
	case b.runner == nil:
		err = errors.Wrap(model.ErrInvalidConfiguration, "runner not configured")
	case b.detector == nil:
		err = errors.Wrap(model.ErrInvalidConfiguration, "detector not configured")
	}
	if err != nil {
		if b.closer != nil {
			b.closer()
		}
		return nil, err
	}

	return &engine{
		runner:   b.runner,
		closer:   b.closer,
		detector: b.detector,
	}, nil
}

// engine implements the Engine interface.
type engine struct {
	runner   Runner
	closer   func()
	detector *Detector
}

// Predict resizes img to the network input, runs the model and returns the detections
// in img's coordinates.
//
// Arguments:
//   - ctx: The context for the prediction.
//   - img: The decoded image.
//
// Returns:
//   - []postprocess.Detection: The detections.
//   - error: The error if any.
func (e *engine) Predict(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	size := e.detector.InputSize()
	buf, err := images.FromImage(img, size.X, size.Y)
	if err != nil {
		return nil, err
	}
	return e.detector.Detect(ctx, e.runner, buf, img.Bounds().Size())
}

// PredictBatch resizes every image and runs them through the detector with at most
// maxConcurrency frames in flight. Results are in input order.
func (e *engine) PredictBatch(ctx context.Context, imgs []image.Image, maxConcurrency int) ([][]postprocess.Detection, error) {
	size := e.detector.InputSize()
	frames := make([]Frame, len(imgs))
	for i, img := range imgs {
		buf, err := images.FromImage(img, size.X, size.Y)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resize image %d", i)
		}
		frames[i] = Frame{Buffer: buf, Original: img.Bounds().Size()}
	}
	return e.detector.DetectBatch(ctx, e.runner, frames, maxConcurrency)
}

func (e *engine) Close() error {
	if e.closer != nil {
		e.closer()
	}
	return nil
}
