// Package inference - Runs the detection pipeline around an external inference engine.
package inference

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/model/preprocess"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/models/yolo"
)

// Runner executes a model on a planar input tensor and returns its raw output.
type Runner interface {
	Run(ctx context.Context, input *tensor.Dense) ([]float32, error)
}

// Frame is one image to detect on: a buffer already resized to the network input, and
// the size of the image it was resized from.
type Frame struct {
	Buffer   images.PixelBuffer
	Original image.Point
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger for the detector and its decoder.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTranslator fills Detection.Localized with the translator's display names.
func WithTranslator(t *models.Translator) Option {
	return func(d *Detector) {
		d.translator = t
	}
}

// Detector turns pixel buffers into labeled detections.
type Detector struct {
	cfg        model.Config
	labels     postprocess.LabelFunc
	translator *models.Translator
	logger     *zap.Logger
	decoder    *yolo.Decoder
	pre        *preprocess.Preprocessor
	nms        postprocess.NMSConfig
}

// NewDetector validates cfg and builds a detector.
//
// Arguments:
//   - cfg: The model configuration.
//   - labels: Resolves class indices to names.
//   - opts: Optional settings.
//
// Returns:
//   - *Detector: The detector.
//   - error: An ErrInvalidConfiguration if cfg or labels are rejected.
func NewDetector(cfg model.Config, labels postprocess.LabelFunc, opts ...Option) (*Detector, error) {
	if labels == nil {
		return nil, errors.Wrap(model.ErrInvalidConfiguration, "a label lookup is required")
	}

	d := &Detector{
		cfg:    cfg,
		labels: labels,
		logger: zap.NewNop(),
		nms: postprocess.NMSConfig{
			IoUThreshold:  cfg.IoUThreshold,
			ClassAware:    cfg.ClassAware,
			MaxDetections: cfg.MaxDetections,
		},
	}
	for _, opt := range opts {
		opt(d)
	}

	decoder, err := yolo.NewDecoder(cfg, yolo.WithLogger(d.logger))
	if err != nil {
		return nil, err
	}
	d.decoder = decoder

	pre, err := preprocess.NewPreprocessor(cfg.Normalization)
	if err != nil {
		return nil, err
	}
	d.pre = pre

	return d, nil
}

// Config returns the model configuration.
func (d *Detector) Config() model.Config {
	return d.cfg
}

// InputSize returns the square network input size as a point.
func (d *Detector) InputSize() image.Point {
	return image.Pt(d.cfg.InputSize, d.cfg.InputSize)
}

// Preprocess converts a buffer of the network input size into the planar input tensor.
//
// Arguments:
//   - buf: The resized RGB buffer.
//
// Returns:
//   - *tensor.Dense: The (3, H, W) tensor.
//   - error: An ErrShapeMismatch if buf is malformed or not the network input size.
func (d *Detector) Preprocess(buf images.PixelBuffer) (*tensor.Dense, error) {
	if buf.Width != d.cfg.InputSize || buf.Height != d.cfg.InputSize {
		return nil, errors.Wrapf(model.ErrShapeMismatch,
			"buffer is %dx%d, network input is %dx%d", buf.Width, buf.Height, d.cfg.InputSize, d.cfg.InputSize)
	}
	return d.pre.Tensor(buf)
}

// Postprocess decodes a raw output, maps the candidates onto the original image,
// suppresses overlaps and labels the survivors.
//
// Arguments:
//   - output: The raw network output.
//   - original: The size of the original image.
//
// Returns:
//   - []postprocess.Detection: The detections, highest confidence first.
//   - error: An ErrShapeMismatch if original is empty.
func (d *Detector) Postprocess(output []float32, original image.Point) ([]postprocess.Detection, error) {
	if original.X <= 0 || original.Y <= 0 {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "original image size %v is empty", original)
	}

	candidates := d.decoder.Decode(output)
	rescaled := postprocess.RescaleAll(candidates, d.InputSize(), original)
	kept := postprocess.ApplyNMS(rescaled, &d.nms)
	detections := postprocess.Label(kept, d.labels)

	if d.translator != nil {
		for i := range detections {
			detections[i].Localized = d.translator.Translate(detections[i].Label)
		}
	}

	d.logger.Debug("postprocessed output",
		zap.Int("candidates", len(candidates)),
		zap.Int("rescaled", len(rescaled)),
		zap.Int("detections", len(detections)),
	)
	return detections, nil
}

// Detect runs the full pipeline on one frame.
//
// Arguments:
//   - ctx: Cancels the call before the runner is invoked.
//   - runner: The inference engine.
//   - buf: The resized RGB buffer.
//   - original: The size of the original image.
//
// Returns:
//   - []postprocess.Detection: The detections.
//   - error: A shape error, a runner error or the context error.
func (d *Detector) Detect(ctx context.Context, runner Runner, buf images.PixelBuffer, original image.Point) ([]postprocess.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := d.Preprocess(buf)
	if err != nil {
		return nil, err
	}

	output, err := runner.Run(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run model")
	}

	return d.Postprocess(output, original)
}

// DetectBatch runs Detect on independent frames with at most maxConcurrency in flight.
// The first failure cancels the remaining frames.
//
// Arguments:
//   - ctx: The parent context.
//   - runner: The inference engine. It must be safe for concurrent use.
//   - frames: The frames to process.
//   - maxConcurrency: The concurrency limit; values below 1 mean 1.
//
// Returns:
//   - [][]postprocess.Detection: The detections per frame, in frame order.
//   - error: The first error encountered.
func (d *Detector) DetectBatch(ctx context.Context, runner Runner, frames []Frame, maxConcurrency int) ([][]postprocess.Detection, error) {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	results := make([][]postprocess.Detection, len(frames))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, frame := range frames {
		i, frame := i, frame
		g.Go(func() error {
			detections, err := d.Detect(ctx, runner, frame.Buffer, frame.Original)
			if err != nil {
				return errors.Wrapf(err, "failed to detect frame %d", i)
			}
			results[i] = detections
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
