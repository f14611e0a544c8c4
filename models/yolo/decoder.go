// Package yolo - Decodes raw YOLO head outputs into candidate boxes.
package yolo

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used to report skipped slots.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Decoder turns a raw output buffer into candidates in network-input coordinates.
// It holds no per-call state and may be shared between goroutines.
type Decoder struct {
	cfg    model.Config
	logger *zap.Logger
	xy     func(float32) float32
}

// NewDecoder validates cfg and returns a decoder for it.
//
// Arguments:
//   - cfg: The model configuration. Its Layout selects the decoding path.
//   - opts: Optional settings such as WithLogger.
//
// Returns:
//   - *Decoder: The decoder.
//   - error: An ErrInvalidConfiguration if cfg is rejected.
func NewDecoder(cfg model.Config, opts ...Option) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Decoder{
		cfg:    cfg,
		logger: zap.NewNop(),
		xy:     identity,
	}
	if cfg.XYActivation == model.ActivationSigmoid {
		d.xy = sigmoid
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the configuration the decoder was built with.
func (d *Decoder) Config() model.Config {
	return d.cfg
}

// ExpectedLen returns the number of float32 values a complete output holds for the
// configured layout. Dense outputs have no fixed row count, so it returns 0 for them.
func (d *Decoder) ExpectedLen() int {
	if d.cfg.Layout != model.LayoutStrided {
		return 0
	}
	n := 0
	for _, s := range d.cfg.Strides {
		n += d.levelLen(s)
	}
	return n
}

// Decode walks output and returns every candidate that clears the confidence threshold,
// in emission order. Slots that would read past the end of output are skipped and
// reported through the logger; decoding carries on with the next slot.
//
// Arguments:
//   - output: The raw network output, flattened.
//
// Returns:
//   - []postprocess.Result: The candidates, unsorted.
func (d *Decoder) Decode(output []float32) []postprocess.Result {
	var (
		results []postprocess.Result
		skipped skips
	)
	switch d.cfg.Layout {
	case model.LayoutDense:
		results, skipped = d.decodeDense(output)
	default:
		results, skipped = d.decodeStrided(output)
	}

	if skipped.count > 0 {
		d.logger.Warn("skipped out of bounds slots",
			zap.Int("skipped", skipped.count),
			zap.Int("outputLen", len(output)),
			zap.String("layout", string(d.cfg.Layout)),
			zap.Error(skipped.first),
		)
	}
	return results
}

// DecodeTensor decodes a float32 tensor of any shape. The tensor is read in its
// row-major backing order.
//
// Arguments:
//   - t: The output tensor.
//
// Returns:
//   - []postprocess.Result: The candidates.
//   - error: An ErrShapeMismatch if t does not hold float32 values.
func (d *Decoder) DecodeTensor(t tensor.Tensor) ([]postprocess.Result, error) {
	if t == nil {
		return nil, errors.Wrap(model.ErrShapeMismatch, "nil output tensor")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "output tensor has dtype %v, want float32", t.Dtype())
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "output tensor of shape %v is not a float32 slice", t.Shape())
	}
	return d.Decode(data), nil
}

// slot returns the row starting at offset, or an ErrOutOfBounds if it does not fit.
func slot(output []float32, offset, size int) ([]float32, error) {
	if offset < 0 || offset+size > len(output) {
		return nil, errors.Wrapf(model.ErrOutOfBounds,
			"slot [%d, %d) exceeds output length %d", offset, offset+size, len(output))
	}
	return output[offset : offset+size], nil
}

// score fuses objectness with the best class probability. ok is false when either the
// objectness or the fused score is below the threshold, or is NaN.
func (d *Decoder) score(row []float32) (class int, score float32, ok bool) {
	objectness := sigmoid(row[4])
	if !(objectness >= d.cfg.ConfThreshold) {
		return 0, 0, false
	}

	best := float32(-1)
	for j, logit := range row[5:] {
		if p := sigmoid(logit); p > best {
			best = p
			class = j
		}
	}

	score = objectness * best
	if !(score >= d.cfg.ConfThreshold) {
		return 0, 0, false
	}
	return class, score, true
}

// skips counts the slots dropped by one decode and keeps the first reason.
type skips struct {
	count int
	first error
}

func (s *skips) add(err error) {
	if s.first == nil {
		s.first = err
	}
	s.count++
}

func (s *skips) merge(o skips) {
	if o.count == 0 {
		return
	}
	if s.first == nil {
		s.first = o.first
	}
	s.count += o.count
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func identity(x float32) float32 {
	return x
}
