// Package preprocess converts interleaved RGB pixel buffers into planar (CHW) float32
// tensors and back.
//
// Index arithmetic for a W x H buffer:
//
//	interleaved: i = (y*W + x)*3 + c
//	planar:      j = c*H*W + y*W + x
//
// so tensor[c][y][x] = normalize_c(pixels[i]) and the inverse maps j back to i.
package preprocess

import (
	"fmt"
	"math"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/model"
)

// ToPlanarTensor builds a (3, H, W) float32 tensor from an interleaved RGB buffer.
//
// Arguments:
//   - buf: The pixel buffer. Its length must be Width*Height*3.
//   - norm: The per-channel normalisation.
//
// Returns:
//   - *tensor.Dense: The planar tensor.
//   - error: ErrShapeMismatch for a malformed buffer, ErrInvalidConfiguration for a bad
//     normalisation. No tensor is returned on error.
//
// @example
// buf, _ := images.FromImage(img, 640, 640)
// t, err := ToPlanarTensor(buf, model.Normalization{Kind: model.NormalizeUnitScale})
func ToPlanarTensor(buf images.PixelBuffer, norm model.Normalization) (*tensor.Dense, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if err := norm.Validate(); err != nil {
		return nil, err
	}

	width, height := buf.Width, buf.Height
	plane := width * height
	data := make([]float32, images.Channels*plane)

	scale, shift := coefficients(norm)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src := (y*width + x) * images.Channels
			dst := y*width + x
			for c := 0; c < images.Channels; c++ {
				data[c*plane+dst] = float32(buf.Data[src+c])*scale[c] + shift[c]
			}
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(images.Channels, height, width),
		tensor.WithBacking(data),
	), nil
}

// ToInterleaved is the inverse of ToPlanarTensor. Values are denormalised, rounded and
// clamped to [0, 255].
//
// Arguments:
//   - t: A (3, H, W) float32 tensor.
//   - norm: The normalisation that produced t.
//
// Returns:
//   - images.PixelBuffer: The interleaved buffer.
//   - error: ErrShapeMismatch if t is not a (3, H, W) float32 tensor.
func ToInterleaved(t *tensor.Dense, norm model.Normalization) (images.PixelBuffer, error) {
	if err := norm.Validate(); err != nil {
		return images.PixelBuffer{}, err
	}
	shape := t.Shape()
	if len(shape) != 3 || shape[0] != images.Channels {
		return images.PixelBuffer{}, errors.Wrapf(model.ErrShapeMismatch, "want a (3, H, W) tensor, got %v", shape)
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return images.PixelBuffer{}, errors.Wrapf(model.ErrShapeMismatch, "want float32 data, got %v", t.Dtype())
	}

	height, width := shape[1], shape[2]
	plane := width * height
	buf := images.NewPixelBuffer(width, height)

	scale, shift := coefficients(norm)
	for j, v := range data {
		c, rest := j/plane, j%plane
		raw := float32(math.Round(float64((v - shift[c]) / scale[c])))
		buf.Data[rest*images.Channels+c] = uint8(max(0, min(255, raw)))
	}
	return buf, nil
}

// coefficients folds a normalisation into v*scale + shift per channel.
func coefficients(norm model.Normalization) (scale, shift [3]float32) {
	for c := 0; c < images.Channels; c++ {
		switch norm.Kind {
		case model.NormalizeStandardize:
			scale[c] = 1 / (255 * norm.Std[c])
			shift[c] = -norm.Mean[c] / norm.Std[c]
		default:
			scale[c] = 1.0 / 255.0
		}
	}
	return scale, shift
}

// Preprocessor applies one normalisation to many buffers.
type Preprocessor struct {
	norm model.Normalization
}

// NewPreprocessor creates a preprocessor after validating the normalisation.
//
// Arguments:
//   - norm: The normalisation to apply.
//
// Returns:
//   - *Preprocessor: The preprocessor.
//   - error: ErrInvalidConfiguration for an unknown kind or a zero standard deviation.
func NewPreprocessor(norm model.Normalization) (*Preprocessor, error) {
	if err := norm.Validate(); err != nil {
		return nil, err
	}
	return &Preprocessor{norm: norm}, nil
}

// Tensor converts one buffer.
func (p *Preprocessor) Tensor(buf images.PixelBuffer) (*tensor.Dense, error) {
	return ToPlanarTensor(buf, p.norm)
}

// BatchTensors converts buffers in parallel, keeping input order.
//
// Arguments:
//   - bufs: The buffers to convert.
//   - maxConcurrency: Maximum number of buffers converted at once.
//
// Returns:
//   - []*tensor.Dense: One tensor per buffer.
//   - error: The first error by input position, if any.
//
// @example
// tensors, err := p.BatchTensors([]images.PixelBuffer{a, b, c}, 4)
func (p *Preprocessor) BatchTensors(bufs []images.PixelBuffer, maxConcurrency int) ([]*tensor.Dense, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*tensor.Dense, len(bufs))
	errs := make([]error, len(bufs))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, buf := range bufs {
		wg.Add(1)
		go func(idx int, buf images.PixelBuffer) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			t, err := p.Tensor(buf)
			if err != nil {
				errs[idx] = fmt.Errorf("failed to preprocess buffer %d: %w", idx, err)
				return
			}
			results[idx] = t
		}(i, buf)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
