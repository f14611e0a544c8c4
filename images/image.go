// Package images - Pixel buffer handed over by the external decode/resize step.
package images

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
)

// Channels is the number of interleaved samples per pixel (R, G, B).
const Channels = 3

// PixelBuffer is an RGB image, row-major, three interleaved channels per pixel, no alpha.
type PixelBuffer struct {
	// The interleaved samples, len(Data) == Width*Height*3.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// NewPixelBuffer allocates a zeroed buffer of the given size.
func NewPixelBuffer(width, height int) PixelBuffer {
	return PixelBuffer{
		Data:   make([]byte, width*height*Channels),
		Width:  width,
		Height: height,
	}
}

// Validate checks the length invariant.
//
// Returns:
//   - error: ErrShapeMismatch if the dimensions are not positive or the length is wrong.
func (p PixelBuffer) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return errors.Wrapf(model.ErrShapeMismatch, "invalid pixel buffer dimensions %dx%d", p.Width, p.Height)
	}
	if want := p.Width * p.Height * Channels; len(p.Data) != want {
		return errors.Wrapf(model.ErrShapeMismatch,
			"pixel buffer holds %d bytes, %dx%dx%d needs %d", len(p.Data), p.Width, p.Height, Channels, want)
	}
	return nil
}

// Offset returns the index of channel c of pixel (x, y) in Data.
func (p PixelBuffer) Offset(x, y, c int) int {
	return (y*p.Width+x)*Channels + c
}
