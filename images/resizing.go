package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
)

// FromImage resizes img to width x height (no letterboxing, each axis scaled on its own)
// and copies it into a PixelBuffer. Alpha is dropped.
//
// Arguments:
//   - img: The decoded source image.
//   - width: The target width, usually the network input size.
//   - height: The target height.
//
// Returns:
//   - PixelBuffer: The resized RGB samples.
//   - error: ErrShapeMismatch if the source or target is empty.
func FromImage(img image.Image, width, height int) (PixelBuffer, error) {
	if img == nil || img.Bounds().Empty() {
		return PixelBuffer{}, errors.Wrap(model.ErrShapeMismatch, "source image is empty")
	}
	if width <= 0 || height <= 0 {
		return PixelBuffer{}, errors.Wrapf(model.ErrShapeMismatch, "invalid target size %dx%d", width, height)
	}

	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	}

	buf := NewPixelBuffer(width, height)
	origin := img.Bounds().Min
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(origin.X+x, origin.Y+y).RGBA()
			buf.Data[i] = uint8(r >> 8)
			buf.Data[i+1] = uint8(g >> 8)
			buf.Data[i+2] = uint8(b >> 8)
			i += Channels
		}
	}
	return buf, nil
}
