package postprocess

import (
	"image"

	"github.com/nvr-ai/go-yolo/images"
)

// Rescale maps a box from the network input space src to the original image space dst.
// Each axis is scaled independently, clamped to the image and the corners are reordered
// so that X1<=X2 and Y1<=Y2.
//
// Arguments:
//   - box: The box in src coordinates.
//   - src: The network input size, e.g. 640x640.
//   - dst: The original image size.
//
// Returns:
//   - images.Rect: The box in dst coordinates.
//
// @example
// r := Rescale(images.Rect{X1: 100, Y1: 100, X2: 200, Y2: 200}, image.Pt(640, 640), image.Pt(1280, 960))
// // r == images.Rect{X1: 200, Y1: 150, X2: 400, Y2: 300}
func Rescale(box images.Rect, src, dst image.Point) images.Rect {
	sx := float32(dst.X) / float32(src.X)
	sy := float32(dst.Y) / float32(src.Y)
	w, h := float32(dst.X), float32(dst.Y)

	return images.Rect{
		X1: clamp(box.X1*sx, w),
		Y1: clamp(box.Y1*sy, h),
		X2: clamp(box.X2*sx, w),
		Y2: clamp(box.Y2*sy, h),
	}.Canon()
}

// RescaleAll rescales every result into a new slice and drops the boxes that collapse to
// zero area once clamped, including boxes with NaN coordinates.
func RescaleAll(results []Result, src, dst image.Point) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		r.Box = Rescale(r.Box, src, dst)
		if !(r.Box.Area() > 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// clamp limits v to [0, hi]. NaN maps to 0.
func clamp(v, hi float32) float32 {
	if v != v {
		return 0
	}
	return max(0, min(hi, v))
}
