// Package images - Boxes, pixel buffers and overlap metrics.
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Rect is a bounding box with corners (X1,Y1) top-left and (X2,Y2) bottom-right.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns X2-X1.
func (r Rect) Width() float32 { return r.X2 - r.X1 }

// Height returns Y2-Y1.
func (r Rect) Height() float32 { return r.Y2 - r.Y1 }

// Area returns the box area. Boxes with inverted corners or NaN coordinates have zero
// area.
func (r Rect) Area() float32 {
	w, h := r.Width(), r.Height()
	if !(w > 0) || !(h > 0) {
		return 0
	}
	return w * h
}

// Finite reports whether every corner is a finite number.
func (r Rect) Finite() bool {
	for _, v := range [4]float32{r.X1, r.Y1, r.X2, r.Y2} {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Canon returns r with X1<=X2 and Y1<=Y2.
func (r Rect) Canon() Rect {
	if r.X2 < r.X1 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y2 < r.Y1 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f), (%.2f, %.2f)", r.X1, r.Y1, r.X2, r.Y2)
}

// FromCenter builds a box from its centre and size.
//
// Arguments:
//   - cx, cy: The box centre.
//   - w, h: The box width and height.
//
// Returns:
//   - Rect: The box corners.
func FromCenter(cx, cy, w, h float32) Rect {
	return Rect{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// CalculateIoU returns the Intersection over Union of two boxes, a value in [0, 1].
//
//	IoU = Area of Intersection / Area of Union
//
// The intersection rectangle starts at the maximum of the two top-left corners and ends at
// the minimum of the two bottom-right corners; if it has no positive width or height the
// intersection area is zero. The union follows inclusion-exclusion:
//
//	Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
//
// A zero union only happens when both boxes are degenerate (zero area). IoU is then 0, so
// a degenerate box never suppresses, and is never suppressed by, another box.
//
// Arguments:
//   - r: The first box.
//   - o: The other box.
//
// Returns:
//   - float32: The IoU score.
//
// Example Usage:
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	interW := max(0, min(r.X2, o.X2)-max(r.X1, o.X1))
	interH := max(0, min(r.Y2, o.Y2)-max(r.Y1, o.Y1))
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0
	}
	return interArea / unionArea
}
