// Package postprocess - Candidates, detections, rescaling and suppression.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-yolo/images"
)

// Result is a decoded candidate box.
type Result struct {
	// The bounding box of the result, in network-input pixels until rescaled.
	Box images.Rect
	// The fused objectness * class confidence in [0, 1].
	Score float32
	// The predicted class index in [0, numClasses).
	Class int
}

// Detection is a labeled box in original-image pixels.
type Detection struct {
	Label      string      `json:"label"`
	Localized  string      `json:"localized,omitempty"`
	Confidence float32     `json:"confidence"`
	Box        images.Rect `json:"box"`
}

func (d Detection) String() string {
	return fmt.Sprintf("Object %s (confidence %f): %s", d.Label, d.Confidence, d.Box)
}

// LabelFunc resolves a class index to a name. Completeness and fallbacks are the
// caller's concern.
type LabelFunc func(class int) string

// Label turns results into detections, keeping their order.
//
// Arguments:
//   - results: The suppressed results, already in original-image space.
//   - labels: The class name lookup.
//
// Returns:
//   - []Detection: One detection per result.
func Label(results []Result, labels LabelFunc) []Detection {
	out := make([]Detection, len(results))
	for i, r := range results {
		out[i] = Detection{
			Label:      labels(r.Class),
			Confidence: r.Score,
			Box:        r.Box,
		}
	}
	return out
}
