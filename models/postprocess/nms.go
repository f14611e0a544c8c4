// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-yolo/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold  float32 // Overlap threshold for suppression.
	ClassAware    bool    // If true, suppress only within same class.
	MaxDetections int     // Keep at most this many results; 0 keeps all.
}

// ApplyNMS filters overlapping detections with the configured variant.
//
// Arguments:
//   - detections: Results in emission order.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections, highest score first. Nil if there is no input.
func ApplyNMS(detections []Result, config *NMSConfig) []Result {
	var kept []Result
	if config.ClassAware {
		kept = SuppressByClass(detections, config.IoUThreshold)
	} else {
		kept = Suppress(detections, config.IoUThreshold)
	}
	if config.MaxDetections > 0 && len(kept) > config.MaxDetections {
		kept = kept[:config.MaxDetections]
	}
	return kept
}

// Suppress performs class-agnostic greedy Non-Maximum Suppression.
//
// Candidates are stably sorted by descending score, so equal scores keep their emission
// order. Each one is then kept unless its IoU with an already kept box exceeds
// iouThreshold. The input slice is not modified.
//
// Arguments:
//   - detections: Results in emission order.
//   - iouThreshold: IoU above which an overlapping box is suppressed.
//
// Returns:
//   - The kept results, highest score first.
func Suppress(detections []Result, iouThreshold float32) []Result {
	return suppress(detections, iouThreshold, false)
}

// SuppressByClass is Suppress restricted to boxes of the same class: a box is only ever
// suppressed by a kept box with an equal class index.
func SuppressByClass(detections []Result, iouThreshold float32) []Result {
	return suppress(detections, iouThreshold, true)
}

func suppress(detections []Result, iouThreshold float32, classAware bool) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := sortByScore(detections)
	selected := make([]Result, 0, n)

	for _, candidate := range sorted {
		keep := true
		for _, anchor := range selected {
			if classAware && anchor.Class != candidate.Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, candidate.Box) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, candidate)
		}
	}

	return selected
}

// sortByScore returns a copy of detections stably sorted by descending score.
func sortByScore(detections []Result) []Result {
	sorted := make([]Result, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}
