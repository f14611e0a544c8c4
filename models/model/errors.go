// Package model - Error kinds shared by the detection pipeline.
package model

import "github.com/pkg/errors"

// Error kinds. Call sites wrap these with errors.Wrapf so callers can tell them apart
// with errors.Is.
var (
	// ErrShapeMismatch means a buffer length does not match its declared shape. Fatal to
	// the current call.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrOutOfBounds means a computed tensor offset runs past the end of the buffer. The
	// decoder recovers from it by skipping the slot.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrInvalidConfiguration means the configuration was rejected before any work began.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Kind returns the name of the error kind wrapped by err, or "unknown".
//
// Arguments:
//   - err: The error to classify.
//
// Returns:
//   - string: One of "shape_mismatch", "out_of_bounds", "invalid_configuration", "unknown".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	default:
		return "unknown"
	}
}
