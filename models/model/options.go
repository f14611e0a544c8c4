// Package model - Tensor precision at the inference boundary.
package model

import "github.com/pkg/errors"

// Precision is the element type the external inference engine exchanges tensors in.
// The decoder always works in FP32; FP16 only exists at the session boundary.
type Precision string

const (
	// PrecisionFP32 exchanges 32-bit float tensors.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 exchanges IEEE 754 binary16 tensors.
	PrecisionFP16 Precision = "FP16"
)

// Validate rejects unknown precisions.
func (p Precision) Validate() error {
	switch p {
	case PrecisionFP32, PrecisionFP16:
		return nil
	default:
		return errors.Wrapf(ErrInvalidConfiguration, "unknown precision %q", p)
	}
}
