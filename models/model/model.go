// Package model - Configuration for the detection post-processing pipeline.
package model

import (
	"github.com/pkg/errors"
)

// Layout selects how the raw network output is laid out. It is always chosen by the
// caller; the decoder never guesses it from the data.
type Layout string

const (
	// LayoutDense is a [N, 5+C] tensor whose first four fields are already centre/size
	// boxes in network-input pixels.
	LayoutDense Layout = "dense"
	// LayoutStrided is the concatenation of per-stride grid/anchor predictions that still
	// need grid decoding.
	LayoutStrided Layout = "strided"
)

// Order is the flattening order of anchors and grid cells within one stride level.
type Order string

const (
	// OrderAnchorMajor walks every cell of anchor 0, then every cell of anchor 1, ...
	OrderAnchorMajor Order = "anchor-major"
	// OrderCellMajor walks every anchor of cell 0, then every anchor of cell 1, ...
	OrderCellMajor Order = "cell-major"
)

// Activation is applied to the raw tx/ty grid offsets before decoding.
type Activation string

const (
	// ActivationRaw uses the raw value.
	ActivationRaw Activation = "raw"
	// ActivationSigmoid applies the logistic function.
	ActivationSigmoid Activation = "sigmoid"
)

// NormalizationKind names a per-channel affine pixel transform.
type NormalizationKind string

const (
	// NormalizeUnitScale divides by 255.
	NormalizeUnitScale NormalizationKind = "unit-scale"
	// NormalizeStandardize divides by 255, subtracts the channel mean and divides by the
	// channel standard deviation.
	NormalizeStandardize NormalizationKind = "standardize"
)

// Normalization is the pixel transform applied by the tensor layout adapter.
type Normalization struct {
	Kind NormalizationKind `json:"kind" yaml:"kind"`
	Mean [3]float32        `json:"mean" yaml:"mean"`
	Std  [3]float32        `json:"std" yaml:"std"`
}

// ImageNetNormalization is the usual standardisation with ImageNet channel statistics.
var ImageNetNormalization = Normalization{
	Kind: NormalizeStandardize,
	Mean: [3]float32{0.485, 0.456, 0.406},
	Std:  [3]float32{0.229, 0.224, 0.225},
}

// Anchor is an anchor box size in network-input pixels.
type Anchor struct {
	W float32 `json:"w" yaml:"w"`
	H float32 `json:"h" yaml:"h"`
}

// Stride is one output level of a strided head.
type Stride struct {
	// Size is the number of input pixels covered by one grid cell.
	Size int `json:"size" yaml:"size"`
	// Anchors lists the anchor boxes predicted in every cell of this level.
	Anchors []Anchor `json:"anchors" yaml:"anchors"`
}

// Config holds every option the post-processing core recognises.
type Config struct {
	// InputSize is the square network input resolution.
	InputSize int `json:"input_size" yaml:"input_size"`
	// NumClasses is the number of class logits per row.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// ConfThreshold drops candidates whose objectness or fused score is below it.
	ConfThreshold float32 `json:"conf_threshold" yaml:"conf_threshold"`
	// IoUThreshold suppresses candidates overlapping a kept one by more than it.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// Layout of the raw output tensor.
	Layout Layout `json:"layout" yaml:"layout"`
	// Order of anchors and cells within a stride level (strided only).
	Order Order `json:"order" yaml:"order"`
	// XYActivation applied to tx/ty (strided only).
	XYActivation Activation `json:"xy_activation" yaml:"xy_activation"`
	// Strides in the order the network emits them (strided only).
	Strides []Stride `json:"strides" yaml:"strides"`
	// Normalization used when building the input tensor.
	Normalization Normalization `json:"normalization" yaml:"normalization"`
	// ClassAware restricts suppression to candidates of the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	// MaxDetections caps the suppressed output; 0 keeps everything.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// Workers decodes stride levels concurrently when greater than 1.
	Workers int `json:"workers" yaml:"workers"`
}

// YOLOv5Strides returns the COCO anchor set of the YOLOv5 family for a 640 input.
func YOLOv5Strides() []Stride {
	return []Stride{
		{Size: 8, Anchors: []Anchor{{10, 13}, {16, 30}, {33, 23}}},
		{Size: 16, Anchors: []Anchor{{30, 61}, {62, 45}, {59, 119}}},
		{Size: 32, Anchors: []Anchor{{116, 90}, {156, 198}, {373, 326}}},
	}
}

// DefaultConfig returns the configuration used by the upload front-end: a 640x640
// YOLOv5 model with 80 COCO classes and a strided head.
//
// Returns:
//   - Config: The default configuration.
func DefaultConfig() Config {
	return Config{
		InputSize:     640,
		NumClasses:    80,
		ConfThreshold: 0.25,
		IoUThreshold:  0.45,
		Layout:        LayoutStrided,
		Order:         OrderAnchorMajor,
		XYActivation:  ActivationRaw,
		Strides:       YOLOv5Strides(),
		Normalization: Normalization{Kind: NormalizeUnitScale},
		Workers:       1,
	}
}

// RowSize is the number of fields per prediction: box, objectness and class logits.
func (c Config) RowSize() int {
	return 5 + c.NumClasses
}

// Validate checks the configuration before any decoding work happens.
//
// Returns:
//   - error: An ErrInvalidConfiguration wrapped with the reason, or nil.
func (c Config) Validate() error {
	if c.InputSize <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "input size must be positive, got %d", c.InputSize)
	}
	if c.NumClasses <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "num classes must be positive, got %d", c.NumClasses)
	}
	if !inUnitRange(c.ConfThreshold) {
		return errors.Wrapf(ErrInvalidConfiguration, "confidence threshold %v outside [0,1]", c.ConfThreshold)
	}
	if !inUnitRange(c.IoUThreshold) {
		return errors.Wrapf(ErrInvalidConfiguration, "iou threshold %v outside [0,1]", c.IoUThreshold)
	}
	if c.MaxDetections < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "max detections must not be negative, got %d", c.MaxDetections)
	}
	if err := c.Normalization.Validate(); err != nil {
		return err
	}

	switch c.Layout {
	case LayoutDense:
		return nil
	case LayoutStrided:
		return c.validateStrides()
	default:
		return errors.Wrapf(ErrInvalidConfiguration, "unknown layout %q", c.Layout)
	}
}

func (c Config) validateStrides() error {
	switch c.Order {
	case OrderAnchorMajor, OrderCellMajor:
	default:
		return errors.Wrapf(ErrInvalidConfiguration, "unknown order %q", c.Order)
	}
	switch c.XYActivation {
	case ActivationRaw, ActivationSigmoid:
	default:
		return errors.Wrapf(ErrInvalidConfiguration, "unknown xy activation %q", c.XYActivation)
	}
	if len(c.Strides) == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "strided layout needs at least one stride")
	}

	anchors := len(c.Strides[0].Anchors)
	for i, s := range c.Strides {
		if s.Size <= 0 {
			return errors.Wrapf(ErrInvalidConfiguration, "stride %d has non-positive size %d", i, s.Size)
		}
		if c.InputSize%s.Size != 0 {
			return errors.Wrapf(ErrInvalidConfiguration, "input size %d is not a multiple of stride %d", c.InputSize, s.Size)
		}
		if len(s.Anchors) == 0 || len(s.Anchors) != anchors {
			return errors.Wrapf(ErrInvalidConfiguration,
				"stride %d has %d anchors, want %d", s.Size, len(s.Anchors), anchors)
		}
		for _, a := range s.Anchors {
			if a.W <= 0 || a.H <= 0 {
				return errors.Wrapf(ErrInvalidConfiguration, "stride %d has non-positive anchor %vx%v", s.Size, a.W, a.H)
			}
		}
	}
	return nil
}

// Validate checks the normalisation kind and that no standard deviation is zero.
func (n Normalization) Validate() error {
	switch n.Kind {
	case NormalizeUnitScale:
		return nil
	case NormalizeStandardize:
		for c, std := range n.Std {
			if std == 0 {
				return errors.Wrapf(ErrInvalidConfiguration, "channel %d has zero standard deviation", c)
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrInvalidConfiguration, "unknown normalization %q", n.Kind)
	}
}

func inUnitRange(v float32) bool {
	return v >= 0 && v <= 1
}
