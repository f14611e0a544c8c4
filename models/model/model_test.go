package model

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(0.25), cfg.ConfThreshold)
	assert.Equal(t, float32(0.45), cfg.IoUThreshold)
	assert.Equal(t, 85, cfg.RowSize())
	assert.Len(t, cfg.Strides, 3)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero input size", func(c *Config) { c.InputSize = 0 }},
		{"negative input size", func(c *Config) { c.InputSize = -640 }},
		{"no classes", func(c *Config) { c.NumClasses = 0 }},
		{"confidence above one", func(c *Config) { c.ConfThreshold = 1.5 }},
		{"negative confidence", func(c *Config) { c.ConfThreshold = -0.1 }},
		{"nan iou", func(c *Config) { c.IoUThreshold = float32(math.NaN()) }},
		{"iou above one", func(c *Config) { c.IoUThreshold = 2 }},
		{"unknown layout", func(c *Config) { c.Layout = "sparse" }},
		{"unknown order", func(c *Config) { c.Order = "random" }},
		{"unknown activation", func(c *Config) { c.XYActivation = "tanh" }},
		{"no strides", func(c *Config) { c.Strides = nil }},
		{"mismatched anchors", func(c *Config) { c.Strides[1].Anchors = c.Strides[1].Anchors[:2] }},
		{"stride not dividing input", func(c *Config) { c.Strides[0].Size = 7 }},
		{"zero stride", func(c *Config) { c.Strides[0].Size = 0 }},
		{"zero anchor", func(c *Config) { c.Strides[2].Anchors[0] = Anchor{0, 10} }},
		{"negative max detections", func(c *Config) { c.MaxDetections = -1 }},
		{"unknown normalization", func(c *Config) { c.Normalization.Kind = "minmax" }},
		{"zero std", func(c *Config) {
			c.Normalization = ImageNetNormalization
			c.Normalization.Std[1] = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration), "got %v", err)
			assert.Equal(t, "invalid_configuration", Kind(err))
		})
	}
}

func TestDenseConfigIgnoresStrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Layout = LayoutDense
	cfg.Strides = nil
	cfg.Order = ""
	assert.NoError(t, cfg.Validate())
}

func TestKind(t *testing.T) {
	assert.Equal(t, "shape_mismatch", Kind(errors.Wrap(ErrShapeMismatch, "pixels")))
	assert.Equal(t, "out_of_bounds", Kind(errors.Wrapf(ErrOutOfBounds, "slot %d", 3)))
	assert.Equal(t, "unknown", Kind(errors.New("boom")))
	assert.Equal(t, "unknown", Kind(nil))
}

func TestPrecisionValidate(t *testing.T) {
	assert.NoError(t, PrecisionFP16.Validate())
	assert.NoError(t, PrecisionFP32.Validate())
	assert.True(t, errors.Is(Precision("INT8").Validate(), ErrInvalidConfiguration))
}
