package preprocess

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/model"
)

var unitScale = model.Normalization{Kind: model.NormalizeUnitScale}

// randomBuffer fills a buffer with deterministic noise.
func randomBuffer(t *testing.T, width, height int, seed int64) images.PixelBuffer {
	t.Helper()
	buf := images.NewPixelBuffer(width, height)
	rand.New(rand.NewSource(seed)).Read(buf.Data)
	return buf
}

// TestToPlanarTensorShape validates the tensor shape and length for a range of sizes.
func TestToPlanarTensorShape(t *testing.T) {
	sizes := [][2]int{{1, 1}, {3, 2}, {2, 3}, {17, 5}, {64, 48}, {640, 640}}
	for _, size := range sizes {
		buf := randomBuffer(t, size[0], size[1], int64(size[0]*size[1]))

		out, err := ToPlanarTensor(buf, unitScale)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{3, size[1], size[0]}, out.Shape())
		assert.Len(t, out.Data().([]float32), 3*size[0]*size[1])
	}
}

// TestToPlanarTensorRedPlane checks that channel 0 holds the red samples in row-major order.
func TestToPlanarTensorRedPlane(t *testing.T) {
	buf := randomBuffer(t, 7, 4, 1)
	out, err := ToPlanarTensor(buf, unitScale)
	require.NoError(t, err)

	data := out.Data().([]float32)
	plane := 7 * 4
	for y := 0; y < 4; y++ {
		for x := 0; x < 7; x++ {
			for c := 0; c < 3; c++ {
				want := float32(buf.Data[buf.Offset(x, y, c)]) / 255
				assert.InDelta(t, want, data[c*plane+y*7+x], 1e-6, "c=%d y=%d x=%d", c, y, x)
			}
		}
	}

	v, err := out.At(0, 3, 6)
	require.NoError(t, err)
	assert.InDelta(t, float32(buf.Data[buf.Offset(6, 3, 0)])/255, v.(float32), 1e-6)
}

func TestToPlanarTensorStandardize(t *testing.T) {
	buf := images.PixelBuffer{Data: []byte{255, 0, 128}, Width: 1, Height: 1}
	out, err := ToPlanarTensor(buf, model.ImageNetNormalization)
	require.NoError(t, err)

	data := out.Data().([]float32)
	assert.InDelta(t, (1-0.485)/0.229, data[0], 1e-5)
	assert.InDelta(t, (0-0.456)/0.224, data[1], 1e-5)
	assert.InDelta(t, (128.0/255-0.406)/0.225, data[2], 1e-5)
}

// TestToPlanarTensorShapeMismatch covers buffers whose length disagrees with width*height*3.
func TestToPlanarTensorShapeMismatch(t *testing.T) {
	tests := []struct {
		name string
		buf  images.PixelBuffer
	}{
		{"one byte short", images.PixelBuffer{Data: make([]byte, 640*640*3-1), Width: 640, Height: 640}},
		{"rgba buffer", images.PixelBuffer{Data: make([]byte, 4*4*4), Width: 4, Height: 4}},
		{"empty", images.PixelBuffer{Width: 4, Height: 4}},
		{"zero size", images.PixelBuffer{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ToPlanarTensor(tt.buf, unitScale)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, model.ErrShapeMismatch), "got %v", err)
		})
	}
}

func TestToPlanarTensorInvalidNormalization(t *testing.T) {
	_, err := ToPlanarTensor(images.NewPixelBuffer(2, 2), model.Normalization{Kind: "zscore"})
	assert.True(t, errors.Is(err, model.ErrInvalidConfiguration))

	_, err = NewPreprocessor(model.Normalization{Kind: model.NormalizeStandardize})
	assert.True(t, errors.Is(err, model.ErrInvalidConfiguration))
}

// TestInterleavedRoundTrip derives the inverse mapping and checks it restores every sample.
func TestInterleavedRoundTrip(t *testing.T) {
	for _, norm := range []model.Normalization{unitScale, model.ImageNetNormalization} {
		buf := randomBuffer(t, 13, 9, 99)

		planar, err := ToPlanarTensor(buf, norm)
		require.NoError(t, err)

		back, err := ToInterleaved(planar, norm)
		require.NoError(t, err)
		assert.Equal(t, buf, back, "normalization %s", norm.Kind)
	}
}

func TestToInterleavedRejectsBadTensors(t *testing.T) {
	wrongRank := tensor.New(tensor.WithShape(3, 4), tensor.WithBacking(make([]float32, 12)))
	_, err := ToInterleaved(wrongRank, unitScale)
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))

	wrongChannels := tensor.New(tensor.WithShape(4, 2, 2), tensor.WithBacking(make([]float32, 16)))
	_, err = ToInterleaved(wrongChannels, unitScale)
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))

	wrongType := tensor.New(tensor.WithShape(3, 1, 1), tensor.WithBacking([]float64{0, 0, 0}))
	_, err = ToInterleaved(wrongType, unitScale)
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
}

func TestToInterleavedClamps(t *testing.T) {
	planar := tensor.New(tensor.WithShape(3, 1, 1), tensor.WithBacking([]float32{-0.5, 2, 0.6}))
	buf, err := ToInterleaved(planar, unitScale)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 153}, buf.Data)
}

func TestBatchTensors(t *testing.T) {
	p, err := NewPreprocessor(unitScale)
	require.NoError(t, err)

	bufs := []images.PixelBuffer{
		randomBuffer(t, 4, 4, 1),
		randomBuffer(t, 8, 2, 2),
		randomBuffer(t, 3, 5, 3),
	}
	out, err := p.BatchTensors(bufs, 2)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, tensor.Shape{3, 4, 4}, out[0].Shape())
	assert.Equal(t, tensor.Shape{3, 2, 8}, out[1].Shape())
	assert.Equal(t, tensor.Shape{3, 5, 3}, out[2].Shape())

	bufs[1].Data = bufs[1].Data[:5]
	out, err = p.BatchTensors(bufs, 0)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
	assert.Contains(t, err.Error(), "buffer 1")
}
