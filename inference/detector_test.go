package inference

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// fakeRunner returns a fixed output and records the inputs it saw.
type fakeRunner struct {
	output []float32
	err    error
	calls  atomic.Int32

	mu    sync.Mutex
	shape tensor.Shape
}

func (f *fakeRunner) Run(_ context.Context, input *tensor.Dense) ([]float32, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.shape = input.Shape().Clone()
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

// testConfig is a 64x64 dense model with two classes.
func testConfig() model.Config {
	cfg := model.DefaultConfig()
	cfg.InputSize = 64
	cfg.NumClasses = 2
	cfg.Layout = model.LayoutDense
	return cfg
}

func testLabels() postprocess.LabelFunc {
	return models.NewClassSet(models.FamilyYOLO, "person", "dog").LabelFunc()
}

func denseRow(cx, cy, w, h, objectness float32, classLogits ...float32) []float32 {
	return append([]float32{cx, cy, w, h, objectness}, classLogits...)
}

func testOutput() []float32 {
	var out []float32
	// Two heavily overlapping persons and one dog.
	out = append(out, denseRow(16, 16, 16, 16, 4, 4, -4)...)
	out = append(out, denseRow(17, 16, 16, 16, 2, 2, -4)...)
	out = append(out, denseRow(48, 48, 8, 8, 4, -4, 3)...)
	// Below threshold.
	out = append(out, denseRow(32, 32, 8, 8, -6, 5, 5)...)
	return out
}

func TestNewDetectorValidation(t *testing.T) {
	_, err := NewDetector(testConfig(), nil)
	assert.True(t, errors.Is(err, model.ErrInvalidConfiguration))

	cfg := testConfig()
	cfg.IoUThreshold = -1
	_, err = NewDetector(cfg, testLabels())
	assert.True(t, errors.Is(err, model.ErrInvalidConfiguration))

	cfg = testConfig()
	cfg.Normalization = model.Normalization{Kind: model.NormalizeStandardize}
	_, err = NewDetector(cfg, testLabels())
	assert.True(t, errors.Is(err, model.ErrInvalidConfiguration))
}

func TestDetect(t *testing.T) {
	d, err := NewDetector(testConfig(), testLabels())
	require.NoError(t, err)

	runner := &fakeRunner{output: testOutput()}
	detections, err := d.Detect(context.Background(), runner, images.NewPixelBuffer(64, 64), image.Pt(128, 256))
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{3, 64, 64}, runner.shape)
	require.Len(t, detections, 2)

	assert.Equal(t, "person", detections[0].Label)
	assert.Equal(t, images.Rect{X1: 16, Y1: 32, X2: 48, Y2: 96}, detections[0].Box)
	assert.Equal(t, "dog", detections[1].Label)
	assert.Equal(t, images.Rect{X1: 88, Y1: 176, X2: 104, Y2: 208}, detections[1].Box)
	assert.Greater(t, detections[0].Confidence, detections[1].Confidence)
	assert.Empty(t, detections[0].Localized)
}

func TestDetectTranslatesAndCaps(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDetections = 1
	d, err := NewDetector(cfg, testLabels(), WithTranslator(models.Persian()))
	require.NoError(t, err)

	detections, err := d.Postprocess(testOutput(), image.Pt(64, 64))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "person", detections[0].Label)
	assert.Equal(t, "انسان", detections[0].Localized)
}

func TestDetectDropsNonFiniteBoxes(t *testing.T) {
	d, err := NewDetector(testConfig(), testLabels())
	require.NoError(t, err)

	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	output := append(denseRow(nan, 16, 16, 16, 4, 4, -4), denseRow(48, 48, inf, 8, 4, -4, 3)...)
	output = append(output, denseRow(48, 48, 8, 8, 4, -4, 3)...)

	detections, err := d.Postprocess(output, image.Pt(1280, 960))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "dog", detections[0].Label)
	assert.True(t, detections[0].Box.Finite())
	assert.LessOrEqual(t, detections[0].Box.X2, float32(1280))
}

func TestDetectClassAware(t *testing.T) {
	cfg := testConfig()
	cfg.ClassAware = true
	d, err := NewDetector(cfg, testLabels())
	require.NoError(t, err)

	// A dog box on top of the first person survives only when suppression is per class.
	output := append(testOutput(), denseRow(16, 16, 16, 16, 3, -4, 3)...)
	detections, err := d.Postprocess(output, image.Pt(64, 64))
	require.NoError(t, err)
	assert.Len(t, detections, 3)
}

func TestDetectErrors(t *testing.T) {
	d, err := NewDetector(testConfig(), testLabels())
	require.NoError(t, err)
	buf := images.NewPixelBuffer(64, 64)

	t.Run("wrong buffer size", func(t *testing.T) {
		runner := &fakeRunner{}
		_, err := d.Detect(context.Background(), runner, images.NewPixelBuffer(32, 64), image.Pt(64, 64))
		assert.True(t, errors.Is(err, model.ErrShapeMismatch))
		assert.Zero(t, runner.calls.Load())
	})

	t.Run("malformed buffer", func(t *testing.T) {
		bad := images.PixelBuffer{Data: make([]byte, 10), Width: 64, Height: 64}
		_, err := d.Detect(context.Background(), &fakeRunner{}, bad, image.Pt(64, 64))
		assert.True(t, errors.Is(err, model.ErrShapeMismatch))
	})

	t.Run("empty original", func(t *testing.T) {
		_, err := d.Detect(context.Background(), &fakeRunner{output: testOutput()}, buf, image.Point{})
		assert.True(t, errors.Is(err, model.ErrShapeMismatch))
	})

	t.Run("runner failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := d.Detect(context.Background(), &fakeRunner{err: boom}, buf, image.Pt(64, 64))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		runner := &fakeRunner{}
		_, err := d.Detect(ctx, runner, buf, image.Pt(64, 64))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, runner.calls.Load())
	})
}

func TestDetectBatch(t *testing.T) {
	d, err := NewDetector(testConfig(), testLabels())
	require.NoError(t, err)

	frames := []Frame{
		{Buffer: images.NewPixelBuffer(64, 64), Original: image.Pt(64, 64)},
		{Buffer: images.NewPixelBuffer(64, 64), Original: image.Pt(128, 128)},
		{Buffer: images.NewPixelBuffer(64, 64), Original: image.Pt(32, 32)},
	}
	runner := &fakeRunner{output: testOutput()}

	results, err := d.DetectBatch(context.Background(), runner, frames, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.EqualValues(t, 3, runner.calls.Load())

	assert.Equal(t, images.Rect{X1: 8, Y1: 8, X2: 24, Y2: 24}, results[0][0].Box)
	assert.Equal(t, images.Rect{X1: 16, Y1: 16, X2: 48, Y2: 48}, results[1][0].Box)
	assert.Equal(t, images.Rect{X1: 4, Y1: 4, X2: 12, Y2: 12}, results[2][0].Box)

	frames = append(frames, Frame{Buffer: images.NewPixelBuffer(10, 10), Original: image.Pt(64, 64)})
	_, err = d.DetectBatch(context.Background(), runner, frames, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrShapeMismatch))
	assert.Contains(t, err.Error(), "frame 3")
}

func TestDetectorLogsSkippedSlots(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d, err := NewDetector(testConfig(), testLabels(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	output := append(testOutput(), 1, 2, 3)
	_, err = d.Postprocess(output, image.Pt(64, 64))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("skipped out of bounds slots").Len())
	entries := logs.FilterMessage("postprocessed output").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["candidates"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["detections"])
}
