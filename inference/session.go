package inference

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/fp16"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/models/model"
)

// SessionConfig describes the ONNX model and how to run it.
type SessionConfig struct {
	// ModelPath is the .onnx file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath is the ONNX Runtime shared library. Empty uses providers.GetSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// InputPrecision and OutputPrecision are the element types of the graph's input and
	// output tensors. They are independent: a model may take FP16 and return FP32.
	InputPrecision  model.Precision `json:"input_precision" yaml:"input_precision"`
	OutputPrecision model.Precision `json:"output_precision" yaml:"output_precision"`
	// InputName and OutputName are the graph's tensor names.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// InputSize is the square network input resolution.
	InputSize int `json:"input_size" yaml:"input_size"`
	// OutputShape is the fixed output shape, e.g. [1, 25200, 85].
	OutputShape []int64 `json:"output_shape" yaml:"output_shape"`
	// Provider selects the execution provider and threading.
	Provider providers.Options `json:"provider" yaml:"provider"`
}

// Validate checks the parts of the configuration that do not need the runtime.
func (c SessionConfig) Validate() error {
	if c.ModelPath == "" {
		return errors.Wrap(model.ErrInvalidConfiguration, "model path is required")
	}
	if err := c.InputPrecision.Validate(); err != nil {
		return errors.WithMessage(err, "input")
	}
	if err := c.OutputPrecision.Validate(); err != nil {
		return errors.WithMessage(err, "output")
	}
	if c.InputName == "" || c.OutputName == "" {
		return errors.Wrap(model.ErrInvalidConfiguration, "input and output names are required")
	}
	if c.InputSize <= 0 {
		return errors.Wrapf(model.ErrInvalidConfiguration, "input size must be positive, got %d", c.InputSize)
	}
	if shapeLen(c.OutputShape) <= 0 {
		return errors.Wrapf(model.ErrInvalidConfiguration, "output shape %v is empty", c.OutputShape)
	}
	return c.Provider.Backend.Validate()
}

func shapeLen(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

var envMu sync.Mutex

// InitializeEnvironment loads the ONNX Runtime shared library once per process.
//
// Arguments:
//   - libraryPath: The shared library, or "" for providers.GetSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or fails to initialise.
func InitializeEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath == "" {
		libraryPath = providers.GetSharedLibPath()
	}
	if _, err := os.Stat(libraryPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libraryPath)
	}

	ort.SetSharedLibraryPath(libraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// Session is a Runner backed by an ONNX Runtime session with preallocated input and
// output tensors. FP16 tensors exchange binary16 bytes; the conversion happens here so
// the rest of the pipeline only sees float32.
type Session struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	inputLen int
	logger   *zap.Logger

	input32  *ort.Tensor[float32]
	output32 *ort.Tensor[float32]
	input16  *ort.CustomDataTensor
	output16 *ort.CustomDataTensor
}

// NewSession initialises the runtime and loads the model.
//
// Arguments:
//   - cfg: The session configuration.
//   - logger: Receives session lifecycle messages; nil disables logging.
//
// Returns:
//   - *Session: The session. Close releases its native resources.
//   - error: An error if the configuration is invalid or the runtime fails.
func NewSession(cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := InitializeEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	s := &Session{
		inputLen: 3 * cfg.InputSize * cfg.InputSize,
		logger:   logger,
	}

	inputShape := ort.NewShape(1, 3, int64(cfg.InputSize), int64(cfg.InputSize))
	outputShape := ort.NewShape(cfg.OutputShape...)

	input, err := s.allocateInput(cfg.InputPrecision, inputShape)
	if err != nil {
		s.Close()
		return nil, err
	}
	output, err := s.allocateOutput(cfg.OutputPrecision, outputShape)
	if err != nil {
		s.Close()
		return nil, err
	}

	options, err := providers.SessionOptions(cfg.Provider)
	if err != nil {
		s.Close()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	s.session = session

	logger.Info("loaded model",
		zap.String("path", cfg.ModelPath),
		zap.String("inputPrecision", string(cfg.InputPrecision)),
		zap.String("outputPrecision", string(cfg.OutputPrecision)),
		zap.String("provider", string(cfg.Provider.Backend)),
		zap.Int64s("outputShape", cfg.OutputShape),
	)
	return s, nil
}

func (s *Session) allocateInput(p model.Precision, shape ort.Shape) (ort.Value, error) {
	var err error
	if p == model.PrecisionFP16 {
		s.input16, err = ort.NewCustomDataTensor(shape, make([]byte, 2*shape.FlattenedSize()), ort.TensorElementDataTypeFloat16)
		if err != nil {
			return nil, errors.Wrap(err, "error creating input tensor")
		}
		return s.input16, nil
	}

	s.input32, err = ort.NewEmptyTensor[float32](shape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	return s.input32, nil
}

func (s *Session) allocateOutput(p model.Precision, shape ort.Shape) (ort.Value, error) {
	var err error
	if p == model.PrecisionFP16 {
		s.output16, err = ort.NewCustomDataTensor(shape, make([]byte, 2*shape.FlattenedSize()), ort.TensorElementDataTypeFloat16)
		if err != nil {
			return nil, errors.Wrap(err, "error creating output tensor")
		}
		return s.output16, nil
	}

	s.output32, err = ort.NewEmptyTensor[float32](shape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating output tensor")
	}
	return s.output32, nil
}

// Run copies input into the session, runs the model and returns a copy of the output as
// float32. Calls are serialised.
//
// Arguments:
//   - ctx: Checked before the model runs.
//   - input: A float32 tensor with 3*InputSize*InputSize values.
//
// Returns:
//   - []float32: The raw output.
//   - error: An ErrShapeMismatch for a wrong input, or the runtime error.
func (s *Session) Run(ctx context.Context, input *tensor.Dense) ([]float32, error) {
	data, err := s.inputData(input)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	if s.input16 != nil {
		fp16.PutBytes(s.input16.GetData(), data)
	} else {
		copy(s.input32.GetData(), data)
	}

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running session")
	}

	if s.output16 != nil {
		return fp16.DecodeBytes(s.output16.GetData())
	}
	out := s.output32.GetData()
	return append(make([]float32, 0, len(out)), out...), nil
}

// inputData checks the tensor against the session's input size.
func (s *Session) inputData(input *tensor.Dense) ([]float32, error) {
	if input == nil || input.Dtype() != tensor.Float32 {
		return nil, errors.Wrap(model.ErrShapeMismatch, "input must be a float32 tensor")
	}
	data, ok := input.Data().([]float32)
	if !ok || len(data) != s.inputLen {
		return nil, errors.Wrapf(model.ErrShapeMismatch,
			"input tensor of shape %v does not hold %d values", input.Shape(), s.inputLen)
	}
	return data, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	destroy := func(v interface{ Destroy() error }) {
		if err := v.Destroy(); err != nil {
			s.logger.Warn("failed to release session resource", zap.Error(err))
		}
	}

	if s.session != nil {
		destroy(s.session)
		s.session = nil
	}
	if s.input32 != nil {
		destroy(s.input32)
		s.input32 = nil
	}
	if s.output32 != nil {
		destroy(s.output32)
		s.output32 = nil
	}
	if s.input16 != nil {
		destroy(s.input16)
		s.input16 = nil
	}
	if s.output16 != nil {
		destroy(s.output16)
		s.output16 = nil
	}
}
