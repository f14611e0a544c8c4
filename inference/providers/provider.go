// Package providers - ONNX Runtime execution providers and session options.
package providers

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

const (
	// CPUProviderBackend is the default ONNX Runtime CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// CUDAProviderBackend uses NVIDIA CUDA.
	CUDAProviderBackend ProviderBackend = "cuda"
	// OpenVINOProviderBackend uses Intel OpenVINO.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// Validate rejects unknown backends. The empty backend means CPU.
func (b ProviderBackend) Validate() error {
	switch b {
	case "", CPUProviderBackend, CoreMLProviderBackend, CUDAProviderBackend, OpenVINOProviderBackend:
		return nil
	default:
		return errors.Wrapf(model.ErrInvalidConfiguration, "unsupported execution provider %q", b)
	}
}

// Options selects the execution provider and threading of a session.
type Options struct {
	// Backend is the execution provider appended to the session.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// DeviceID selects the GPU for CUDA and OpenVINO.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// IntraOpThreads parallelises execution within graph nodes. 0 uses the runtime default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads parallelises execution across graph nodes. 0 uses the runtime default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
}
