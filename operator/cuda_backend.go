//go:build cuda

package operator

import ptycho "github.com/cwbudde/algo-ptycho"

func init() {
	Register(CUDABackend{})
}

// CUDABackend is a stub backend enabled with the "cuda" build tag.
// It does not provide a working implementation yet.
type CUDABackend struct{}

// Info describes the backend.
func (CUDABackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "cuda",
		Version:     "stub",
		Description: "CUDA backend stub (no implementation)",
	}
}

// Available reports false until a device implementation exists.
func (CUDABackend) Available() bool { return false }

// NewOperator returns ErrBackendUnavailable.
func (CUDABackend) NewOperator(ptycho.Geometry, Options) (Operator, error) {
	return nil, ErrBackendUnavailable
}
