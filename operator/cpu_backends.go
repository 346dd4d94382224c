package operator

import (
	ptycho "github.com/cwbudde/algo-ptycho"
	"github.com/cwbudde/algo-ptycho/internal/cpufeat"
	"github.com/cwbudde/algo-ptycho/internal/transform"
)

func init() {
	Register(AlgoFFTBackend{})
	Register(GonumBackend{})
}

// AlgoFFTBackend runs the operator on algo-fft 2D plans.
type AlgoFFTBackend struct{}

// Info describes the backend.
func (AlgoFFTBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "algofft",
		Version:     "0.1",
		Description: "CPU operator on algo-fft 2D plans",
		Features:    cpufeat.Detect().String(),
	}
}

// Available always reports true; the backend is pure Go.
func (AlgoFFTBackend) Available() bool { return true }

// NewOperator returns a CPU operator that transforms with algo-fft plans.
func (b AlgoFFTBackend) NewOperator(geom ptycho.Geometry, opts Options) (Operator, error) {
	op, err := newCPUOperator(b.Info(), geom, opts, func(rows, cols int) (transform.Engine, error) {
		return transform.NewAlgoFFT(rows, cols)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// GonumBackend runs the operator on gonum row/column 1D FFTs. It is slower
// than AlgoFFTBackend and serves as an independent cross-check.
type GonumBackend struct{}

// Info describes the backend.
func (GonumBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "gonum",
		Version:     "0.1",
		Description: "CPU operator on gonum dsp/fourier",
		Features:    cpufeat.Detect().Architecture,
	}
}

// Available always reports true; the backend is pure Go.
func (GonumBackend) Available() bool { return true }

// NewOperator returns a CPU operator that transforms with gonum FFTs.
func (b GonumBackend) NewOperator(geom ptycho.Geometry, opts Options) (Operator, error) {
	op, err := newCPUOperator(b.Info(), geom, opts, func(rows, cols int) (transform.Engine, error) {
		return transform.NewGonum(rows, cols)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}
