// Package transform provides the unnormalised 2D discrete Fourier
// transforms used by the CPU diffraction operators.
//
// Engines hold scratch space and are not safe for concurrent use; create
// one per goroutine.
package transform

import (
	"errors"
	"math"
)

var (
	// ErrInvalidSize is returned for non-positive transform dimensions.
	ErrInvalidSize = errors.New("transform: invalid size")

	// ErrLengthMismatch is returned when dst or src do not hold Rows*Cols elements.
	ErrLengthMismatch = errors.New("transform: length mismatch")
)

// Engine computes the forward 2D DFT
//
//	X[u,v] = Σ_r Σ_c x[r,c]·exp(−2πi(u·r/Rows + v·c/Cols))
//
// of row-major data. dst and src must not overlap.
type Engine interface {
	Rows() int
	Cols() int
	Forward(dst, src []complex128) error
}

// UnitaryScale returns 1/sqrt(rows*cols), the factor that makes the DFT unitary.
func UnitaryScale(rows, cols int) float64 {
	return 1 / math.Sqrt(float64(rows*cols))
}

func checkLen(e Engine, dst, src []complex128) error {
	n := e.Rows() * e.Cols()
	if len(dst) != n || len(src) != n {
		return ErrLengthMismatch
	}
	return nil
}
