package transform

import (
	algofft "github.com/cwbudde/algo-fft"
)

// AlgoFFT is an Engine backed by an algo-fft 2D plan.
type AlgoFFT struct {
	plan *algofft.Plan2D[complex128]
}

// NewAlgoFFT plans a rows×cols transform.
func NewAlgoFFT(rows, cols int) (*AlgoFFT, error) {
	if rows < 1 || cols < 1 {
		return nil, ErrInvalidSize
	}
	plan, err := algofft.NewPlan2D64(rows, cols)
	if err != nil {
		return nil, err
	}
	return &AlgoFFT{plan: plan}, nil
}

func (a *AlgoFFT) Rows() int { return a.plan.Rows() }
func (a *AlgoFFT) Cols() int { return a.plan.Cols() }

// Forward computes the unnormalised forward transform of src into dst.
func (a *AlgoFFT) Forward(dst, src []complex128) error {
	if err := checkLen(a, dst, src); err != nil {
		return err
	}
	return a.plan.Forward(dst, src)
}
