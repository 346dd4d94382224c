package ptycho

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
)

// DaiYuan carries the nonlinear conjugate-gradient recurrence of one
// optimised field. Every layer (angle) has its own recurrence; the first
// call after NewDaiYuan or Reset returns the steepest-descent direction.
//
// For layer k the direction is
//
//	d = −g + β·dPrev,  β = ‖g‖² / Σ conj(dPrev)·(g − gPrev)
//
// If the denominator vanishes or β is not finite the layer restarts from −g.
type DaiYuan struct {
	prevGrad Field
	prevDir  Field
	started  bool
	y        []complex128
}

// NewDaiYuan returns a recurrence for fields of the given shape.
func NewDaiYuan(depth, rows, cols int) *DaiYuan {
	return &DaiYuan{
		prevGrad: NewField(depth, rows, cols),
		prevDir:  NewField(depth, rows, cols),
		y:        make([]complex128, rows*cols),
	}
}

// Reset forgets the previous gradient and direction.
func (dy *DaiYuan) Reset() {
	dy.started = false
}

// Direction writes the search direction for grad into dst and records
// grad and dst for the next call. It returns the number of layers that
// fell back to steepest descent after the first call.
func (dy *DaiYuan) Direction(dst, grad Field) int {
	restarts := 0
	for k := 0; k < grad.Depth; k++ {
		g, d := grad.Layer(k), dst.Layer(k)
		if !dy.started {
			cmplxs.ScaleTo(d, -1, g)
		} else if beta, ok := dy.beta(k, g); ok {
			cmplxs.ScaleTo(d, -1, g)
			cmplxs.AddScaled(d, beta, dy.prevDir.Layer(k))
		} else {
			cmplxs.ScaleTo(d, -1, g)
			restarts++
		}
		copy(dy.prevGrad.Layer(k), g)
		copy(dy.prevDir.Layer(k), d)
	}
	dy.started = true
	return restarts
}

func (dy *DaiYuan) beta(k int, g []complex128) (complex128, bool) {
	cmplxs.SubTo(dy.y, g, dy.prevGrad.Layer(k))
	den := cmplxs.Dot(dy.prevDir.Layer(k), dy.y)
	if den == 0 {
		return 0, false
	}
	norm := cmplxs.Norm(g, 2)
	beta := complex(norm*norm, 0) / den
	if cmplx.IsNaN(beta) || cmplx.IsInf(beta) || math.IsNaN(norm) {
		return 0, false
	}
	return beta, true
}
