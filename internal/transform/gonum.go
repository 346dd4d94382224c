package transform

import "gonum.org/v1/gonum/dsp/fourier"

// Gonum is an Engine that applies gonum 1D FFTs along rows, then columns.
type Gonum struct {
	rows, cols int
	rowFFT     *fourier.CmplxFFT
	colFFT     *fourier.CmplxFFT
	column     []complex128
}

// NewGonum plans a rows×cols transform.
func NewGonum(rows, cols int) (*Gonum, error) {
	if rows < 1 || cols < 1 {
		return nil, ErrInvalidSize
	}
	return &Gonum{
		rows:   rows,
		cols:   cols,
		rowFFT: fourier.NewCmplxFFT(cols),
		colFFT: fourier.NewCmplxFFT(rows),
		column: make([]complex128, rows),
	}, nil
}

func (g *Gonum) Rows() int { return g.rows }
func (g *Gonum) Cols() int { return g.cols }

// Forward computes the unnormalised forward transform of src into dst.
func (g *Gonum) Forward(dst, src []complex128) error {
	if err := checkLen(g, dst, src); err != nil {
		return err
	}
	for r := 0; r < g.rows; r++ {
		g.rowFFT.Coefficients(dst[r*g.cols:(r+1)*g.cols], src[r*g.cols:(r+1)*g.cols])
	}
	for c := 0; c < g.cols; c++ {
		for r := 0; r < g.rows; r++ {
			g.column[r] = dst[r*g.cols+c]
		}
		g.colFFT.Coefficients(g.column, g.column)
		for r := 0; r < g.rows; r++ {
			dst[r*g.cols+c] = g.column[r]
		}
	}
	return nil
}
