package ptycho

import (
	"fmt"
	"math"
)

// Field is a stack of complex 2D layers stored row-major as [Depth, Rows, Cols].
//
// The object is a Field of shape [numAngles, height, width], the probe one
// of shape [numAngles, probeSize, probeSize] and detector-plane waves one of
// shape [numAngles*numScan, detRows, detCols].
type Field struct {
	Data  []complex128
	Depth int
	Rows  int
	Cols  int
}

// NewField allocates a zeroed field.
func NewField(depth, rows, cols int) Field {
	return Field{
		Data:  make([]complex128, depth*rows*cols),
		Depth: depth,
		Rows:  rows,
		Cols:  cols,
	}
}

// LayerLen returns the number of elements in one layer.
func (f Field) LayerLen() int {
	return f.Rows * f.Cols
}

// Layer returns layer k as a slice sharing f's storage.
func (f Field) Layer(k int) []complex128 {
	n := f.LayerLen()
	return f.Data[k*n : (k+1)*n : (k+1)*n]
}

// Layers returns layers [lo, hi) as one contiguous slice sharing f's storage.
func (f Field) Layers(lo, hi int) []complex128 {
	n := f.LayerLen()
	return f.Data[lo*n : hi*n : hi*n]
}

// Slice returns the view of layers [lo, hi). The view shares storage with f.
func (f Field) Slice(lo, hi int) Field {
	return Field{Data: f.Layers(lo, hi), Depth: hi - lo, Rows: f.Rows, Cols: f.Cols}
}

// Clone returns a deep copy of f.
func (f Field) Clone() Field {
	out := f
	out.Data = append([]complex128(nil), f.Data...)
	return out
}

// Fill sets every element to v.
func (f Field) Fill(v complex128) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

// At returns element (k, r, c).
func (f Field) At(k, r, c int) complex128 {
	return f.Data[(k*f.Rows+r)*f.Cols+c]
}

// Set assigns element (k, r, c).
func (f Field) Set(k, r, c int, v complex128) {
	f.Data[(k*f.Rows+r)*f.Cols+c] = v
}

func (f Field) String() string {
	return fmt.Sprintf("Field[%d,%d,%d]", f.Depth, f.Rows, f.Cols)
}

func (f Field) checkShape(name string, depth, rows, cols int) error {
	if f.Data == nil {
		return fmt.Errorf("%w: %s", ErrNilField, name)
	}
	if f.Depth != depth || f.Rows != rows || f.Cols != cols {
		return fmt.Errorf("%w: %s is %v, want [%d,%d,%d]", ErrShapeMismatch, name, f, depth, rows, cols)
	}
	if len(f.Data) != depth*rows*cols {
		return fmt.Errorf("%w: %s has %d elements, want %d", ErrShapeMismatch, name, len(f.Data), depth*rows*cols)
	}
	return nil
}

// Scan holds probe positions for every angle and scan point.
//
// Positions are logically laid out as [2, Angles, Positions] with index 0
// the horizontal (column) coordinate and index 1 the vertical (row)
// coordinate. The two coordinates are stored in separate slices so that a
// range of angles is a contiguous view.
type Scan struct {
	X         []float64
	Y         []float64
	Angles    int
	Positions int
}

// NewScan allocates a scan with all positions at the origin.
func NewScan(angles, positions int) Scan {
	return Scan{
		X:         make([]float64, angles*positions),
		Y:         make([]float64, angles*positions),
		Angles:    angles,
		Positions: positions,
	}
}

// ScanFromFlat copies positions from the [2, angles, positions] layout.
func ScanFromFlat(flat []float64, angles, positions int) (Scan, error) {
	n := angles * positions
	if len(flat) != 2*n {
		return Scan{}, fmt.Errorf("%w: scan has %d values, want 2*%d*%d", ErrShapeMismatch, len(flat), angles, positions)
	}
	s := NewScan(angles, positions)
	copy(s.X, flat[:n])
	copy(s.Y, flat[n:])
	return s, nil
}

// Slice returns the view of angles [lo, hi).
func (s Scan) Slice(lo, hi int) Scan {
	a, b := lo*s.Positions, hi*s.Positions
	return Scan{X: s.X[a:b:b], Y: s.Y[a:b:b], Angles: hi - lo, Positions: s.Positions}
}

// At returns the (x, y) position of scan point j at angle t.
func (s Scan) At(t, j int) (x, y float64) {
	i := t*s.Positions + j
	return s.X[i], s.Y[i]
}

// Set assigns the (x, y) position of scan point j at angle t.
func (s Scan) Set(t, j int, x, y float64) {
	i := t*s.Positions + j
	s.X[i], s.Y[i] = x, y
}

func (s Scan) checkShape(angles, positions int) error {
	if s.X == nil || s.Y == nil {
		return fmt.Errorf("%w: scan", ErrNilField)
	}
	if s.Angles != angles || s.Positions != positions ||
		len(s.X) != angles*positions || len(s.Y) != angles*positions {
		return fmt.Errorf("%w: scan is [2,%d,%d] (%d/%d values), want [2,%d,%d]",
			ErrShapeMismatch, s.Angles, s.Positions, len(s.X), len(s.Y), angles, positions)
	}
	return nil
}

// Intensity holds measured far-field intensities laid out as
// [Angles, Positions, Rows, Cols]. Values are non-negative and not assumed
// to be normalised.
type Intensity struct {
	Data      []float64
	Angles    int
	Positions int
	Rows      int
	Cols      int
}

// NewIntensity allocates a zeroed intensity stack.
func NewIntensity(angles, positions, rows, cols int) Intensity {
	return Intensity{
		Data:      make([]float64, angles*positions*rows*cols),
		Angles:    angles,
		Positions: positions,
		Rows:      rows,
		Cols:      cols,
	}
}

func (d Intensity) angleLen() int {
	return d.Positions * d.Rows * d.Cols
}

// Angle returns all diffraction patterns of angle t as one slice.
func (d Intensity) Angle(t int) []float64 {
	n := d.angleLen()
	return d.Data[t*n : (t+1)*n : (t+1)*n]
}

// Slice returns the view of angles [lo, hi).
func (d Intensity) Slice(lo, hi int) Intensity {
	n := d.angleLen()
	out := d
	out.Data = d.Data[lo*n : hi*n : hi*n]
	out.Angles = hi - lo
	return out
}

func (d Intensity) checkShape(angles, positions, rows, cols int) error {
	if d.Data == nil {
		return fmt.Errorf("%w: data", ErrNilField)
	}
	if d.Angles != angles || d.Positions != positions || d.Rows != rows || d.Cols != cols ||
		len(d.Data) != angles*positions*rows*cols {
		return fmt.Errorf("%w: data is [%d,%d,%d,%d], want [%d,%d,%d,%d]", ErrShapeMismatch,
			d.Angles, d.Positions, d.Rows, d.Cols, angles, positions, rows, cols)
	}
	for i, v := range d.Data {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: data[%d] = %v is not a non-negative intensity", ErrConfig, i, v)
		}
	}
	return nil
}
