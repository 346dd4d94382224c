package ptycho

import (
	"fmt"
	"math"
)

// Geometry fixes the sizes an operator is built for. Operators must be
// rebuilt when any of these change.
type Geometry struct {
	ObjectRows   int
	ObjectCols   int
	ProbeSize    int
	DetectorRows int
	DetectorCols int
	NumScan      int

	// Batch is the number of angles processed per operator call (the
	// angle partition size).
	Batch int
}

// Validate reports whether g describes a usable geometry.
func (g Geometry) Validate() error {
	switch {
	case g.ObjectRows < 1 || g.ObjectCols < 1:
		return fmt.Errorf("%w: object size %dx%d", ErrConfig, g.ObjectRows, g.ObjectCols)
	case g.ProbeSize < 1:
		return fmt.Errorf("%w: probe size %d", ErrConfig, g.ProbeSize)
	case g.DetectorRows < g.ProbeSize || g.DetectorCols < g.ProbeSize:
		return fmt.Errorf("%w: detector %dx%d smaller than probe %d", ErrConfig, g.DetectorRows, g.DetectorCols, g.ProbeSize)
	case g.ProbeSize > g.ObjectRows || g.ProbeSize > g.ObjectCols:
		return fmt.Errorf("%w: probe %d larger than object %dx%d", ErrConfig, g.ProbeSize, g.ObjectRows, g.ObjectCols)
	case g.NumScan < 1:
		return fmt.Errorf("%w: %d scan positions", ErrConfig, g.NumScan)
	case g.Batch < 1:
		return fmt.Errorf("%w: batch %d", ErrConfig, g.Batch)
	}
	return nil
}

// FrameLen returns the number of pixels in one detector frame.
func (g Geometry) FrameLen() int {
	return g.DetectorRows * g.DetectorCols
}

// PatchOffset returns where the probe-sized patch sits inside a detector
// frame. The patch is centred.
func (g Geometry) PatchOffset() (row, col int) {
	return (g.DetectorRows - g.ProbeSize) / 2, (g.DetectorCols - g.ProbeSize) / 2
}

// PatchOrigin returns the top-left object pixel covered by scan point j of
// angle t. Positions are truncated towards negative infinity. ok is false
// when the position is not finite or the patch leaves the object.
func (g Geometry) PatchOrigin(scan Scan, t, j int) (row, col int, ok bool) {
	x, y := scan.At(t, j)
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, false
	}
	fr, fc := math.Floor(y), math.Floor(x)
	if fr < 0 || fc < 0 || fr+float64(g.ProbeSize) > float64(g.ObjectRows) || fc+float64(g.ProbeSize) > float64(g.ObjectCols) {
		return 0, 0, false
	}
	return int(fr), int(fc), true
}

// CheckScan verifies that every scan position keeps the probe inside the object.
func (g Geometry) CheckScan(scan Scan) error {
	for t := 0; t < scan.Angles; t++ {
		for j := 0; j < scan.Positions; j++ {
			if _, _, ok := g.PatchOrigin(scan, t, j); !ok {
				x, y := scan.At(t, j)
				return fmt.Errorf("%w: angle %d position %d at (x=%g, y=%g)", ErrScanOutOfBounds, t, j, x, y)
			}
		}
	}
	return nil
}

// CheckForward validates the arguments of a Forward call.
func (g Geometry) CheckForward(dst, psi Field, scan Scan, prb Field) error {
	if err := g.checkCommon(scan, prb, psi); err != nil {
		return err
	}
	return dst.checkShape("wave", g.Batch*g.NumScan, g.DetectorRows, g.DetectorCols)
}

// CheckAdjointObject validates the arguments of an AdjointObject call.
func (g Geometry) CheckAdjointObject(dst, wave Field, scan Scan, prb Field) error {
	if err := wave.checkShape("wave", g.Batch*g.NumScan, g.DetectorRows, g.DetectorCols); err != nil {
		return err
	}
	return g.checkCommon(scan, prb, dst)
}

// CheckAdjointProbe validates the arguments of an AdjointProbe call.
func (g Geometry) CheckAdjointProbe(dst, wave Field, scan Scan, psi Field) error {
	if err := wave.checkShape("wave", g.Batch*g.NumScan, g.DetectorRows, g.DetectorCols); err != nil {
		return err
	}
	return g.checkCommon(scan, dst, psi)
}

func (g Geometry) checkCommon(scan Scan, prb, psi Field) error {
	if err := psi.checkShape("object", g.Batch, g.ObjectRows, g.ObjectCols); err != nil {
		return err
	}
	if err := prb.checkShape("probe", g.Batch, g.ProbeSize, g.ProbeSize); err != nil {
		return err
	}
	return scan.checkShape(g.Batch, g.NumScan)
}

// DiffractionOperator maps an object and probe at the scan positions to
// complex exit waves at the detector, and back.
//
// All calls process Geometry().Batch angles, block until the result is
// written to dst, and leave their inputs untouched. Implementations must
// satisfy the adjoint identities
//
//	<Forward(x, s, p), y> = <x, AdjointObject(y, s, p)>
//	<Forward(x, s, p), y> = <p, AdjointProbe(y, s, x)>
//
// within floating-point tolerance.
type DiffractionOperator interface {
	Geometry() Geometry

	// Forward writes the exit waves of psi illuminated by prb, shape
	// [Batch*NumScan, DetectorRows, DetectorCols], into dst.
	Forward(dst, psi Field, scan Scan, prb Field) error

	// AdjointObject writes the adjoint of Forward with respect to the
	// object, probe held fixed, into dst (object shape).
	AdjointObject(dst, wave Field, scan Scan, prb Field) error

	// AdjointProbe writes the adjoint of Forward with respect to the
	// probe, object held fixed, into dst (probe shape).
	AdjointProbe(dst, wave Field, scan Scan, psi Field) error
}
