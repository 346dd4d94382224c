package ptycho

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
)

// SimulateIntensity computes noiseless far-field intensities of psi at the
// scan positions. Each element of probes is one probe mode of shape
// [numAngles, probeSize, probeSize]; modes add incoherently:
//
//	data = Σ_mode |Forward(psi, scan, probe_mode)|²
//
// Angles are processed in chunks of op.Geometry().Batch.
func SimulateIntensity(ctx context.Context, op DiffractionOperator, psi Field, scan Scan, probes ...Field) (Intensity, error) {
	g := op.Geometry()
	if len(probes) == 0 {
		return Intensity{}, fmt.Errorf("%w: no probe modes", ErrNilField)
	}
	if psi.Depth%g.Batch != 0 {
		return Intensity{}, fmt.Errorf("%w: %d angles, partition %d", ErrPartition, psi.Depth, g.Batch)
	}
	angles := psi.Depth
	if err := psi.checkShape("object", angles, g.ObjectRows, g.ObjectCols); err != nil {
		return Intensity{}, err
	}
	if err := scan.checkShape(angles, g.NumScan); err != nil {
		return Intensity{}, err
	}
	if err := g.CheckScan(scan); err != nil {
		return Intensity{}, err
	}
	for m, prb := range probes {
		if err := prb.checkShape(fmt.Sprintf("probe mode %d", m), angles, g.ProbeSize, g.ProbeSize); err != nil {
			return Intensity{}, err
		}
	}

	data := NewIntensity(angles, g.NumScan, g.DetectorRows, g.DetectorCols)
	wave := NewField(g.Batch*g.NumScan, g.DetectorRows, g.DetectorCols)
	for lo := 0; lo < angles; lo += g.Batch {
		if err := ctx.Err(); err != nil {
			return Intensity{}, err
		}
		hi := lo + g.Batch
		out := data.Slice(lo, hi).Data
		for _, prb := range probes {
			if err := op.Forward(wave, psi.Slice(lo, hi), scan.Slice(lo, hi), prb.Slice(lo, hi)); err != nil {
				return Intensity{}, err
			}
			for i, v := range wave.Data {
				a := cmplx.Abs(v)
				out[i] += a * a
			}
		}
	}
	return data, nil
}

// InnerProducts holds both sides of an adjoint identity check.
type InnerProducts struct {
	// Forward is <Fx, Fx>.
	Forward complex128
	// Adjoint is <x, F*Fx>.
	Adjoint complex128
}

// RelativeError returns |Forward − Adjoint| / |Forward|.
func (p InnerProducts) RelativeError() float64 {
	den := cmplx.Abs(p.Forward)
	if den == 0 {
		return cmplx.Abs(p.Adjoint)
	}
	return cmplx.Abs(p.Forward-p.Adjoint) / den
}

// DotTest evaluates the adjoint identities of op for the object (probe
// fixed) and for the probe (object fixed) at one partition of inputs.
func DotTest(op DiffractionOperator, psi Field, scan Scan, prb Field) (object, probe InnerProducts, err error) {
	g := op.Geometry()
	wave := NewField(g.Batch*g.NumScan, g.DetectorRows, g.DetectorCols)
	if err = op.Forward(wave, psi, scan, prb); err != nil {
		return object, probe, err
	}
	fwd := cmplxs.Dot(wave.Data, wave.Data)

	adjO := NewField(psi.Depth, psi.Rows, psi.Cols)
	if err = op.AdjointObject(adjO, wave, scan, prb); err != nil {
		return object, probe, err
	}
	adjP := NewField(prb.Depth, prb.Rows, prb.Cols)
	if err = op.AdjointProbe(adjP, wave, scan, psi); err != nil {
		return object, probe, err
	}

	object = InnerProducts{Forward: fwd, Adjoint: cmplxs.Dot(psi.Data, adjO.Data)}
	probe = InnerProducts{Forward: fwd, Adjoint: cmplxs.Dot(prb.Data, adjP.Data)}
	return object, probe, nil
}

// NormalizedCorrelation returns |<a, b>| / (‖a‖‖b‖), which is 1 when a and
// b agree up to a global complex factor. mask, when non-nil, selects the
// elements taking part.
func NormalizedCorrelation(a, b []complex128, mask []bool) float64 {
	var dot complex128
	var na, nb float64
	for i := range a {
		if mask != nil && !mask[i] {
			continue
		}
		dot += cmplx.Conj(a[i]) * b[i]
		na += real(a[i])*real(a[i]) + imag(a[i])*imag(a[i])
		nb += real(b[i])*real(b[i]) + imag(b[i])*imag(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return cmplx.Abs(dot) / math.Sqrt(na*nb)
}

// PeakAmplitude returns max|v| over all elements of f.
func PeakAmplitude(f Field) float64 {
	return peakAbs(f.Data)
}
