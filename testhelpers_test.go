package ptycho

import (
	"math/cmplx"
	"math/rand"
	"testing"
)

// Shared test helpers used across multiple test files

func assertApproxComplex128Tolf(t *testing.T, got, want complex128, tol float64, format string, args ...any) {
	t.Helper()

	if cmplx.Abs(got-want) > tol {
		t.Fatalf(format+": got %v want %v (diff=%v)", append(args, got, want, cmplx.Abs(got-want))...)
	}
}

func assertApproxFloat64Tolf(t *testing.T, got, want, tol float64, format string, args ...any) {
	t.Helper()

	if d := got - want; d > tol || d < -tol {
		t.Fatalf(format+": got %v want %v (diff=%v)", append(args, got, want, got-want)...)
	}
}

func randomSlice(rng *rand.Rand, n int) []complex128 {
	s := make([]complex128, n)
	for i := range s {
		s[i] = complex(rng.Float64()*2-1, rng.Float64()*2-1)
	}
	return s
}

func randomIntensity(rng *rand.Rand, n int) []float64 {
	d := make([]float64, n)
	for i := range d {
		d[i] = rng.Float64() * 4
	}
	return d
}

// patchOperator is a diffraction operator without the Fourier transform:
// the probe-weighted patch is copied into the centre of the detector frame.
// It satisfies the adjoint identities exactly and counts its calls.
type patchOperator struct {
	g     Geometry
	calls int
}

func (o *patchOperator) Geometry() Geometry { return o.g }

func (o *patchOperator) each(scan Scan, fn func(t, j, r0, c0, fr0, fc0 int)) error {
	offR, offC := o.g.PatchOffset()
	for t := 0; t < o.g.Batch; t++ {
		for j := 0; j < o.g.NumScan; j++ {
			r0, c0, ok := o.g.PatchOrigin(scan, t, j)
			if !ok {
				return ErrScanOutOfBounds
			}
			fn(t, j, r0, c0, offR, offC)
		}
	}
	return nil
}

func (o *patchOperator) Forward(dst, psi Field, scan Scan, prb Field) error {
	if err := o.g.CheckForward(dst, psi, scan, prb); err != nil {
		return err
	}
	o.calls++
	clear(dst.Data)
	p := o.g.ProbeSize
	return o.each(scan, func(t, j, r0, c0, fr0, fc0 int) {
		k := t*o.g.NumScan + j
		for r := 0; r < p; r++ {
			for c := 0; c < p; c++ {
				dst.Set(k, fr0+r, fc0+c, psi.At(t, r0+r, c0+c)*prb.At(t, r, c))
			}
		}
	})
}

func (o *patchOperator) AdjointObject(dst, wave Field, scan Scan, prb Field) error {
	if err := o.g.CheckAdjointObject(dst, wave, scan, prb); err != nil {
		return err
	}
	o.calls++
	clear(dst.Data)
	p := o.g.ProbeSize
	return o.each(scan, func(t, j, r0, c0, fr0, fc0 int) {
		k := t*o.g.NumScan + j
		for r := 0; r < p; r++ {
			for c := 0; c < p; c++ {
				v := dst.At(t, r0+r, c0+c) + cmplx.Conj(prb.At(t, r, c))*wave.At(k, fr0+r, fc0+c)
				dst.Set(t, r0+r, c0+c, v)
			}
		}
	})
}

func (o *patchOperator) AdjointProbe(dst, wave Field, scan Scan, psi Field) error {
	if err := o.g.CheckAdjointProbe(dst, wave, scan, psi); err != nil {
		return err
	}
	o.calls++
	clear(dst.Data)
	p := o.g.ProbeSize
	return o.each(scan, func(t, j, r0, c0, fr0, fc0 int) {
		k := t*o.g.NumScan + j
		for r := 0; r < p; r++ {
			for c := 0; c < p; c++ {
				v := dst.At(t, r, c) + cmplx.Conj(psi.At(t, r0+r, c0+c))*wave.At(k, fr0+r, fc0+c)
				dst.Set(t, r, c, v)
			}
		}
	})
}

// constGradOperator returns a fixed object gradient of ones regardless of
// the residual. Started from a zero object with zero data, every search
// direction increases the objective.
type constGradOperator struct {
	patchOperator
}

func (o *constGradOperator) AdjointObject(dst, wave Field, scan Scan, prb Field) error {
	if err := o.g.CheckAdjointObject(dst, wave, scan, prb); err != nil {
		return err
	}
	o.calls++
	dst.Fill(1)
	return nil
}

// testConfig returns a small configuration that keeps solver tests fast.
func testConfig() Config {
	return Config{
		ObjectRows:     12,
		ObjectCols:     14,
		ProbeSize:      4,
		DetectorRows:   6,
		DetectorCols:   6,
		NumAngles:      2,
		NumScan:        9,
		AnglePartition: 1,
		Iterations:     5,
		NoiseModel:     Gaussian,
	}
}

// testProblem builds a consistent problem for cfg: a random object, a
// unit probe, a 3x3 grid of positions and data simulated with op from the
// true object. The initial object is flat.
func testProblem(t *testing.T, cfg Config, seed int64) (Problem, Field) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	truth := NewField(cfg.NumAngles, cfg.ObjectRows, cfg.ObjectCols)
	copy(truth.Data, randomSlice(rng, len(truth.Data)))

	prb := NewField(cfg.NumAngles, cfg.ProbeSize, cfg.ProbeSize)
	prb.Fill(1)

	scan := NewScan(cfg.NumAngles, cfg.NumScan)
	side := 1
	for side*side < cfg.NumScan {
		side++
	}
	spanX, spanY := float64(cfg.ObjectCols-cfg.ProbeSize), float64(cfg.ObjectRows-cfg.ProbeSize)
	for a := 0; a < cfg.NumAngles; a++ {
		for j := 0; j < cfg.NumScan; j++ {
			x := spanX * float64(j%side) / float64(max(side-1, 1))
			y := spanY * float64(j/side) / float64(max(side-1, 1))
			scan.Set(a, j, x, y)
		}
	}

	op := &patchOperator{g: cfg.Geometry()}
	data, err := SimulateIntensity(t.Context(), op, truth, scan, prb)
	if err != nil {
		t.Fatalf("SimulateIntensity failed: %v", err)
	}

	obj := NewField(cfg.NumAngles, cfg.ObjectRows, cfg.ObjectCols)
	obj.Fill(1)
	return Problem{Object: obj, Probe: prb, Scan: scan, Data: data}, truth
}
