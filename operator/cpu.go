package operator

import (
	"fmt"
	"math/cmplx"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/cmplxs"

	ptycho "github.com/cwbudde/algo-ptycho"
	"github.com/cwbudde/algo-ptycho/internal/transform"
)

type engineFactory func(rows, cols int) (transform.Engine, error)

// cpuOperator implements the diffraction operator on the CPU.
//
// For scan point j of angle t the forward image is the unitary 2D DFT of
// the probe-weighted object patch, centred in a detector-sized frame. The
// adjoints use F^H y = conj(F conj(y)), so only forward transforms are
// needed. The scan points of one angle are split into contiguous blocks,
// one per worker; adjoint blocks accumulate privately and are summed in
// worker order, which keeps results deterministic.
type cpuOperator struct {
	info       BackendInfo
	geom       ptycho.Geometry
	scale      complex128
	offR, offC int
	workers    []*worker
}

// worker owns the scratch space of one goroutine.
type worker struct {
	engine transform.Engine
	frame  []complex128
	freq   []complex128
	objAcc []complex128
	prbAcc []complex128
}

func newCPUOperator(info BackendInfo, geom ptycho.Geometry, opts Options, newEngine engineFactory) (*cpuOperator, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	n := opts.Workers
	if n < 1 {
		n = runtime.GOMAXPROCS(0)
	}
	n = min(n, geom.NumScan)

	o := &cpuOperator{
		info:    info,
		geom:    geom,
		scale:   complex(transform.UnitaryScale(geom.DetectorRows, geom.DetectorCols), 0),
		workers: make([]*worker, n),
	}
	o.offR, o.offC = geom.PatchOffset()

	for i := range o.workers {
		e, err := newEngine(geom.DetectorRows, geom.DetectorCols)
		if err != nil {
			return nil, fmt.Errorf("%s: plan %dx%d: %w", info.Name, geom.DetectorRows, geom.DetectorCols, err)
		}
		o.workers[i] = &worker{
			engine: e,
			frame:  make([]complex128, geom.FrameLen()),
			freq:   make([]complex128, geom.FrameLen()),
			objAcc: make([]complex128, geom.ObjectRows*geom.ObjectCols),
			prbAcc: make([]complex128, geom.ProbeSize*geom.ProbeSize),
		}
	}
	return o, nil
}

func (o *cpuOperator) Geometry() ptycho.Geometry { return o.geom }
func (o *cpuOperator) Info() BackendInfo         { return o.info }

// Close releases the scratch space. Later calls return ErrClosed.
func (o *cpuOperator) Close() error {
	o.workers = nil
	return nil
}

// run calls fn for every worker with its block [lo, hi) of scan points.
func (o *cpuOperator) run(fn func(w *worker, lo, hi int) error) error {
	n, s := len(o.workers), o.geom.NumScan
	if n == 1 {
		return fn(o.workers[0], 0, s)
	}
	var g errgroup.Group
	for i, w := range o.workers {
		lo, hi := i*s/n, (i+1)*s/n
		g.Go(func() error { return fn(w, lo, hi) })
	}
	return g.Wait()
}

func (o *cpuOperator) origin(scan ptycho.Scan, t, j int) (int, int, error) {
	r0, c0, ok := o.geom.PatchOrigin(scan, t, j)
	if !ok {
		return 0, 0, fmt.Errorf("%w: angle %d position %d", ptycho.ErrScanOutOfBounds, t, j)
	}
	return r0, c0, nil
}

// Forward implements ptycho.DiffractionOperator.
func (o *cpuOperator) Forward(dst, psi ptycho.Field, scan ptycho.Scan, prb ptycho.Field) error {
	if o.workers == nil {
		return ErrClosed
	}
	if err := o.geom.CheckForward(dst, psi, scan, prb); err != nil {
		return err
	}

	g := o.geom
	p := g.ProbeSize
	for t := 0; t < g.Batch; t++ {
		obj, probe := psi.Layer(t), prb.Layer(t)
		err := o.run(func(w *worker, lo, hi int) error {
			for j := lo; j < hi; j++ {
				r0, c0, err := o.origin(scan, t, j)
				if err != nil {
					return err
				}
				clear(w.frame)
				for r := 0; r < p; r++ {
					src := obj[(r0+r)*g.ObjectCols+c0:]
					pr := probe[r*p : (r+1)*p]
					fr := w.frame[(o.offR+r)*g.DetectorCols+o.offC:]
					for c, v := range pr {
						fr[c] = src[c] * v
					}
				}
				out := dst.Layer(t*g.NumScan + j)
				if err := w.engine.Forward(out, w.frame); err != nil {
					return err
				}
				cmplxs.Scale(o.scale, out)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// backproject leaves F^H y (unscaled, conjugated) in w.freq. The caller
// reads conj(w.freq[i])*o.scale.
func (o *cpuOperator) backproject(w *worker, y []complex128) error {
	for i, v := range y {
		w.frame[i] = cmplx.Conj(v)
	}
	return w.engine.Forward(w.freq, w.frame)
}

// AdjointObject implements ptycho.DiffractionOperator.
func (o *cpuOperator) AdjointObject(dst, wave ptycho.Field, scan ptycho.Scan, prb ptycho.Field) error {
	if o.workers == nil {
		return ErrClosed
	}
	if err := o.geom.CheckAdjointObject(dst, wave, scan, prb); err != nil {
		return err
	}

	g := o.geom
	p := g.ProbeSize
	for t := 0; t < g.Batch; t++ {
		probe := prb.Layer(t)
		err := o.run(func(w *worker, lo, hi int) error {
			clear(w.objAcc)
			for j := lo; j < hi; j++ {
				r0, c0, err := o.origin(scan, t, j)
				if err != nil {
					return err
				}
				if err := o.backproject(w, wave.Layer(t*g.NumScan+j)); err != nil {
					return err
				}
				for r := 0; r < p; r++ {
					acc := w.objAcc[(r0+r)*g.ObjectCols+c0:]
					pr := probe[r*p : (r+1)*p]
					sp := w.freq[(o.offR+r)*g.DetectorCols+o.offC:]
					for c, v := range pr {
						acc[c] += cmplx.Conj(sp[c]) * o.scale * cmplx.Conj(v)
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		out := dst.Layer(t)
		clear(out)
		for _, w := range o.workers {
			cmplxs.Add(out, w.objAcc)
		}
	}
	return nil
}

// AdjointProbe implements ptycho.DiffractionOperator.
func (o *cpuOperator) AdjointProbe(dst, wave ptycho.Field, scan ptycho.Scan, psi ptycho.Field) error {
	if o.workers == nil {
		return ErrClosed
	}
	if err := o.geom.CheckAdjointProbe(dst, wave, scan, psi); err != nil {
		return err
	}

	g := o.geom
	p := g.ProbeSize
	for t := 0; t < g.Batch; t++ {
		obj := psi.Layer(t)
		err := o.run(func(w *worker, lo, hi int) error {
			clear(w.prbAcc)
			for j := lo; j < hi; j++ {
				r0, c0, err := o.origin(scan, t, j)
				if err != nil {
					return err
				}
				if err := o.backproject(w, wave.Layer(t*g.NumScan+j)); err != nil {
					return err
				}
				for r := 0; r < p; r++ {
					acc := w.prbAcc[r*p : (r+1)*p]
					src := obj[(r0+r)*g.ObjectCols+c0:]
					sp := w.freq[(o.offR+r)*g.DetectorCols+o.offC:]
					for c := range acc {
						acc[c] += cmplx.Conj(sp[c]) * o.scale * cmplx.Conj(src[c])
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		out := dst.Layer(t)
		clear(out)
		for _, w := range o.workers {
			cmplxs.Add(out, w.prbAcc)
		}
	}
	return nil
}
