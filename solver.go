package ptycho

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
)

// PhaseWrapLimit is the largest object phase magnitude accepted without a
// phase-wrap warning. Phases lie in [−π, π], so the limit sits just below π.
const PhaseWrapLimit = 3.14

// Iteration reports one CG iteration of one angle.
type Iteration struct {
	Partition int
	Angle     int // global angle index
	Index     int // iteration within the partition

	// GammaObject and GammaProbe are the accepted step sizes. Zero means
	// the line search found no decrease. GammaProbe is zero when the probe
	// is held fixed.
	GammaObject float64
	GammaProbe  float64

	// Objective is the data mismatch of the angle after both updates.
	Objective float64
}

// Observer receives per-iteration diagnostics. Calls are made from the
// goroutine running Reconstruct.
type Observer interface {
	ObserveIteration(Iteration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Iteration)

// ObserveIteration calls f(it).
func (f ObserverFunc) ObserveIteration(it Iteration) { f(it) }

// PartitionSummary describes how the solve of one angle partition ended.
type PartitionSummary struct {
	Index      int
	FirstAngle int
	Angles     int
	Iterations int  // iterations actually run
	Stalled    bool // stopped early by StallLimit
	MaxPhase   float64
	PhaseWrap  bool // MaxPhase > PhaseWrapLimit
}

// solver runs the alternating object/probe CG iteration on one partition.
type solver struct {
	op  DiffractionOperator
	cfg Config
	log *slog.Logger
	obs Observer
}

// workspace holds the scratch fields of one partition solve.
type workspace struct {
	fpsi   Field // forward of the current iterate
	fd     Field // forward of the search direction
	resid  Field
	gradO  Field
	dirO   Field
	gradP  Field
	dirP   Field
	recO   *DaiYuan
	recP   *DaiYuan
	gammaO []float64
	gammaP []float64
	objs   []float64
}

func newWorkspace(g Geometry, recoverProbe bool) *workspace {
	waves := g.Batch * g.NumScan
	ws := &workspace{
		fpsi:   NewField(waves, g.DetectorRows, g.DetectorCols),
		fd:     NewField(waves, g.DetectorRows, g.DetectorCols),
		resid:  NewField(waves, g.DetectorRows, g.DetectorCols),
		gradO:  NewField(g.Batch, g.ObjectRows, g.ObjectCols),
		dirO:   NewField(g.Batch, g.ObjectRows, g.ObjectCols),
		recO:   NewDaiYuan(g.Batch, g.ObjectRows, g.ObjectCols),
		gammaO: make([]float64, g.Batch),
		gammaP: make([]float64, g.Batch),
		objs:   make([]float64, g.Batch),
	}
	if recoverProbe {
		ws.gradP = NewField(g.Batch, g.ProbeSize, g.ProbeSize)
		ws.dirP = NewField(g.Batch, g.ProbeSize, g.ProbeSize)
		ws.recP = NewDaiYuan(g.Batch, g.ProbeSize, g.ProbeSize)
	}
	return ws
}

// solve updates psi and prb in place. part describes the partition; its
// Iterations, Stalled and phase fields are filled in on return.
func (s *solver) solve(ctx context.Context, part *PartitionSummary, psi, prb Field, scan Scan, data Intensity) error {
	g := s.op.Geometry()
	ws := newWorkspace(g, s.cfg.RecoverProbe)
	invScan := complex(1/float64(g.NumScan), 0)
	model := s.cfg.NoiseModel

	stallRun := 0
	for i := 0; i < s.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("partition %d iteration %d: %w", part.Index, i, err)
		}

		// Object update with the probe held fixed.
		if err := s.op.Forward(ws.fpsi, psi, scan, prb); err != nil {
			return err
		}
		model.Residual(ws.resid.Data, ws.fpsi.Data, data.Data)
		if err := s.op.AdjointObject(ws.gradO, ws.resid, scan, prb); err != nil {
			return err
		}
		ws.recO.Direction(ws.dirO, ws.gradO)
		if err := s.op.Forward(ws.fd, ws.dirO, scan, prb); err != nil {
			return err
		}
		for t := 0; t < g.Batch; t++ {
			fu, fd := ws.fpsi.Layers(t*g.NumScan, (t+1)*g.NumScan), ws.fd.Layers(t*g.NumScan, (t+1)*g.NumScan)
			ws.gammaO[t] = LineSearch(model, s.objectStep(prb.Layer(t)), fu, fd, data.Angle(t))
			if ws.gammaO[t] > 0 {
				cmplxs.AddScaled(psi.Layer(t), complex(ws.gammaO[t], 0), ws.dirO.Layer(t))
			}
			if !s.cfg.RecoverProbe {
				ws.objs[t] = model.objectiveAlong(fu, fd, ws.gammaO[t], data.Angle(t))
			}
		}

		// Probe update with the new object held fixed.
		if s.cfg.RecoverProbe {
			if err := s.op.Forward(ws.fpsi, psi, scan, prb); err != nil {
				return err
			}
			model.Residual(ws.resid.Data, ws.fpsi.Data, data.Data)
			if err := s.op.AdjointProbe(ws.gradP, ws.resid, scan, psi); err != nil {
				return err
			}
			cmplxs.Scale(invScan, ws.gradP.Data)
			ws.recP.Direction(ws.dirP, ws.gradP)
			if err := s.op.Forward(ws.fd, psi, scan, ws.dirP); err != nil {
				return err
			}
			for t := 0; t < g.Batch; t++ {
				fu, fd := ws.fpsi.Layers(t*g.NumScan, (t+1)*g.NumScan), ws.fd.Layers(t*g.NumScan, (t+1)*g.NumScan)
				ws.gammaP[t] = LineSearch(model, 1, fu, fd, data.Angle(t))
				if ws.gammaP[t] > 0 {
					cmplxs.AddScaled(prb.Layer(t), complex(ws.gammaP[t], 0), ws.dirP.Layer(t))
				}
				ws.objs[t] = model.objectiveAlong(fu, fd, ws.gammaP[t], data.Angle(t))
			}
		}

		s.report(part, i, ws)
		part.Iterations = i + 1

		if s.stalled(ws) {
			stallRun++
		} else {
			stallRun = 0
		}
		if s.cfg.StallLimit > 0 && stallRun >= s.cfg.StallLimit {
			part.Stalled = true
			s.log.Warn("partition stalled, stopping early",
				"partition", part.Index, "iter", i, "zero_step_iterations", stallRun)
			break
		}
	}

	part.MaxPhase = MaxPhase(psi)
	if part.MaxPhase > PhaseWrapLimit {
		part.PhaseWrap = true
		s.log.Warn("possible phase wrap", "partition", part.Index, "max_phase", part.MaxPhase)
	}
	return nil
}

// objectStep returns the initial object step 1/peak² for one angle.
func (s *solver) objectStep(prb []complex128) float64 {
	peak := s.cfg.ProbePeak
	if peak == 0 {
		peak = peakAbs(prb)
	}
	if peak == 0 {
		return 1
	}
	return 1 / (peak * peak)
}

func (s *solver) stalled(ws *workspace) bool {
	for t := range ws.gammaO {
		if ws.gammaO[t] != 0 {
			return false
		}
		if s.cfg.RecoverProbe && ws.gammaP[t] != 0 {
			return false
		}
	}
	return true
}

func (s *solver) report(part *PartitionSummary, i int, ws *workspace) {
	total := 0.0
	for t, f := range ws.objs {
		total += f
		if s.obs != nil {
			s.obs.ObserveIteration(Iteration{
				Partition:   part.Index,
				Angle:       part.FirstAngle + t,
				Index:       i,
				GammaObject: ws.gammaO[t],
				GammaProbe:  ws.gammaP[t],
				Objective:   f,
			})
		}
	}

	last := i == s.cfg.Iterations-1
	if (s.cfg.LogInterval > 0 && i%s.cfg.LogInterval == 0) || last {
		s.log.Info("cg iteration",
			"partition", part.Index,
			"iter", i,
			"gamma_psi", ws.gammaO,
			"gamma_prb", ws.gammaP,
			"objective", total)
	}
}

// MaxPhase returns the largest |angle| over all elements of f.
func MaxPhase(f Field) float64 {
	m := 0.0
	for _, v := range f.Data {
		if p := math.Abs(cmplx.Phase(v)); p > m {
			m = p
		}
	}
	return m
}

func peakAbs(s []complex128) float64 {
	m := 0.0
	for _, v := range s {
		if a := cmplx.Abs(v); a > m {
			m = a
		}
	}
	return m
}
