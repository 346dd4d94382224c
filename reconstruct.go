package ptycho

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// Problem bundles the arrays of a reconstruction. Object and Probe are the
// initial guesses and receive the result in place.
type Problem struct {
	Object Field     // [NumAngles, ObjectRows, ObjectCols]
	Probe  Field     // [NumAngles, ProbeSize, ProbeSize]
	Scan   Scan      // [2, NumAngles, NumScan]
	Data   Intensity // [NumAngles, NumScan, DetectorRows, DetectorCols]
}

// Validate checks every array against cfg.
func (p Problem) Validate(cfg Config) error {
	if err := p.Object.checkShape("object", cfg.NumAngles, cfg.ObjectRows, cfg.ObjectCols); err != nil {
		return err
	}
	if err := p.Probe.checkShape("probe", cfg.NumAngles, cfg.ProbeSize, cfg.ProbeSize); err != nil {
		return err
	}
	if err := p.Scan.checkShape(cfg.NumAngles, cfg.NumScan); err != nil {
		return err
	}
	if err := p.Data.checkShape(cfg.NumAngles, cfg.NumScan, cfg.DetectorRows, cfg.DetectorCols); err != nil {
		return err
	}
	return cfg.Geometry().CheckScan(p.Scan)
}

// Options carries collaborators that do not affect the numerics.
type Options struct {
	// Logger receives progress and warnings. Nil discards them.
	Logger *slog.Logger

	// Observer receives every iteration of every angle. May be nil.
	Observer Observer
}

// Result is the outcome of Reconstruct.
type Result struct {
	// Object and Probe alias the Problem fields, which hold the result.
	Object Field
	Probe  Field

	History    []Iteration
	Partitions []PartitionSummary
}

// PhaseWrap reports whether any partition flagged a possible phase wrap.
func (r *Result) PhaseWrap() bool {
	for _, p := range r.Partitions {
		if p.PhaseWrap {
			return true
		}
	}
	return false
}

// FinalObjective sums the last recorded objective of every angle. It is NaN
// when no iteration ran.
func (r *Result) FinalObjective() float64 {
	if len(r.History) == 0 {
		return math.NaN()
	}
	last := map[int]float64{}
	for _, it := range r.History {
		last[it.Angle] = it.Objective
	}
	total := 0.0
	for _, f := range last {
		total += f
	}
	return total
}

// Reconstruct runs cfg.Iterations alternating CG iterations on every angle
// partition of prob, in order, writing the updated object and probe of each
// partition back into prob before starting the next.
//
// Every partition restarts its conjugate-gradient recurrences, and all
// step sizes and CG coefficients are computed per angle, so the result does
// not depend on cfg.AnglePartition.
//
// All validation happens before the first operator call. When ctx is
// cancelled, partitions already finished keep their results and the
// interrupted partition is left at its initial guess.
func Reconstruct(ctx context.Context, op DiffractionOperator, cfg Config, prob Problem, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if got, want := op.Geometry(), cfg.Geometry(); got != want {
		return nil, fmt.Errorf("%w: operator built for %+v, config needs %+v", ErrGeometry, got, want)
	}
	if err := prob.Validate(cfg); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	res := &Result{
		Object:  prob.Object,
		Probe:   prob.Probe,
		History: make([]Iteration, 0, cfg.Iterations*cfg.NumAngles),
	}
	obs := ObserverFunc(func(it Iteration) {
		res.History = append(res.History, it)
		if opts.Observer != nil {
			opts.Observer.ObserveIteration(it)
		}
	})
	s := &solver{op: op, cfg: cfg, log: log, obs: obs}

	pt := cfg.AnglePartition
	for k := 0; k < cfg.Partitions(); k++ {
		lo, hi := k*pt, (k+1)*pt
		part := PartitionSummary{Index: k, FirstAngle: lo, Angles: pt}

		psi := prob.Object.Slice(lo, hi).Clone()
		prb := prob.Probe.Slice(lo, hi).Clone()

		log.Debug("solving partition", "partition", k, "angles", fmt.Sprintf("[%d,%d)", lo, hi))
		if err := s.solve(ctx, &part, psi, prb, prob.Scan.Slice(lo, hi), prob.Data.Slice(lo, hi)); err != nil {
			res.Partitions = append(res.Partitions, part)
			return res, err
		}

		copy(prob.Object.Layers(lo, hi), psi.Data)
		copy(prob.Probe.Layers(lo, hi), prb.Data)
		res.Partitions = append(res.Partitions, part)
	}
	return res, nil
}
