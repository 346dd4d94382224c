// Package ptycho reconstructs a complex object transmission function, and
// optionally the illuminating probe, from far-field diffraction intensities
// recorded at overlapping scan positions.
//
// Reconstruct runs an alternating nonlinear conjugate-gradient iteration
// (Dai-Yuan directions, halving line search) under a gaussian or poisson
// noise model. Angles are solved in independent partitions of
// Config.AnglePartition angles to bound memory. The diffraction physics is
// supplied by a DiffractionOperator; package operator provides CPU
// implementations.
//
// Basic usage:
//
//	cfg := ptycho.DefaultConfig()
//	op, err := operator.New("", cfg.Geometry(), operator.Options{})
//	if err != nil {
//		return err
//	}
//	defer op.Close()
//
//	res, err := ptycho.Reconstruct(ctx, op, cfg, prob, ptycho.Options{Logger: slog.Default()})
package ptycho
