package ptycho

import (
	"math/cmplx"
	"math/rand"
	"testing"
)

func TestLineSearchNeverIncreasesObjective(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for _, model := range []NoiseModel{Gaussian, Poisson} {
		for trial := 0; trial < 50; trial++ {
			fu, fd := randomSlice(rng, 32), randomSlice(rng, 32)
			data := randomIntensity(rng, 32)
			seed := 1 + rng.Float64()*10

			gamma := LineSearch(model, seed, fu, fd, data)
			if gamma < 0 || gamma > seed {
				t.Fatalf("%s trial %d: gamma %g outside [0, %g]", model, trial, gamma, seed)
			}
			if gamma == 0 {
				continue
			}
			f0 := model.Objective(fu, data)
			f1 := model.objectiveAlong(fu, fd, gamma, data)
			if f1 > f0 {
				t.Fatalf("%s trial %d: objective rose from %v to %v at gamma %g", model, trial, f0, f1, gamma)
			}
		}
	}
}

func TestLineSearchKeepsAcceptedSeed(t *testing.T) {
	t.Parallel()

	// fd points straight at the measured amplitudes.
	fu := []complex128{1, 1i}
	fd := []complex128{1, 1i}
	data := []float64{4, 4}

	if got := LineSearch(Gaussian, 1, fu, fd, data); got != 1 {
		t.Errorf("gamma = %g, want the seed 1", got)
	}
	if got := LineSearch(Gaussian, 4, fu, fd, data); got != 2 {
		t.Errorf("gamma = %g, want 2 after one halving", got)
	}
}

func TestLineSearchDegenerate(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	fu := make([]complex128, 16)
	fd := randomSlice(rng, 16)
	data := make([]float64, 16)

	// From a perfect fit every step increases the mismatch.
	if got := LineSearch(Gaussian, 1, fu, fd, data); got != 0 {
		t.Errorf("gamma = %g, want 0", got)
	}
}

func TestLineSearchOrthogonalDirection(t *testing.T) {
	t.Parallel()

	// fd is orthogonal to a non-zero residual, so no step reduces the
	// objective and a long one only adds amplitude.
	fu := []complex128{1}
	fd := []complex128{1e40i}
	for _, tc := range []struct {
		model NoiseModel
		data  []float64
	}{
		{Gaussian, []float64{4}},
		{Poisson, []float64{0}},
	} {
		resid := make([]complex128, 1)
		tc.model.Residual(resid, fu, tc.data)
		if resid[0] == 0 {
			t.Fatalf("%s: residual is zero", tc.model)
		}
		if slope := real(cmplx.Conj(resid[0]) * fd[0]); slope != 0 {
			t.Fatalf("%s: directional derivative %g, want 0", tc.model, slope)
		}

		if got := LineSearch(tc.model, 1, fu, fd, tc.data); got != 0 {
			t.Errorf("%s: gamma = %g, want 0", tc.model, got)
		}
	}
}
