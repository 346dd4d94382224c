package ptycho

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Epsilon guards the logarithm and the amplitude ratio against zero
// magnitudes.
const Epsilon = 1e-32

// NoiseModel selects the data-mismatch functional.
type NoiseModel string

const (
	// Gaussian is amplitude least squares: ‖|fpsi| − sqrt(data)‖².
	Gaussian NoiseModel = "gaussian"

	// Poisson is the negative log-likelihood Σ(|fpsi|² − 2·data·log(|fpsi|+ε)).
	Poisson NoiseModel = "poisson"
)

// ParseNoiseModel returns the model named s.
func ParseNoiseModel(s string) (NoiseModel, error) {
	m := NoiseModel(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate returns ErrNoiseModel for anything but Gaussian and Poisson.
func (m NoiseModel) Validate() error {
	switch m {
	case Gaussian, Poisson:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrNoiseModel, string(m))
	}
}

func (m NoiseModel) String() string {
	return string(m)
}

// Objective evaluates the mismatch between simulated waves fpsi and
// measured intensities data. Both slices cover the same detector pixels.
func (m NoiseModel) Objective(fpsi []complex128, data []float64) float64 {
	return m.objectiveAlong(fpsi, nil, 0, data)
}

// objectiveAlong evaluates the objective at fu + gamma*fd without
// materialising the sum. A nil fd evaluates at fu.
func (m NoiseModel) objectiveAlong(fu, fd []complex128, gamma float64, data []float64) float64 {
	g := complex(gamma, 0)
	var f float64
	switch m {
	case Gaussian:
		for i, d := range data {
			z := fu[i]
			if fd != nil {
				z += g * fd[i]
			}
			r := cmplx.Abs(z) - math.Sqrt(d)
			f += r * r
		}
	case Poisson:
		for i, d := range data {
			z := fu[i]
			if fd != nil {
				z += g * fd[i]
			}
			a := cmplx.Abs(z)
			f += a*a - 2*d*math.Log(a+Epsilon)
		}
	}
	return f
}

// Residual writes the derivative of the objective with respect to the
// detector-plane field into dst:
//
//	gaussian: fpsi − sqrt(data)·exp(i·angle(fpsi))
//	poisson:  fpsi − data·fpsi/(|fpsi|² + ε)
func (m NoiseModel) Residual(dst, fpsi []complex128, data []float64) {
	switch m {
	case Gaussian:
		for i, d := range data {
			z := fpsi[i]
			a := cmplx.Abs(z)
			phase := complex(1, 0)
			if a > 0 {
				phase = z / complex(a, 0)
			}
			dst[i] = z - complex(math.Sqrt(d), 0)*phase
		}
	case Poisson:
		for i, d := range data {
			z := fpsi[i]
			a := cmplx.Abs(z)
			dst[i] = z - complex(d/(a*a+Epsilon), 0)*z
		}
	}
}
