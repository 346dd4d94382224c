package ptycho

import "errors"

// Sentinel errors returned by reconstruction operations.
// Returned errors wrap one of these; test with errors.Is.
var (
	// ErrConfig is returned when a configuration value is out of range or
	// inconsistent with another value.
	ErrConfig = errors.New("ptycho: invalid configuration")

	// ErrNoiseModel is returned when the noise model is neither gaussian
	// nor poisson.
	ErrNoiseModel = errors.New("ptycho: unknown noise model")

	// ErrPartition is returned when the number of angles is not an exact
	// multiple of the angle partition size.
	ErrPartition = errors.New("ptycho: angle count not divisible by partition size")

	// ErrShapeMismatch is returned when object, probe, scan or data
	// dimensions disagree with each other or with the configuration.
	ErrShapeMismatch = errors.New("ptycho: shape mismatch")

	// ErrScanOutOfBounds is returned when a scan position places the probe
	// patch (partly) outside the object, or is not a finite number.
	ErrScanOutOfBounds = errors.New("ptycho: scan position outside object")

	// ErrNilField is returned when a required field has no backing data.
	ErrNilField = errors.New("ptycho: nil field")

	// ErrGeometry is returned when an operator was built for a different
	// geometry than the one requested.
	ErrGeometry = errors.New("ptycho: operator geometry mismatch")
)
