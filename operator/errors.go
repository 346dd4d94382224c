package operator

import "errors"

var (
	// ErrNoBackend is returned when no backend is registered under a name.
	ErrNoBackend = errors.New("ptycho/operator: no backend registered")

	// ErrBackendUnavailable is returned when the backend is registered but
	// cannot run on the current system (no device, driver missing).
	ErrBackendUnavailable = errors.New("ptycho/operator: backend unavailable")

	// ErrClosed is returned by operators used after Close.
	ErrClosed = errors.New("ptycho/operator: operator closed")
)
