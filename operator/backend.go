package operator

import (
	"fmt"
	"sort"
	"sync"

	ptycho "github.com/cwbudde/algo-ptycho"
)

// DefaultBackend is the backend used when none is named.
const DefaultBackend = "algofft"

// Backend builds diffraction operators.
type Backend interface {
	Info() BackendInfo
	Available() bool
	NewOperator(geom ptycho.Geometry, opts Options) (Operator, error)
}

// Operator is a diffraction operator holding resources that Close releases.
type Operator interface {
	ptycho.DiffractionOperator
	Info() BackendInfo
	Close() error
}

// BackendInfo describes a backend implementation.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
	// Features lists the host capabilities the backend runs with.
	Features string
}

// Options controls operator creation.
type Options struct {
	// Workers is the number of goroutines sharing the scan positions of
	// one angle. Values < 1 select runtime.GOMAXPROCS(0).
	Workers int
}

var (
	backendMu sync.RWMutex
	backends  = map[string]Backend{}
)

// Register adds b under its Info().Name, replacing any previous backend of
// that name.
func Register(b Backend) {
	backendMu.Lock()
	backends[b.Info().Name] = b
	backendMu.Unlock()
}

// Unregister removes the backend called name.
func Unregister(name string) {
	backendMu.Lock()
	delete(backends, name)
	backendMu.Unlock()
}

// Lookup returns the backend called name.
func Lookup(name string) (Backend, bool) {
	backendMu.RLock()
	b, ok := backends[name]
	backendMu.RUnlock()
	return b, ok
}

// Backends lists registered backends sorted by name.
func Backends() []BackendInfo {
	backendMu.RLock()
	infos := make([]BackendInfo, 0, len(backends))
	for _, b := range backends {
		infos = append(infos, b.Info())
	}
	backendMu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// New builds an operator for geom with the backend called name. An empty
// name selects DefaultBackend.
func New(name string, geom ptycho.Geometry, opts Options) (Operator, error) {
	if name == "" {
		name = DefaultBackend
	}
	b, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoBackend, name)
	}
	if !b.Available() {
		return nil, fmt.Errorf("%w: %q", ErrBackendUnavailable, name)
	}
	return b.NewOperator(geom, opts)
}
