// Package cpufeat reports the SIMD capabilities of the host CPU.
package cpufeat

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Features describes the CPU features relevant to the FFT engines.
type Features struct {
	HasSSE2      bool
	HasAVX       bool
	HasAVX2      bool
	HasAVX512    bool
	HasNEON      bool
	Architecture string
}

// Detect reports the available CPU features for the current process.
func Detect() Features {
	return Features{
		HasSSE2:      cpu.X86.HasSSE2,
		HasAVX:       cpu.X86.HasAVX,
		HasAVX2:      cpu.X86.HasAVX2,
		HasAVX512:    cpu.X86.HasAVX512,
		HasNEON:      cpu.ARM64.HasASIMD,
		Architecture: runtime.GOARCH,
	}
}

// Names lists the detected feature names in a fixed order.
func (f Features) Names() []string {
	var names []string
	for _, c := range []struct {
		ok   bool
		name string
	}{
		{f.HasSSE2, "sse2"},
		{f.HasAVX, "avx"},
		{f.HasAVX2, "avx2"},
		{f.HasAVX512, "avx512"},
		{f.HasNEON, "neon"},
	} {
		if c.ok {
			names = append(names, c.name)
		}
	}
	return names
}

// String returns e.g. "amd64 [sse2 avx avx2]".
func (f Features) String() string {
	return f.Architecture + " [" + strings.Join(f.Names(), " ") + "]"
}
