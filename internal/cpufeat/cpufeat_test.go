package cpufeat

import (
	"runtime"
	"strings"
	"testing"
)

func TestDetectArchitecture(t *testing.T) {
	t.Parallel()

	f := Detect()
	if f.Architecture != runtime.GOARCH {
		t.Fatalf("Architecture = %q, want %q", f.Architecture, runtime.GOARCH)
	}

	if !strings.HasPrefix(f.String(), runtime.GOARCH+" [") {
		t.Errorf("String() = %q, want %q prefix", f.String(), runtime.GOARCH+" [")
	}
}

func TestNamesOrder(t *testing.T) {
	t.Parallel()

	f := Features{HasAVX2: true, HasSSE2: true, Architecture: "amd64"}
	if got := strings.Join(f.Names(), ","); got != "sse2,avx2" {
		t.Errorf("Names() = %q, want %q", got, "sse2,avx2")
	}

	if got := f.String(); got != "amd64 [sse2 avx2]" {
		t.Errorf("String() = %q", got)
	}
}
