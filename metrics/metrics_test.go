package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	ptycho "github.com/cwbudde/algo-ptycho"
)

func TestRecorderObserveIteration(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.ObserveIteration(ptycho.Iteration{Angle: 0, GammaObject: 0.5, Objective: 10})
	r.ObserveIteration(ptycho.Iteration{Angle: 0, GammaObject: 0, Objective: 8})
	r.ObserveIteration(ptycho.Iteration{Angle: 1, GammaObject: 0.25, Objective: 3})
	require.Equal(t, 0.0, testutil.ToFloat64(r.zeroSteps.WithLabelValues("probe")))

	r.TrackProbe()
	r.ObserveIteration(ptycho.Iteration{Angle: 1, GammaObject: 0.25, GammaProbe: 0, Objective: 2})

	require.Equal(t, 2.0, testutil.ToFloat64(r.iterations.WithLabelValues("0")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.iterations.WithLabelValues("1")))
	require.Equal(t, 8.0, testutil.ToFloat64(r.objective.WithLabelValues("0")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.objective.WithLabelValues("1")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.zeroSteps.WithLabelValues("object")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.zeroSteps.WithLabelValues("probe")))
	require.Equal(t, 1, testutil.CollectAndCount(r.gamma, "ptycho_cg_step_size"))
}

func TestRecorderObservePartitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.ObservePartitions([]ptycho.PartitionSummary{
		{Index: 0, PhaseWrap: true},
		{Index: 1, Stalled: true},
		{Index: 2},
	})

	require.Equal(t, 3.0, testutil.ToFloat64(r.partitions))
	require.Equal(t, 1.0, testutil.ToFloat64(r.phaseWrap))
	require.Equal(t, 1.0, testutil.ToFloat64(r.stalled))
}

func TestNewRecorderErrors(t *testing.T) {
	_, err := NewRecorder(nil)
	require.Error(t, err)

	reg := prometheus.NewRegistry()
	_, err = NewRecorder(reg)
	require.NoError(t, err)

	// Registering the same collectors twice panics in promauto.
	require.Panics(t, func() { _, _ = NewRecorder(reg) })
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)
	r.ObserveIteration(ptycho.Iteration{Angle: 2, GammaObject: 1, Objective: 4.5})

	path := filepath.Join(t.TempDir(), "ptycho.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.True(t, strings.Contains(text, `ptycho_cg_objective{angle="2"} 4.5`), text)
	require.True(t, strings.Contains(text, `ptycho_cg_iterations_total{angle="2"} 1`), text)
}
