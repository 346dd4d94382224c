package ptycho_test

import (
	"context"
	"math"
	"os"
	"testing"

	ptycho "github.com/cwbudde/algo-ptycho"
	"github.com/cwbudde/algo-ptycho/operator"
	"github.com/cwbudde/algo-ptycho/phantom"
)

func newOperator(t *testing.T, cfg ptycho.Config) operator.Operator {
	t.Helper()

	op, err := operator.New(operator.DefaultBackend, cfg.Geometry(), operator.Options{Workers: 2})
	if err != nil {
		t.Fatalf("operator.New failed: %v", err)
	}
	t.Cleanup(func() { _ = op.Close() })
	return op
}

func TestPartitionSizeDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	base := ptycho.DefaultConfig()
	base.ObjectRows, base.ObjectCols = 32, 40
	base.ProbeSize, base.DetectorRows, base.DetectorCols = 16, 16, 16
	base.NumAngles = 4
	base.NumScan = 40
	base.Iterations = 6
	base.RecoverProbe = true

	truth := phantom.New(base, phantom.Options{})

	var ref ptycho.Field
	for _, pt := range []int{1, 2, 4} {
		cfg := base
		cfg.AnglePartition = pt
		op := newOperator(t, cfg)

		prob, err := truth.Problem(context.Background(), op, cfg)
		if err != nil {
			t.Fatalf("ptheta %d: Problem failed: %v", pt, err)
		}
		res, err := ptycho.Reconstruct(context.Background(), op, cfg, prob, ptycho.Options{})
		if err != nil {
			t.Fatalf("ptheta %d: Reconstruct failed: %v", pt, err)
		}
		if got := len(res.Partitions); got != 4/pt {
			t.Errorf("ptheta %d: %d partitions, want %d", pt, got, 4/pt)
		}

		if pt == 1 {
			ref = res.Object.Clone()
			continue
		}
		for i, v := range res.Object.Data {
			if d := v - ref.Data[i]; math.Hypot(real(d), imag(d)) > 1e-9 {
				t.Fatalf("ptheta %d: object[%d] = %v, ptheta 1 gave %v", pt, i, v, ref.Data[i])
			}
		}
	}
}

func TestSimulateIntensityAddsModes(t *testing.T) {
	t.Parallel()

	cfg := ptycho.DefaultConfig()
	cfg.ObjectRows, cfg.ObjectCols = 24, 24
	cfg.ProbeSize, cfg.DetectorRows, cfg.DetectorCols = 8, 12, 12
	cfg.NumScan = 10
	op := newOperator(t, cfg)

	ph := phantom.New(cfg, phantom.Options{Modes: 2})
	ctx := context.Background()

	both, err := ptycho.SimulateIntensity(ctx, op, ph.Object, ph.Scan, ph.Modes...)
	if err != nil {
		t.Fatalf("SimulateIntensity failed: %v", err)
	}
	first, err := ptycho.SimulateIntensity(ctx, op, ph.Object, ph.Scan, ph.Modes[0])
	if err != nil {
		t.Fatalf("SimulateIntensity failed: %v", err)
	}
	second, err := ptycho.SimulateIntensity(ctx, op, ph.Object, ph.Scan, ph.Modes[1])
	if err != nil {
		t.Fatalf("SimulateIntensity failed: %v", err)
	}

	for i, v := range both.Data {
		if want := first.Data[i] + second.Data[i]; math.Abs(v-want) > 1e-12*(1+want) {
			t.Fatalf("data[%d] = %v, want %v", i, v, want)
		}
	}

	if _, err := ptycho.SimulateIntensity(ctx, op, ph.Object, ph.Scan); err == nil {
		t.Error("SimulateIntensity without probes succeeded")
	}
}

// recoveryConfig is a scaled-down version of the 276x600 single-angle
// scene, small enough for the default test run.
func recoveryConfig() ptycho.Config {
	cfg := ptycho.DefaultConfig()
	cfg.ObjectRows, cfg.ObjectCols = 48, 64
	cfg.ProbeSize, cfg.DetectorRows, cfg.DetectorCols = 16, 16, 16
	cfg.NumScan = 150
	cfg.Iterations = 300
	cfg.LogInterval = 0
	return cfg
}

func runRecovery(t *testing.T, cfg ptycho.Config) (*ptycho.Result, phantom.Phantom, float64) {
	t.Helper()

	op := newOperator(t, cfg)
	truth := phantom.New(cfg, phantom.Options{})
	prob, err := truth.Problem(context.Background(), op, cfg)
	if err != nil {
		t.Fatalf("Problem failed: %v", err)
	}

	start := ptycho.NewField(cfg.NumScan, cfg.DetectorRows, cfg.DetectorCols)
	if err := op.Forward(start, prob.Object, prob.Scan, prob.Probe); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	initial := cfg.NoiseModel.Objective(start.Data, prob.Data.Data)

	res, err := ptycho.Reconstruct(context.Background(), op, cfg, prob, ptycho.Options{})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	return res, truth, initial
}

func TestReconstructRecoversObject(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping reconstruction in short mode")
	}
	t.Parallel()

	cfg := recoveryConfig()
	res, truth, initial := runRecovery(t, cfg)

	final := res.FinalObjective()
	if !(final < initial) {
		t.Fatalf("objective %v, started at %v", final, initial)
	}

	mask := phantom.Illuminated(cfg.Geometry(), truth.Scan, truth.Probe.Layer(0), 0, 0.5)
	corr := ptycho.NormalizedCorrelation(res.Object.Layer(0), truth.Object.Layer(0), mask)
	if corr < 0.9 {
		t.Errorf("correlation with ground truth %.4f, want > 0.9 (objective %g -> %g)", corr, initial, final)
	}
}

func TestReconstructWithProbeRecovery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping reconstruction in short mode")
	}
	t.Parallel()

	cfg := recoveryConfig()
	cfg.RecoverProbe = true
	cfg.Iterations = 60
	res, truth, initial := runRecovery(t, cfg)

	final := res.FinalObjective()
	if !(final < initial) || math.IsNaN(final) {
		t.Fatalf("objective %v, started at %v", final, initial)
	}
	for i, v := range res.Probe.Data {
		if math.IsNaN(real(v)) || math.IsNaN(imag(v)) || math.IsInf(real(v), 0) || math.IsInf(imag(v), 0) {
			t.Fatalf("probe[%d] = %v", i, v)
		}
	}

	checkGroundTruth(t, cfg, res, truth, 0.9)
}

// checkGroundTruth compares the object over the illuminated area and, when
// it was recovered, the probe with the ground truth up to a global factor.
func checkGroundTruth(t *testing.T, cfg ptycho.Config, res *ptycho.Result, truth phantom.Phantom, want float64) {
	t.Helper()

	mask := phantom.Illuminated(cfg.Geometry(), truth.Scan, truth.Probe.Layer(0), 0, 0.5)
	if corr := ptycho.NormalizedCorrelation(res.Object.Layer(0), truth.Object.Layer(0), mask); corr < want {
		t.Errorf("object correlation with ground truth %.4f, want > %g", corr, want)
	}
	if !cfg.RecoverProbe {
		return
	}
	if corr := ptycho.NormalizedCorrelation(res.Probe.Layer(0), truth.Probe.Layer(0), nil); corr < want {
		t.Errorf("probe correlation with ground truth %.4f, want > %g", corr, want)
	}
}

func TestReconstructFullScene(t *testing.T) {
	if os.Getenv("PTYCHO_LONG") != "1" {
		t.Skip("set PTYCHO_LONG=1 to run the 276x600 scene")
	}

	for _, withProbe := range []bool{false, true} {
		cfg := ptycho.DefaultConfig()
		cfg.ObjectRows, cfg.ObjectCols = 276, 600
		cfg.ProbeSize, cfg.DetectorRows, cfg.DetectorCols = 128, 128, 128
		cfg.NumScan = 1000
		cfg.Iterations = 512
		cfg.LogInterval = 0
		cfg.RecoverProbe = withProbe

		res, truth, initial := runRecovery(t, cfg)
		if final := res.FinalObjective(); !(final < initial) {
			t.Fatalf("recover probe %v: objective %v, started at %v", withProbe, final, initial)
		}
		want := 0.95
		if withProbe {
			want = 0.9
		}
		checkGroundTruth(t, cfg, res, truth, want)
	}
}
