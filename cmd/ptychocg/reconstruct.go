package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	ptycho "github.com/cwbudde/algo-ptycho"
	"github.com/cwbudde/algo-ptycho/metrics"
	"github.com/cwbudde/algo-ptycho/phantom"
)

type reconstructOptions struct {
	iterations   int
	model        string
	recoverProbe bool
	partition    int
	stallLimit   int
	modes        int
	seed         int64
	trajectory   string
	jitter       float64
	peak         float64
	metricsFile  string
}

func newReconstructCmd(g *globalOptions) *cobra.Command {
	opts := &reconstructOptions{}

	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Simulate a phantom scene and reconstruct it",
		Long: `Builds a synthetic object, probe and scan for the configured geometry,
simulates noiseless diffraction data and runs the alternating CG solver from
a flat object. Reports the objective drop and the correlation of the result
with the ground truth over the illuminated area.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &cfg); err != nil {
				return err
			}
			return runReconstruct(cmd, g, opts, cfg)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.iterations, "iterations", 0, "CG iterations per partition (overrides config)")
	f.StringVar(&opts.model, "model", "", "noise model: gaussian or poisson (overrides config)")
	f.BoolVar(&opts.recoverProbe, "recover-probe", false, "also reconstruct the probe (overrides config)")
	f.IntVar(&opts.partition, "partition", 0, "angles per partition (overrides config)")
	f.IntVar(&opts.stallLimit, "stall-limit", 0, "stop a partition after this many zero-step iterations (overrides config)")
	f.IntVar(&opts.modes, "modes", 1, "probe modes used to simulate the data")
	f.Int64Var(&opts.seed, "seed", 1, "seed for the raster jitter")
	f.StringVar(&opts.trajectory, "trajectory", string(phantom.Spiral), "scan trajectory: spiral or raster")
	f.Float64Var(&opts.jitter, "jitter", 1, "raster jitter in pixels")
	f.Float64Var(&opts.peak, "peak", 1, "peak amplitude of the simulated probe")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	return cmd
}

// apply copies explicitly set flags over cfg and revalidates it.
func (o *reconstructOptions) apply(cmd *cobra.Command, cfg *ptycho.Config) error {
	f := cmd.Flags()
	if f.Changed("iterations") {
		cfg.Iterations = o.iterations
	}
	if f.Changed("model") {
		m, err := ptycho.ParseNoiseModel(o.model)
		if err != nil {
			return err
		}
		cfg.NoiseModel = m
	}
	if f.Changed("recover-probe") {
		cfg.RecoverProbe = o.recoverProbe
	}
	if f.Changed("partition") {
		cfg.AnglePartition = o.partition
	}
	if f.Changed("stall-limit") {
		cfg.StallLimit = o.stallLimit
	}
	switch phantom.Trajectory(o.trajectory) {
	case phantom.Spiral, phantom.Raster:
	default:
		return fmt.Errorf("invalid --trajectory %q: want spiral or raster", o.trajectory)
	}
	return cfg.Validate()
}

func runReconstruct(cmd *cobra.Command, g *globalOptions, opts *reconstructOptions, cfg ptycho.Config) error {
	ctx := cmd.Context()
	log := g.log

	op, err := g.newOperator(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = op.Close() }()

	truth := phantom.New(cfg, phantom.Options{
		Seed:       opts.seed,
		Peak:       opts.peak,
		Modes:      opts.modes,
		Trajectory: phantom.Trajectory(opts.trajectory),
		Jitter:     opts.jitter,
	})
	prob, err := truth.Problem(ctx, op, cfg)
	if err != nil {
		return fmt.Errorf("simulate data: %w", err)
	}

	initial, err := totalObjective(ctx, op, cfg, prob)
	if err != nil {
		return err
	}

	var (
		reg *prometheus.Registry
		rec *metrics.Recorder
	)
	ropts := ptycho.Options{Logger: log}
	if opts.metricsFile != "" {
		reg = prometheus.NewRegistry()
		if rec, err = metrics.NewRecorder(reg); err != nil {
			return err
		}
		if cfg.RecoverProbe {
			rec.TrackProbe()
		}
		ropts.Observer = rec
	}

	log.Info("reconstruction started",
		"object", fmt.Sprintf("%dx%d", cfg.ObjectRows, cfg.ObjectCols),
		"angles", cfg.NumAngles,
		"scan", cfg.NumScan,
		"partition", cfg.AnglePartition,
		"model", cfg.NoiseModel,
		"recover_probe", cfg.RecoverProbe,
		"iterations", cfg.Iterations)

	start := time.Now()
	res, err := ptycho.Reconstruct(ctx, op, cfg, prob, ropts)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	if final := res.FinalObjective(); math.IsNaN(final) {
		fmt.Fprintf(out, "objective   %.6g (no iterations)\n", initial)
	} else {
		fmt.Fprintf(out, "objective   %.6g -> %.6g\n", initial, final)
	}
	geom := cfg.Geometry()
	for t := 0; t < cfg.NumAngles; t++ {
		mask := phantom.Illuminated(geom, truth.Scan, truth.Probe.Layer(t), t, 0.5)
		corr := ptycho.NormalizedCorrelation(res.Object.Layer(t), truth.Object.Layer(t), mask)
		fmt.Fprintf(out, "angle %-4d  correlation %.4f\n", t, corr)
	}
	if cfg.RecoverProbe {
		corr := ptycho.NormalizedCorrelation(res.Probe.Data, truth.Probe.Data, nil)
		fmt.Fprintf(out, "probe       correlation %.4f\n", corr)
	}
	fmt.Fprintf(out, "phase wrap  %v\n", res.PhaseWrap())
	fmt.Fprintf(out, "elapsed     %s\n", elapsed.Round(time.Millisecond))

	if rec != nil {
		rec.ObservePartitions(res.Partitions)
		if err := metrics.WriteTextfile(opts.metricsFile, reg); err != nil {
			return err
		}
		log.Info("metrics written", "path", opts.metricsFile)
	}
	return nil
}

// totalObjective evaluates the objective of the initial guess over all
// partitions.
func totalObjective(ctx context.Context, op ptycho.DiffractionOperator, cfg ptycho.Config, prob ptycho.Problem) (float64, error) {
	geom := op.Geometry()
	wave := ptycho.NewField(geom.Batch*geom.NumScan, geom.DetectorRows, geom.DetectorCols)
	total := 0.0
	for lo := 0; lo < cfg.NumAngles; lo += geom.Batch {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		hi := lo + geom.Batch
		if err := op.Forward(wave, prob.Object.Slice(lo, hi), prob.Scan.Slice(lo, hi), prob.Probe.Slice(lo, hi)); err != nil {
			return 0, err
		}
		total += cfg.NoiseModel.Objective(wave.Data, prob.Data.Slice(lo, hi).Data)
	}
	return total, nil
}
