package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	ptycho "github.com/cwbudde/algo-ptycho"
	"github.com/cwbudde/algo-ptycho/operator"
)

const (
	modeForward = "forward"
	modeAdjoint = "adjoint"
	modeProbe   = "probe"
)

type benchResult struct {
	size    int
	backend string
	mode    string
	nsPerOp float64
}

type benchOptions struct {
	sizes     string
	iters     int
	warmup    int
	positions int
	mode      string
	seed      int64
}

func newBenchCmd(g *globalOptions) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time the operator of every available backend",
		Long: `Times Forward, AdjointObject and AdjointProbe for detector sizes given by
--sizes. The probe fills the detector and the object is twice its size. Results
per size and mode are sorted fastest first. --backend limits the run to one
backend when set explicitly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sizes := parseSizes(opts.sizes)
			if len(sizes) == 0 {
				return fmt.Errorf("no sizes in %q", opts.sizes)
			}

			var names []string
			if cmd.Flags().Changed("backend") {
				names = []string{g.backend}
			} else {
				for _, info := range operator.Backends() {
					if b, ok := operator.Lookup(info.Name); ok && b.Available() {
						names = append(names, info.Name)
					}
				}
			}

			rnd := rand.New(rand.NewSource(opts.seed))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "iters=%d warmup=%d positions=%d\n", opts.iters, opts.warmup, opts.positions)
			fmt.Fprintf(out, "%8s  %10s  %12s  %14s\n", "size", "mode", "backend", "ns/op")

			for _, n := range sizes {
				for _, mode := range resolveModes(opts.mode) {
					results := make([]benchResult, 0, len(names))
					for _, name := range names {
						if err := cmd.Context().Err(); err != nil {
							return err
						}
						res, err := benchmarkSize(rnd, name, g.workers, n, opts.positions, opts.iters, opts.warmup, mode)
						if err != nil {
							g.log.Warn("benchmark skipped", "backend", name, "size", n, "mode", mode, "err", err)
							continue
						}
						results = append(results, res)
					}

					sort.Slice(results, func(i, j int) bool {
						return results[i].nsPerOp < results[j].nsPerOp
					})
					for _, res := range results {
						fmt.Fprintf(out, "%8d  %10s  %12s  %14.1f\n", res.size, res.mode, res.backend, res.nsPerOp)
					}
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sizes, "sizes", "32,64,128", "comma-separated detector sizes")
	f.IntVar(&opts.iters, "iters", 20, "benchmark iterations")
	f.IntVar(&opts.warmup, "warmup", 2, "warmup iterations")
	f.IntVar(&opts.positions, "positions", 32, "scan positions per call")
	f.StringVar(&opts.mode, "mode", modeForward, "benchmark mode: forward, adjoint, probe, all")
	f.Int64Var(&opts.seed, "seed", 1, "rng seed")
	return cmd
}

func benchmarkSize(rnd *rand.Rand, backend string, workers, n, positions, iters, warmup int, mode string) (benchResult, error) {
	geom := ptycho.Geometry{
		ObjectRows:   2 * n,
		ObjectCols:   2 * n,
		ProbeSize:    n,
		DetectorRows: n,
		DetectorCols: n,
		NumScan:      positions,
		Batch:        1,
	}
	op, err := operator.New(backend, geom, operator.Options{Workers: workers})
	if err != nil {
		return benchResult{}, err
	}
	defer func() { _ = op.Close() }()

	psi := randomField(rnd, 1, geom.ObjectRows, geom.ObjectCols)
	prb := randomField(rnd, 1, n, n)
	wave := randomField(rnd, positions, n, n)
	scan := ptycho.NewScan(1, positions)
	for j := 0; j < positions; j++ {
		scan.Set(0, j, rnd.Float64()*float64(n), rnd.Float64()*float64(n))
	}
	adjO := ptycho.NewField(1, geom.ObjectRows, geom.ObjectCols)
	adjP := ptycho.NewField(1, n, n)

	call := func() error {
		switch mode {
		case modeAdjoint:
			return op.AdjointObject(adjO, wave, scan, prb)
		case modeProbe:
			return op.AdjointProbe(adjP, wave, scan, psi)
		default:
			return op.Forward(wave, psi, scan, prb)
		}
	}

	for range warmup {
		if err := call(); err != nil {
			return benchResult{}, err
		}
	}

	runtime.GC()

	start := time.Now()
	for range iters {
		if err := call(); err != nil {
			return benchResult{}, err
		}
	}
	elapsed := time.Since(start)

	return benchResult{
		size:    n,
		backend: backend,
		mode:    mode,
		nsPerOp: float64(elapsed.Nanoseconds()) / float64(max(iters, 1)),
	}, nil
}

func randomField(rnd *rand.Rand, depth, rows, cols int) ptycho.Field {
	f := ptycho.NewField(depth, rows, cols)
	for i := range f.Data {
		f.Data[i] = complex(rnd.Float64(), rnd.Float64())
	}
	return f
}

func resolveModes(mode string) []string {
	switch mode {
	case "all":
		return []string{modeForward, modeAdjoint, modeProbe}
	case modeForward, modeAdjoint, modeProbe:
		return []string{mode}
	default:
		return []string{modeForward}
	}
}

func parseSizes(list string) []int {
	parts := strings.Split(list, ",")

	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var n int

		_, err := fmt.Sscanf(part, "%d", &n)
		if err != nil || n <= 0 {
			continue
		}

		out = append(out, n)
	}

	return out
}
