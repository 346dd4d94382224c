package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	ptycho "github.com/cwbudde/algo-ptycho"
	"github.com/cwbudde/algo-ptycho/phantom"
)

func newDotTestCmd(g *globalOptions) *cobra.Command {
	var (
		seed      int64
		tolerance float64
	)

	cmd := &cobra.Command{
		Use:   "dottest",
		Short: "Check the adjoint identities of the operator backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			op, err := g.newOperator(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = op.Close() }()

			geom := cfg.Geometry()
			ph := phantom.New(cfg, phantom.Options{})
			psi := ph.Object.Slice(0, geom.Batch).Clone()
			prb := ph.Probe.Slice(0, geom.Batch).Clone()
			// Random amplitudes keep the check away from the smooth phantom.
			rng := rand.New(rand.NewSource(seed))
			for i := range psi.Data {
				psi.Data[i] *= complex(rng.Float64()+0.5, 0)
			}

			object, probe, err := ptycho.DotTest(op, psi, ph.Scan.Slice(0, geom.Batch), prb)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend %s\n", op.Info().Name)
			fmt.Fprintf(out, "%-8s  %-48s  %-48s  %s\n", "field", "<Fx,Fx>", "<x,F*Fx>", "rel.err")
			fmt.Fprintf(out, "%-8s  %-48v  %-48v  %.3g\n", "object", object.Forward, object.Adjoint, object.RelativeError())
			fmt.Fprintf(out, "%-8s  %-48v  %-48v  %.3g\n", "probe", probe.Forward, probe.Adjoint, probe.RelativeError())

			if e := max(object.RelativeError(), probe.RelativeError()); e > tolerance {
				return fmt.Errorf("adjoint mismatch %.3g exceeds tolerance %.3g", e, tolerance)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "rng seed for the object perturbation")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 1e-8, "largest accepted relative error")
	return cmd
}
