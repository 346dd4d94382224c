package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-ptycho/internal/cpufeat"
	"github.com/cwbudde/algo-ptycho/operator"
)

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List operator backends and host CPU features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "host: %s\n\n", cpufeat.Detect())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tAVAILABLE\tVERSION\tDESCRIPTION")
			for _, info := range operator.Backends() {
				b, _ := operator.Lookup(info.Name)
				fmt.Fprintf(tw, "%s\t%v\t%s\t%s\n", info.Name, b.Available(), info.Version, info.Description)
			}
			return tw.Flush()
		},
	}
}
