package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	ptycho "github.com/cwbudde/algo-ptycho"
	"github.com/cwbudde/algo-ptycho/operator"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logFormat  string
	logLevel   string
	backend    string
	workers    int

	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "ptychocg",
		Short:         "Conjugate-gradient ptychographic reconstruction",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(cmd.ErrOrStderr(), opts.logFormat, opts.logLevel)
			if err != nil {
				return err
			}
			opts.log = log.With("run_id", uuid.NewString(), "command", cmd.Name())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML configuration file (defaults apply when empty)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.StringVar(&opts.backend, "backend", operator.DefaultBackend, "operator backend")
	pf.IntVar(&opts.workers, "workers", 0, "operator worker goroutines (0 = GOMAXPROCS)")

	root.AddCommand(
		newReconstructCmd(opts),
		newDotTestCmd(opts),
		newBackendsCmd(),
		newBenchCmd(opts),
	)
	return root
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	hopts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}

// loadConfig reads --config, or the defaults when it is empty.
func (o *globalOptions) loadConfig() (ptycho.Config, error) {
	if o.configPath == "" {
		cfg := ptycho.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return ptycho.LoadConfig(o.configPath)
}

func (o *globalOptions) newOperator(cfg ptycho.Config) (operator.Operator, error) {
	op, err := operator.New(o.backend, cfg.Geometry(), operator.Options{Workers: o.workers})
	if err != nil {
		return nil, err
	}
	info := op.Info()
	o.log.Debug("operator ready", "backend", info.Name, "features", info.Features, "workers", o.workers)
	return op, nil
}
