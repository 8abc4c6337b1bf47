// Package cli implements the golden command line tool.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/golden/internal/config"
	"github.com/born-ml/golden/internal/tensor"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Device     string

	cfg *config.Config
}

// Config returns the configuration loaded before the command ran.
func (o *RootOptions) Config() *config.Config {
	return o.cfg
}

func (o *RootOptions) device() (tensor.Device, error) {
	return tensor.ParseDevice(o.Device)
}

// NewRootCommand creates the root command of the golden CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "golden",
		Short: "golden - compile-and-verify harness for Go models",
		Long: `Compile models ahead of time into .gaot artifacts, load them back and
check that the compiled program computes the same outputs as the model
interpreted directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.Log.Level = opts.LogLevel
			}
			if err := cfg.Apply(); err != nil {
				return fmt.Errorf("failed to apply config: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Device, "device", tensor.DefaultDevice.String(), "device to run on, e.g. cpu:1")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewBenchCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewFixturesCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}
