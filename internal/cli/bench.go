package cli

import (
	"github.com/spf13/cobra"

	"github.com/born-ml/golden/internal/bench"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Iters int
	Seed  int64
}

// NewBenchCommand creates the bench command. It is also the entry point the
// benchmark subprocess runner invokes.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench <artifact>",
		Short: "Time repeated calls of an artifact on seeded inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := opts.device()
			if err != nil {
				return err
			}
			seed := opts.Config().Harness.Seed
			if cmd.Flags().Changed("seed") {
				seed = opts.Seed
			}
			report, err := bench.Benchmark(device, args[0], opts.Iters, seed)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.Iters, "iters", 10, "number of timed calls")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "seed for fabricated inputs (default: harness.seed)")

	return cmd
}
