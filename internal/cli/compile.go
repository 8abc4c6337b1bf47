package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/fixtures"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	OptionFlags
	Output string
	Seed   int64
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <fixture>",
		Short: "Compile a fixture model to a .gaot artifact",
		Long: `Compile a named fixture model with its seeded example inputs.

The artifact is written to the compile cache, or copied to --output when
given. A second compile with identical inputs and options is a cache hit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "copy the artifact to this path")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "seed for parameters and inputs (default: harness.seed)")
	opts.OptionFlags.register(cmd)

	return cmd
}

func runCompile(opts *CompileOptions, name string, cmd *cobra.Command) error {
	device, err := opts.device()
	if err != nil {
		return err
	}
	seed := opts.Config().Harness.Seed
	if cmd.Flags().Changed("seed") {
		seed = opts.Seed
	}
	s, err := fixtures.Build(name, device, seed)
	if err != nil {
		return err
	}

	values, err := opts.collect(s.Options)
	if err != nil {
		return err
	}
	if opts.Output != "" {
		values[compiler.OptOutputPath] = opts.Output
	}
	compileOpts, err := compiler.NewOptions(values)
	if err != nil {
		return err
	}

	cache, err := opts.Config().OpenCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	res, err := compiler.New(cache).CompileResult(s.Model, s.Inputs, compileOpts, s.Constraints...)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "artifact: %s\n", res.Path)
	fmt.Fprintf(out, "fingerprint: %s\n", res.Fingerprint)
	fmt.Fprintf(out, "cache hit: %t\n", res.CacheHit)
	fmt.Fprintf(out, "nodes: %d, kernels: %d\n", len(res.Program.Nodes), len(res.Kernels))
	return nil
}
