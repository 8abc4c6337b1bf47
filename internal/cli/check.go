package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/fixtures"
	"github.com/born-ml/golden/internal/harness"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	OptionFlags
	All       bool
	Replicate bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [fixture...]",
		Short: "Check compiled fixtures against the reference interpreter",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.All {
				args = fixtures.Names()
			}
			if len(args) == 0 {
				return errors.New("name at least one fixture or pass --all")
			}
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "check every fixture")
	cmd.Flags().BoolVar(&opts.Replicate, "replicate", false, "also run the artifact on every device ordinal")
	opts.OptionFlags.register(cmd)

	return cmd
}

func runCheck(opts *CheckOptions, names []string, cmd *cobra.Command) error {
	cfg := opts.Config()
	cache, err := cfg.OpenCache()
	if err != nil {
		return err
	}
	defer cache.Close()
	h := harness.New(compiler.New(cache), cfg.HarnessSettings())

	failed := 0
	w := cmd.OutOrStdout()
	for _, name := range names {
		err := checkOne(h, opts, name)
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(w, "PASS %s\n", name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fixtures failed", failed, len(names))
	}
	return nil
}

func checkOne(h *harness.Harness, opts *CheckOptions, name string) error {
	device, err := opts.device()
	if err != nil {
		return err
	}
	s, err := fixtures.Build(name, device, h.Config().Seed)
	if err != nil {
		return err
	}
	if s.Options, err = opts.collect(s.Options); err != nil {
		return err
	}
	if err := h.VerifyScenario(s); err != nil {
		return err
	}
	if opts.Replicate {
		return h.ReplicateOnDevices(s.Model, s.Inputs, s.Options, s.Constraints...)
	}
	return nil
}
