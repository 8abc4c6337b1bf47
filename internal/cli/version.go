package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/fixtures"
	"github.com/born-ml/golden/internal/runtime"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "golden %s\n", compiler.Version)
			fmt.Fprintf(w, "artifact format: %d\n", artifact.FormatVersion)
			fmt.Fprintf(w, "ops: %s\n", strings.Join(runtime.NewRegistry().SupportedOps(), " "))
			return nil
		},
	}
}

// NewFixturesCommand creates the fixtures command.
func NewFixturesCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fixtures",
		Short: "List the fixture models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range fixtures.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
