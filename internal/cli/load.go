package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/runtime"
)

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <artifact>",
		Short: "Load an artifact onto a device and print its call spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := rootOpts.device()
			if err != nil {
				return err
			}
			runner, err := runtime.Load(device, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = runner.Close() }()

			in, out := runner.CallSpec()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "device: %s\n", runner.Device())
			fmt.Fprintf(w, "in spec: %s\n", formatSpec(in))
			fmt.Fprintf(w, "out spec: %s\n", formatSpec(out))
			for _, spec := range runner.Header().Inputs {
				fmt.Fprintf(w, "input %s: %s%s\n", spec.Name, spec.DType, formatDims(spec.Dims))
			}
			return nil
		},
	}
}

// formatDims renders dims like [s0<=2048 10].
func formatDims(dims []artifact.DimSpec) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		switch {
		case !d.Dynamic():
			parts[i] = fmt.Sprint(d.Size)
		case d.Max > 0:
			parts[i] = fmt.Sprintf("%s:%d..%d", d.Symbol, d.Min, d.Max)
		default:
			parts[i] = fmt.Sprintf("%s:%d..", d.Symbol, d.Min)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
