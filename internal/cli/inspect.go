package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/pytree"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(_ *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Print an artifact's header and program listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := artifact.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(f.Header())
			}
			return writeSummary(cmd.OutOrStdout(), f.Header())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON header")

	return cmd
}

func writeSummary(w io.Writer, h *artifact.Header) error {
	fmt.Fprintf(w, "artifact: %s (format %d, golden %s)\n", h.ArtifactID, h.FormatVersion, h.GoldenVersion)
	fmt.Fprintf(w, "created: %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "device: %s\n", h.Device)
	fmt.Fprintf(w, "fingerprint: %s\n", h.Fingerprint)
	fmt.Fprintf(w, "call spec: %s -> %s\n", formatSpec(h.CallSpec.In), formatSpec(h.CallSpec.Out))
	for _, in := range h.Inputs {
		fmt.Fprintf(w, "input %s: %s%s\n", in.Name, in.DType, formatDims(in.Dims))
	}

	var total int64
	for _, c := range h.Constants {
		total += c.Size
	}
	fmt.Fprintf(w, "constants: %d (%d bytes)\n", len(h.Constants), total)
	for _, k := range h.Kernels {
		fmt.Fprintf(w, "kernel #k%d: %s x%d %s\n", k.ID, k.Op, k.Uses, k.Signature)
	}

	keys := make([]string, 0, len(h.Options))
	for k := range h.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "option %s = %v\n", k, h.Options[k])
	}

	fmt.Fprintln(w)
	_, err := io.WriteString(w, h.Program.String())
	return err
}

// formatSpec renders a serialised tree spec in its short form, or as stored
// when it does not decode.
func formatSpec(raw string) string {
	spec, err := pytree.Loads(raw)
	if err != nil {
		return raw
	}
	return spec.String()
}
