package cli

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/golden/internal/compiler"
)

// OptionFlags are the compile option flags shared by compile and check.
type OptionFlags struct {
	File   string
	Values []string
}

func (f *OptionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.File, "options-file", "", "yaml document of compile options")
	cmd.Flags().StringArrayVar(&f.Values, "option", nil, "compile option as key=value (repeatable)")
}

// collect layers the options file and then the key=value flags over base.
// The result is validated but returned as a plain map so callers can layer
// it further.
func (f *OptionFlags) collect(base map[string]any) (map[string]any, error) {
	out := maps.Clone(base)
	if out == nil {
		out = map[string]any{}
	}
	if f.File != "" {
		doc, err := readOptionsFile(f.File)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, doc)
	}
	for _, kv := range f.Values {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("option %q is not of the form key=value", kv)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if _, err := compiler.NewOptions(out); err != nil {
		return nil, err
	}
	return out, nil
}

func readOptionsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
	}
	return doc, nil
}
