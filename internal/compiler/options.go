package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"

	"github.com/born-ml/golden/internal/backend/cpu"
)

// Delimiter separates the segments of nested option keys.
const Delimiter = "."

// Recognised option keys. Unknown keys are carried through opaquely.
const (
	OptOutputPath        = "aot.output_path"
	OptABICompatible     = "aot.abi_compatible"
	OptCompressConstants = "aot.compress_constants"
	OptMaxAutotune       = "max_autotune"
	OptGemmBackends      = "max_autotune_gemm_backends"
	OptConstantFolding   = "constant_folding"
	OptCheckInfNaN       = "debug_check_inf_and_nan"
	OptFreezing          = "freezing"
)

var boolOptions = []string{
	OptABICompatible, OptCompressConstants, OptMaxAutotune,
	OptConstantFolding, OptCheckInfNaN, OptFreezing,
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		OptOutputPath:        "",
		OptABICompatible:     true,
		OptCompressConstants: false,
		OptMaxAutotune:       false,
		OptGemmBackends:      "naive,blocked,parallel",
		OptConstantFolding:   true,
		OptCheckInfNaN:       false,
		OptFreezing:          false,
	}
}

// Options is the per-compile configuration: a dotted-key map with defaults.
type Options struct {
	k *koanf.Koanf
}

// DefaultOptions returns options holding only the defaults.
func DefaultOptions() *Options {
	k := koanf.New(Delimiter)
	// confmap never fails on a static map.
	_ = k.Load(confmap.Provider(defaults(), Delimiter), nil)
	return &Options{k: k}
}

// NewOptions layers values over the defaults and validates the result.
func NewOptions(values map[string]any) (*Options, error) {
	o := DefaultOptions()
	if err := o.Merge(values); err != nil {
		return nil, err
	}
	return o, nil
}

// Merge layers values over the current options. Keys may be dotted or
// nested maps. On error the options are left unchanged.
func (o *Options) Merge(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	next := &Options{k: o.k.Copy()}
	if err := next.k.Load(confmap.Provider(values, Delimiter), nil); err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	o.k = next.k
	return nil
}

// Set assigns one option.
func (o *Options) Set(key string, value any) error {
	return o.Merge(map[string]any{key: value})
}

// SetString parses a "key=value" assignment as given on a command line.
func (o *Options) SetString(kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("option %q is not of the form key=value", kv)
	}
	return o.Set(strings.TrimSpace(key), strings.TrimSpace(value))
}

// Clone returns an independent copy.
func (o *Options) Clone() *Options {
	return &Options{k: o.k.Copy()}
}

// Validate checks that recognised keys hold values of the right kind.
func (o *Options) Validate() error {
	for _, key := range boolOptions {
		if _, err := o.boolean(key); err != nil {
			return err
		}
	}
	if _, err := o.GemmBackends(); err != nil {
		return err
	}
	return nil
}

func (o *Options) boolean(key string) (bool, error) {
	switch v := o.k.Get(key).(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("option %s: %q is not a boolean", key, v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("option %s: %v (%T) is not a boolean", key, v, v)
	}
}

func (o *Options) flag(key string) bool {
	b, _ := o.boolean(key)
	return b
}

// OutputPath is the artifact destination override, or "".
func (o *Options) OutputPath() string { return o.k.String(OptOutputPath) }

// ABICompatible restricts inputs to dtypes with a stable ABI.
func (o *Options) ABICompatible() bool { return o.flag(OptABICompatible) }

// CompressConstants stores the constant section zstd compressed.
func (o *Options) CompressConstants() bool { return o.flag(OptCompressConstants) }

// MaxAutotune enables matmul kernel selection by timing.
func (o *Options) MaxAutotune() bool { return o.flag(OptMaxAutotune) }

// ConstantFolding enables the constant folding pass.
func (o *Options) ConstantFolding() bool { return o.flag(OptConstantFolding) }

// CheckInfNaN makes the runtime fail on non-finite node outputs.
func (o *Options) CheckInfNaN() bool { return o.flag(OptCheckInfNaN) }

// Freezing lets constant folding treat parameters as constants.
func (o *Options) Freezing() bool { return o.flag(OptFreezing) }

// GemmBackends returns the autotuning candidates, in the order given.
func (o *Options) GemmBackends() ([]cpu.MatMulKernel, error) {
	var names []string
	switch v := o.k.Get(OptGemmBackends).(type) {
	case nil:
		return cpu.MatMulKernels, nil
	case string:
		names = strings.Split(v, ",")
	default:
		names = o.k.Strings(OptGemmBackends)
	}
	var kernels []cpu.MatMulKernel
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		k, err := cpu.ParseMatMulKernel(name)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", OptGemmBackends, err)
		}
		kernels = append(kernels, k)
	}
	if len(kernels) == 0 {
		return nil, fmt.Errorf("option %s: no kernels listed", OptGemmBackends)
	}
	return kernels, nil
}

// Resolved returns every option as a flat dotted-key map, with recognised
// keys normalised to their typed values. Unknown keys keep their raw value.
func (o *Options) Resolved() map[string]any {
	all := o.k.All()
	for _, key := range boolOptions {
		all[key] = o.flag(key)
	}
	all[OptOutputPath] = o.OutputPath()
	if kernels, err := o.GemmBackends(); err == nil {
		names := make([]string, len(kernels))
		for i, k := range kernels {
			names[i] = string(k)
		}
		all[OptGemmBackends] = strings.Join(names, ",")
	}
	return all
}

// Keys returns the sorted option keys.
func (o *Options) Keys() []string {
	keys := o.k.Keys()
	sort.Strings(keys)
	return keys
}
