// Package harness checks that a compiled model computes the same thing as
// the model interpreted directly.
//
// Both paths see bit-identical inputs and a generator seeded with the same
// seed:
//
//	h := harness.New(compiler.New(cache), harness.DefaultConfig())
//	h.CheckModel(t, model, []any{x, y}, nil)
package harness

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/runtime"
	"github.com/born-ml/golden/internal/tensor"
)

// Config controls seeding and comparison tolerances.
type Config struct {
	Seed int64
	Atol float64
	Rtol float64
}

// DefaultConfig returns seed 0 with the default tolerances.
func DefaultConfig() Config {
	return Config{Atol: DefaultAtol, Rtol: DefaultRtol}
}

// Harness runs models through the reference and compiled paths.
type Harness struct {
	compiler *compiler.Compiler
	cfg      Config
}

// New creates a Harness that compiles with c.
func New(c *compiler.Compiler, cfg Config) *Harness {
	return &Harness{compiler: c, cfg: cfg}
}

// Config returns the harness configuration.
func (h *Harness) Config() Config {
	return h.cfg
}

// Compiler returns the compiler the harness uses.
func (h *Harness) Compiler() *compiler.Compiler {
	return h.compiler
}

// Compile compiles model for the given example inputs and returns the
// artifact path.
func (h *Harness) Compile(model graph.Model, inputs []any, options map[string]any, constraints ...compiler.Constraint) (string, error) {
	opts, err := compiler.NewOptions(options)
	if err != nil {
		return "", err
	}
	return h.compiler.Compile(model, inputs, opts, constraints...)
}

// Load loads the artifact at path onto device and checks inputs against it.
func (h *Harness) Load(device tensor.Device, path string, inputs []any) (*runtime.Runner, error) {
	return runtime.Load(device, path, inputs...)
}

// Reference interprets model on deep copies of inputs under a freshly
// seeded generator.
func (h *Harness) Reference(model graph.Model, inputs []any) (any, error) {
	device, err := inputDevice(inputs)
	if err != nil {
		return nil, err
	}
	copies, err := deepCopy(inputs)
	if err != nil {
		return nil, err
	}
	return graph.Eval(model, device, tensor.NewGenerator(h.cfg.Seed), copies...)
}

// Run compiles model, loads the artifact on the inputs' device and calls
// it once with a seeded generator.
func (h *Harness) Run(model graph.Model, inputs []any, options map[string]any, constraints ...compiler.Constraint) (any, error) {
	outs, err := h.RunMultiple(model, [][]any{inputs}, options, constraints...)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// RunMultiple compiles model once against the first input set and calls the
// same loaded artifact for every set. The generator is reseeded before
// each call.
func (h *Harness) RunMultiple(model graph.Model, inputSets [][]any, options map[string]any, constraints ...compiler.Constraint) ([]any, error) {
	if len(inputSets) == 0 {
		return nil, errors.New("no input sets")
	}
	device, err := inputDevice(inputSets[0])
	if err != nil {
		return nil, err
	}
	path, err := h.Compile(model, inputSets[0], options, constraints...)
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}
	runner, err := h.Load(device, path, inputSets[0])
	if err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("dir", runner.Dir()).Msg("failed to close runner")
		}
	}()

	outs := make([]any, len(inputSets))
	for i, inputs := range inputSets {
		outs[i], err = h.call(runner, inputs)
		if err != nil {
			return nil, fmt.Errorf("input set %d: %w", i, err)
		}
	}
	return outs, nil
}

func (h *Harness) call(runner *runtime.Runner, inputs []any) (any, error) {
	copies, err := deepCopy(inputs)
	if err != nil {
		return nil, err
	}
	runner.Reseed(h.cfg.Seed)
	return runner.Call(copies...)
}

// inputDevice returns the device of the first tensor leaf, or the default
// device when there are none.
func inputDevice(inputs []any) (tensor.Device, error) {
	for i, leaf := range pytree.Leaves(pytree.Tuple(inputs)) {
		raw, ok := leaf.(*tensor.RawTensor)
		if !ok {
			return tensor.Device{}, fmt.Errorf("input leaf %d is %T, not a tensor", i, leaf)
		}
		return raw.Device(), nil
	}
	return tensor.DefaultDevice, nil
}

func deepCopy(inputs []any) ([]any, error) {
	out, err := pytree.MapLeaves(pytree.Tuple(inputs), func(leaf any) (any, error) {
		raw, ok := leaf.(*tensor.RawTensor)
		if !ok {
			return nil, fmt.Errorf("input leaf is %T, not a tensor", leaf)
		}
		return raw.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return out.(pytree.Tuple), nil
}

// moveTo copies every tensor leaf of inputs onto device.
func moveTo(inputs []any, device tensor.Device) ([]any, error) {
	out, err := pytree.MapLeaves(pytree.Tuple(inputs), func(leaf any) (any, error) {
		raw, ok := leaf.(*tensor.RawTensor)
		if !ok {
			return nil, fmt.Errorf("input leaf is %T, not a tensor", leaf)
		}
		return raw.To(device), nil
	})
	if err != nil {
		return nil, err
	}
	return out.(pytree.Tuple), nil
}
