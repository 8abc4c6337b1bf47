package harness

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/golden/internal/compiler"
	"github.com/born-ml/golden/internal/fixtures"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/metrics"
	"github.com/born-ml/golden/internal/runtime"
	"github.com/born-ml/golden/internal/tensor"
)

// Verify compiles model, runs both paths on inputs and compares the outputs.
func (h *Harness) Verify(model graph.Model, inputs []any, options map[string]any, constraints ...compiler.Constraint) error {
	return h.VerifyMultiple(model, [][]any{inputs}, options, constraints...)
}

// VerifyMultiple compiles model once and checks every input set against
// the same artifact.
func (h *Harness) VerifyMultiple(model graph.Model, inputSets [][]any, options map[string]any, constraints ...compiler.Constraint) (err error) {
	start := time.Now()
	defer func() { h.record(start, err) }()

	actual, err := h.RunMultiple(model, inputSets, options, constraints...)
	if err != nil {
		return err
	}
	for i, inputs := range inputSets {
		expected, err := h.Reference(model, inputs)
		if err != nil {
			return fmt.Errorf("reference run for input set %d: %w", i, err)
		}
		if err := Same(expected, actual[i], h.cfg.Atol, h.cfg.Rtol); err != nil {
			return fmt.Errorf("input set %d: %w", i, err)
		}
	}
	return nil
}

// CheckModel fails t unless the compiled model matches the reference on
// inputs.
func (h *Harness) CheckModel(t testing.TB, model graph.Model, inputs []any, options map[string]any, constraints ...compiler.Constraint) {
	t.Helper()
	require.NoError(t, h.Verify(model, inputs, options, constraints...))
}

// CheckModelWithMultipleInputs fails t unless one compiled artifact matches
// the reference on every input set.
func (h *Harness) CheckModelWithMultipleInputs(t testing.TB, model graph.Model, inputSets [][]any, options map[string]any, constraints ...compiler.Constraint) {
	t.Helper()
	require.NoError(t, h.VerifyMultiple(model, inputSets, options, constraints...))
}

// VerifyScenario checks every input set of a fixture scenario.
func (h *Harness) VerifyScenario(s *fixtures.Scenario) error {
	if err := h.VerifyMultiple(s.Model, s.InputSets(), s.Options, s.Constraints...); err != nil {
		return fmt.Errorf("fixture %s: %w", s.Name, err)
	}
	return nil
}

// ReplicateOnDevices compiles model once on the device its inputs and
// parameters live on and checks that the artifact, loaded on every ordinal
// of that device kind, matches one reference run.
func (h *Harness) ReplicateOnDevices(model graph.Model, inputs []any, options map[string]any, constraints ...compiler.Constraint) error {
	device, err := inputDevice(inputs)
	if err != nil {
		return err
	}
	expected, err := h.Reference(model, inputs)
	if err != nil {
		return fmt.Errorf("reference run: %w", err)
	}
	path, err := h.Compile(model, inputs, options, constraints...)
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	for _, target := range runtime.Devices(device.Kind) {
		if err := h.runOn(target, path, inputs, expected); err != nil {
			return fmt.Errorf("device %s: %w", target, err)
		}
		log.Debug().Str("device", target.String()).Str("artifact", path).Msg("replica matches reference")
	}
	return nil
}

func (h *Harness) runOn(device tensor.Device, path string, inputs []any, expected any) error {
	moved, err := moveTo(inputs, device)
	if err != nil {
		return err
	}
	runner, err := h.Load(device, path, moved)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("dir", runner.Dir()).Msg("failed to close runner")
		}
	}()

	actual, err := h.call(runner, moved)
	if err != nil {
		return err
	}
	return Same(expected, actual, h.cfg.Atol, h.cfg.Rtol)
}

func (h *Harness) record(start time.Time, err error) {
	result := "pass"
	if err != nil {
		result = "fail"
	}
	metrics.Count(metrics.CheckResult, 1, []string{metrics.Tag("result", result)})
	metrics.Since(metrics.CheckLatency, start, metrics.Tag("result", result))
	log.Debug().Str("result", result).Dur("took", time.Since(start)).Msg("equivalence check finished")
}
