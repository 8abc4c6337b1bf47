// Package bench runs compiled artifacts for timing, both in process and as
// a child process of an interpreter binary.
package bench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/runtime"
	"github.com/born-ml/golden/internal/tensor"
)

// ProcessError reports a benchmark subprocess that exited unsuccessfully.
type ProcessError struct {
	ExitCode int
	Output   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("benchmark process exited with code %d: %s", e.ExitCode, e.Output)
}

// ErrInvalidOutput is returned when the subprocess output is not UTF-8.
var ErrInvalidOutput = errors.New("benchmark output is not valid UTF-8")

// Runner launches "<Interpreter> [Args...] bench <path>".
type Runner struct {
	Interpreter string
	// Args are inserted before the bench subcommand.
	Args []string
	// Env, when set, replaces the child's environment.
	Env []string
}

// Run executes the benchmark for the artifact at path and returns its
// combined stdout and stderr.
func (r *Runner) Run(ctx context.Context, path string) (string, error) {
	args := append(append([]string{}, r.Args...), "bench", path)
	cmd := exec.CommandContext(ctx, r.Interpreter, args...) //nolint:gosec // interpreter and path are caller supplied
	if r.Env != nil {
		cmd.Env = r.Env
	}

	start := time.Now()
	out, err := cmd.CombinedOutput()
	log.Debug().
		Str("interpreter", r.Interpreter).
		Str("artifact", path).
		Dur("took", time.Since(start)).
		Msg("benchmark process finished")

	if err != nil {
		output := strings.ToValidUTF8(string(out), "\uFFFD")
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, &ProcessError{ExitCode: exitErr.ExitCode(), Output: output}
		}
		return output, fmt.Errorf("failed to run benchmark process: %w", err)
	}
	if !utf8.Valid(out) {
		return "", ErrInvalidOutput
	}
	return string(out), nil
}

// Report summarises the timings of one benchmark.
type Report struct {
	Iterations int
	Mean       time.Duration
	Min        time.Duration
	Median     time.Duration
	Max        time.Duration
}

// Write prints the report in a stable one-line-per-field layout.
func (r *Report) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "iterations: %d\nmean: %s\nmin: %s\nmedian: %s\nmax: %s\n",
		r.Iterations, r.Mean, r.Min, r.Median, r.Max)
	return err
}

// Benchmark loads the artifact at path on device, fabricates inputs from
// its input specs with a generator seeded by seed and times iters calls.
// The generator is reseeded before each call so stochastic nodes repeat.
func Benchmark(device tensor.Device, path string, iters int, seed int64) (*Report, error) {
	if iters <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iters)
	}
	runner, err := runtime.Load(device, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = runner.Close() }()

	inputs := FabricateInputs(runner.Header().Inputs, device, seed)

	times := make([]time.Duration, iters)
	for i := range times {
		runner.Reseed(seed)
		start := time.Now()
		if _, err := runner.Run(inputs); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		times[i] = time.Since(start)
	}
	return summarise(times), nil
}

// FabricateInputs draws one standard-normal tensor per input spec, using
// the compile-time example size for dynamic dimensions.
func FabricateInputs(specs []artifact.InputSpec, device tensor.Device, seed int64) []*tensor.RawTensor {
	gen := tensor.NewGenerator(seed)
	inputs := make([]*tensor.RawTensor, len(specs))
	for i, spec := range specs {
		shape := make(tensor.Shape, len(spec.Dims))
		for j, d := range spec.Dims {
			shape[j] = d.Size
		}
		if !spec.DType.IsFloat() {
			inputs[i] = tensor.Zeros(shape, spec.DType, device)
			continue
		}
		inputs[i] = tensor.Randn(shape, spec.DType, device, gen)
	}
	return inputs
}

func summarise(times []time.Duration) *Report {
	sorted := append([]time.Duration(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, t := range sorted {
		total += t
	}
	return &Report{
		Iterations: len(sorted),
		Mean:       total / time.Duration(len(sorted)),
		Min:        sorted[0],
		Median:     sorted[len(sorted)/2],
		Max:        sorted[len(sorted)-1],
	}
}

// String returns the report as Write prints it.
func (r *Report) String() string {
	var b bytes.Buffer
	_ = r.Write(&b)
	return b.String()
}
