package runtime

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/metrics"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

// OptionCheckInfNaN is the compile option that enables the per-node
// inf/NaN check.
const OptionCheckInfNaN = "debug_check_inf_and_nan"

// Runner is a loaded artifact bound to one device.
type Runner struct {
	device  tensor.Device
	dir     string
	file    *artifact.File
	header  *artifact.Header
	inSpec  *pytree.Spec
	outSpec *pytree.Spec
	consts  map[int]*tensor.RawTensor

	registry       *Registry
	ctx            *Context
	checkNonFinite bool

	mu     sync.Mutex
	closed bool
}

// Load copies the artifact at path into a fresh temporary directory, opens
// it and binds it to device. When exampleInputs are given they must match
// the artifact's input specification.
func Load(device tensor.Device, path string, exampleInputs ...any) (*Runner, error) {
	start := time.Now()

	dir := filepath.Join(os.TempDir(), "golden-load-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create load directory: %w", err)
	}
	r, err := load(device, path, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	if len(exampleInputs) > 0 {
		flat, err := r.flatten(exampleInputs)
		if err == nil {
			err = r.validate(flat)
		}
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("example inputs do not match artifact: %w", err)
		}
	}

	metrics.Since(metrics.LoadLatency, start, metrics.Tag("device", device.String()))
	log.Debug().
		Str("artifact", path).
		Str("id", r.header.ArtifactID).
		Str("device", device.String()).
		Int("nodes", len(r.header.Program.Nodes)).
		Msg("artifact loaded")
	return r, nil
}

func load(device tensor.Device, path, dir string) (*Runner, error) {
	local := filepath.Join(dir, filepath.Base(path))
	if err := copyFile(path, local); err != nil {
		return nil, err
	}
	f, err := artifact.Open(local)
	if err != nil {
		return nil, err
	}
	h := f.Header()

	if h.Device.Kind != device.Kind {
		f.Close()
		return nil, &DeviceMismatchError{Where: "artifact", Expected: device, Actual: h.Device}
	}
	if !Available(device) {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, device)
	}

	inSpec, err := pytree.Loads(h.CallSpec.In)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid input spec: %w", err)
	}
	outSpec, err := pytree.Loads(h.CallSpec.Out)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid output spec: %w", err)
	}
	if inSpec.NumLeaves() != len(h.Inputs) {
		f.Close()
		return nil, fmt.Errorf("input spec has %d leaves, artifact lists %d inputs", inSpec.NumLeaves(), len(h.Inputs))
	}
	if outSpec.NumLeaves() != len(h.Program.Outputs) {
		f.Close()
		return nil, fmt.Errorf("output spec has %d leaves, program has %d outputs", outSpec.NumLeaves(), len(h.Program.Outputs))
	}

	consts := make(map[int]*tensor.RawTensor, len(h.Constants))
	for _, c := range h.Constants {
		t, err := f.Constant(c.Node)
		if err != nil {
			f.Close()
			return nil, err
		}
		consts[c.Node] = t.To(device)
	}

	check, _ := h.Options[OptionCheckInfNaN].(bool)
	return &Runner{
		device:         device,
		dir:            dir,
		file:           f,
		header:         h,
		inSpec:         inSpec,
		outSpec:        outSpec,
		consts:         consts,
		registry:       NewRegistry(),
		ctx:            &Context{Backend: cpu.New(device), Generator: tensor.NewGenerator(0)},
		checkNonFinite: check,
	}, nil
}

func copyFile(src, dst string) error {
	//nolint:gosec // G304: artifact path is caller supplied
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer in.Close()

	//nolint:gosec // G304: destination is inside our own temp dir
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create artifact copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	return out.Close()
}

// Device returns the device the runner executes on.
func (r *Runner) Device() tensor.Device {
	return r.device
}

// Header returns the artifact header.
func (r *Runner) Header() *artifact.Header {
	return r.header
}

// Dir returns the per-load temporary directory.
func (r *Runner) Dir() string {
	return r.dir
}

// CallSpec returns the serialised input and output tree specs.
func (r *Runner) CallSpec() (in, out string) {
	return r.header.CallSpec.In, r.header.CallSpec.Out
}

// Reseed resets the generator used by stochastic nodes.
func (r *Runner) Reseed(seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx.Generator = tensor.NewGenerator(seed)
}

// Call runs the program on nested arguments shaped like the compile-time
// example inputs and returns the nested result.
func (r *Runner) Call(args ...any) (any, error) {
	flat, err := r.flatten(args)
	if err != nil {
		return nil, err
	}
	outs, err := r.Run(flat)
	if err != nil {
		return nil, err
	}
	leaves := make([]any, len(outs))
	for i, o := range outs {
		leaves[i] = o
	}
	return pytree.Unflatten(leaves, r.outSpec)
}

func (r *Runner) flatten(args []any) ([]*tensor.RawTensor, error) {
	leaves, err := pytree.FlattenSpec(pytree.Tuple(args), r.inSpec)
	if err != nil {
		return nil, err
	}
	flat := make([]*tensor.RawTensor, len(leaves))
	for i, l := range leaves {
		t, ok := l.(*tensor.RawTensor)
		if !ok {
			return nil, &InputError{Index: i, Name: r.header.Inputs[i].Name, Reason: fmt.Sprintf("expected a tensor, got %T", l)}
		}
		flat[i] = t
	}
	return flat, nil
}

// Run executes the program on flat inputs in input-spec order.
func (r *Runner) Run(flat []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if err := r.validate(flat); err != nil {
		return nil, err
	}

	start := time.Now()
	outs, err := r.execute(flat)
	metrics.Since(metrics.RunLatency, start, metrics.Tag("device", r.device.String()))
	return outs, err
}

// validate checks count, device, dtype and shape of every flat input.
// Dimensions sharing a symbol must agree across inputs.
func (r *Runner) validate(flat []*tensor.RawTensor) error {
	specs := r.header.Inputs
	if len(flat) != len(specs) {
		return fmt.Errorf("%w: expected %d inputs, got %d", pytree.ErrStructureMismatch, len(specs), len(flat))
	}
	symbols := make(map[string]int)
	for i, t := range flat {
		spec := specs[i]
		if t == nil {
			return &InputError{Index: i, Name: spec.Name, Reason: "nil tensor"}
		}
		if t.Device() != r.device {
			return &DeviceMismatchError{Where: fmt.Sprintf("input %d", i), Expected: r.device, Actual: t.Device()}
		}
		if t.DType() != spec.DType {
			return &InputError{Index: i, Name: spec.Name, Reason: fmt.Sprintf("expected dtype %s, got %s", spec.DType, t.DType())}
		}
		shape := t.Shape()
		if len(shape) != len(spec.Dims) {
			return &InputError{Index: i, Name: spec.Name, Reason: fmt.Sprintf("expected rank %d, got shape %v", len(spec.Dims), shape)}
		}
		for axis, d := range spec.Dims {
			size := shape[axis]
			if !d.Dynamic() {
				if size != d.Size {
					return &InputError{Index: i, Name: spec.Name, Reason: fmt.Sprintf("dim %d must be %d, got %d", axis, d.Size, size)}
				}
				continue
			}
			if size < d.Min || (d.Max > 0 && size > d.Max) {
				return &InputError{Index: i, Name: spec.Name, Reason: fmt.Sprintf("dim %d (%s) = %d outside [%d, %d]", axis, d.Symbol, size, d.Min, d.Max)}
			}
			if prev, ok := symbols[d.Symbol]; ok && prev != size {
				return &InputError{Index: i, Name: spec.Name, Reason: fmt.Sprintf("dim %d (%s) = %d, but %s = %d elsewhere", axis, d.Symbol, size, d.Symbol, prev)}
			}
			symbols[d.Symbol] = size
		}
	}
	return nil
}

func (r *Runner) execute(flat []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	prog := r.header.Program
	values := make([]*tensor.RawTensor, len(prog.Nodes))
	for i, id := range prog.Inputs {
		values[id] = flat[i]
	}

	for _, n := range prog.Nodes {
		switch n.Op {
		case graph.OpInput:
			continue
		case graph.OpConst:
			c, ok := r.consts[n.ID]
			if !ok {
				return nil, &NodeError{Node: n.ID, Op: n.Op, Err: artifact.ErrUnknownConstant}
			}
			values[n.ID] = c
			continue
		}

		inputs := make([]*tensor.RawTensor, len(n.Inputs))
		for i, in := range n.Inputs {
			inputs[i] = values[in]
		}
		out, err := r.registry.Execute(r.ctx, n, inputs)
		if err != nil {
			return nil, &NodeError{Node: n.ID, Op: n.Op, Err: err}
		}
		if len(out) != 1 {
			return nil, &NodeError{Node: n.ID, Op: n.Op, Err: fmt.Errorf("expected 1 output, got %d", len(out))}
		}
		if r.checkNonFinite && out[0].HasNonFinite() {
			return nil, &NonFiniteError{Node: n.ID, Op: n.Op, Name: n.Name}
		}
		values[n.ID] = out[0]
	}

	// Outputs never alias inputs, constants or each other.
	outs := make([]*tensor.RawTensor, len(prog.Outputs))
	seen := make(map[int]bool, len(prog.Outputs))
	for i, id := range prog.Outputs {
		v := values[id]
		if op := prog.Nodes[id].Op; op == graph.OpInput || op == graph.OpConst || seen[id] {
			v = v.Clone()
		}
		seen[id] = true
		outs[i] = v
	}
	return outs, nil
}

// Close releases the artifact mapping and removes the load directory.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.file.Close()
	if rmErr := os.RemoveAll(r.dir); err == nil {
		err = rmErr
	}
	return err
}
