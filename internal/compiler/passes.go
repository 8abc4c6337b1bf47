package compiler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spaolacci/murmur3"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/backend/cpu"
	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/runtime"
	"github.com/born-ml/golden/internal/tensor"
)

// foldConstants evaluates every node whose operands are all constants and
// turns it into a constant. Parameter constants participate only when
// freezing is set. It returns the number of folded nodes.
func foldConstants(prog *graph.Program, consts map[int]*tensor.RawTensor, device tensor.Device, freezing bool) (int, error) {
	foldable := make([]bool, len(prog.Nodes))
	for _, n := range prog.Nodes {
		if n.Op == graph.OpConst {
			foldable[n.ID] = !n.Param || freezing
		}
	}

	registry := runtime.NewRegistry()
	ctx := &runtime.Context{Backend: cpu.New(device)}
	folded := 0
	for _, n := range prog.Nodes {
		if n.Op == graph.OpInput || n.Op == graph.OpConst || graph.Stochastic(n.Op) || len(n.Inputs) == 0 {
			continue
		}
		ok := true
		for _, in := range n.Inputs {
			ok = ok && foldable[in]
		}
		if !ok {
			continue
		}

		inputs := make([]*tensor.RawTensor, len(n.Inputs))
		for i, in := range n.Inputs {
			inputs[i] = consts[in]
		}
		out, err := registry.Execute(ctx, n, inputs)
		if err != nil {
			return folded, &CodeGenError{Construct: fmt.Sprintf("constant folding of %%%d (%s)", n.ID, n.Op), Err: err}
		}

		consts[n.ID] = out[0]
		*n = graph.Node{
			ID:    n.ID,
			Op:    graph.OpConst,
			Name:  fmt.Sprintf("_folded_constant%d", folded),
			Shape: out[0].Shape().Clone(),
			DType: out[0].DType(),
		}
		foldable[n.ID] = true
		folded++
	}
	return folded, nil
}

// eliminateDeadNodes drops nodes that no output depends on and renumbers
// the rest. Inputs and stochastic nodes are always kept.
func eliminateDeadNodes(prog *graph.Program, consts map[int]*tensor.RawTensor) int {
	live := make([]bool, len(prog.Nodes))
	for _, id := range prog.Outputs {
		live[id] = true
	}
	for _, id := range prog.Inputs {
		live[id] = true
	}
	for _, n := range prog.Nodes {
		if graph.Stochastic(n.Op) {
			live[n.ID] = true
		}
	}
	for i := len(prog.Nodes) - 1; i >= 0; i-- {
		if !live[i] {
			continue
		}
		for _, in := range prog.Nodes[i].Inputs {
			live[in] = true
		}
	}

	remap := make([]int, len(prog.Nodes))
	kept := prog.Nodes[:0]
	newConsts := make(map[int]*tensor.RawTensor, len(consts))
	for _, n := range prog.Nodes {
		if !live[n.ID] {
			remap[n.ID] = -1
			continue
		}
		id := len(kept)
		remap[n.ID] = id
		if c, ok := consts[n.ID]; ok {
			newConsts[id] = c
		}
		for i, in := range n.Inputs {
			n.Inputs[i] = remap[in]
		}
		n.ID = id
		kept = append(kept, n)
	}
	removed := len(prog.Nodes) - len(kept)
	prog.Nodes = kept

	for i, id := range prog.Inputs {
		prog.Inputs[i] = remap[id]
	}
	for i, id := range prog.Outputs {
		prog.Outputs[i] = remap[id]
	}
	for id := range consts {
		delete(consts, id)
	}
	for id, c := range newConsts {
		consts[id] = c
	}
	return removed
}

// autotuneMatMul times each candidate kernel on every matmul node's operand
// shapes and records the fastest on the node.
func autotuneMatMul(prog *graph.Program, device tensor.Device, candidates []cpu.MatMulKernel) {
	const reps = 3
	backend := cpu.New(device)
	chosen := make(map[string]cpu.MatMulKernel)

	for _, n := range prog.Nodes {
		if n.Op != graph.OpMatMul {
			continue
		}
		a, b := prog.Nodes[n.Inputs[0]], prog.Nodes[n.Inputs[1]]
		key := fmt.Sprintf("%s%v@%s%v", a.DType, a.Shape, b.DType, b.Shape)
		if k, ok := chosen[key]; ok {
			n.Attrs.Kernel = string(k)
			continue
		}

		x := tensor.Zeros(a.Shape, a.DType, device)
		y := tensor.Zeros(b.Shape, b.DType, device)
		best, bestTime := candidates[0], time.Duration(-1)
		for _, k := range candidates {
			start := time.Now()
			for range reps {
				backend.MatMulWith(k, x, y)
			}
			if elapsed := time.Since(start); bestTime < 0 || elapsed < bestTime {
				best, bestTime = k, elapsed
			}
		}
		chosen[key] = best
		n.Attrs.Kernel = string(best)
		log.Debug().Str("shapes", key).Str("kernel", string(best)).Dur("time", bestTime).Msg("matmul autotuned")
	}
}

// kernelSignature identifies the code a node would be lowered to: the op,
// its attributes and its operand and result dtypes. Shapes are not part of
// it; kernels are shape-generic.
func kernelSignature(prog *graph.Program, n *graph.Node) string {
	dtypes := make([]tensor.DataType, len(n.Inputs))
	for i, in := range n.Inputs {
		dtypes[i] = prog.Nodes[in].DType
	}
	attrs, _ := json.Marshal(n.Attrs)

	h := murmur3.New128()
	_, _ = h.Write([]byte(n.Op))
	_, _ = h.Write(attrs)
	_, _ = fmt.Fprint(h, dtypes, n.DType)
	return hex.EncodeToString(h.Sum(nil))
}

// dedupKernels assigns KernelIDs so nodes with the same signature share
// one kernel entry. IDs start at 1 in first-use order.
func dedupKernels(prog *graph.Program) []artifact.KernelInfo {
	ids := make(map[string]int)
	var kernels []artifact.KernelInfo
	for _, n := range prog.Nodes {
		if n.Op == graph.OpInput || n.Op == graph.OpConst {
			n.KernelID = 0
			continue
		}
		sig := kernelSignature(prog, n)
		id, ok := ids[sig]
		if !ok {
			id = len(kernels) + 1
			ids[sig] = id
			kernels = append(kernels, artifact.KernelInfo{ID: id, Signature: sig, Op: n.Op})
		}
		kernels[id-1].Uses++
		n.KernelID = id
	}
	return kernels
}
