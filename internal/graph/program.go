package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/golden/internal/tensor"
)

// Op names recorded in a Program. Element-wise unary ops reuse the CPU
// backend's names (cpu.OpSin and friends).
const (
	OpInput      = "input"
	OpConst      = "const"
	OpAdd        = "add"
	OpSub        = "sub"
	OpMul        = "mul"
	OpDiv        = "div"
	OpMaximum    = "maximum"
	OpAddScalar  = "add_scalar"
	OpMulScalar  = "mul_scalar"
	OpMatMul     = "matmul"
	OpTranspose  = "transpose"
	OpReshape    = "reshape"
	OpUnsqueeze  = "unsqueeze"
	OpSqueeze    = "squeeze"
	OpCat        = "cat"
	OpSlice      = "slice"
	OpSelect     = "select"
	OpSum        = "sum"
	OpSumDim     = "sum_dim"
	OpMeanDim    = "mean_dim"
	OpSoftmax    = "softmax"
	OpLayerNorm  = "layer_norm"
	OpDropout    = "dropout"
	OpNormalLike = "normal_like"
	OpClone      = "clone"
	OpCast       = "cast"
)

// Stochastic reports whether op draws from the random generator. Such nodes
// are never folded or deduplicated and always execute in program order.
func Stochastic(op string) bool {
	return op == OpDropout || op == OpNormalLike
}

// Attrs holds the static attributes of a node. Only the fields an op uses
// are set.
type Attrs struct {
	Axes      []int   `json:"axes,omitempty"`
	Axis      int     `json:"axis,omitempty"`
	Start     int     `json:"start,omitempty"`
	End       int     `json:"end,omitempty"`
	Step      int     `json:"step,omitempty"`
	Index     int     `json:"index,omitempty"`
	KeepDim   bool    `json:"keep_dim,omitempty"`
	Scalar    float64 `json:"scalar,omitempty"`
	Eps       float64 `json:"eps,omitempty"`
	P         float64 `json:"p,omitempty"`
	Mean      float64 `json:"mean,omitempty"`
	Std       float64 `json:"std,omitempty"`
	DType     string  `json:"dtype,omitempty"`
	HasWeight bool    `json:"has_weight,omitempty"`
	HasBias   bool    `json:"has_bias,omitempty"`
	Kernel    string  `json:"kernel,omitempty"`
}

// Node is one operation in a traced Program.
type Node struct {
	ID     int             `json:"id"`
	Op     string          `json:"op"`
	Inputs []int           `json:"inputs,omitempty"`
	Attrs  Attrs           `json:"attrs"`
	Name   string          `json:"name,omitempty"`
	Shape  tensor.Shape    `json:"shape"`
	DType  tensor.DataType `json:"dtype"`

	// KernelID names the shared kernel entry assigned by deduplication.
	KernelID int `json:"kernel_id,omitempty"`
	// Param marks constants captured from model parameters (as opposed to
	// tensors created inside the forward pass).
	Param bool `json:"param,omitempty"`
}

// Program is the flat, topologically ordered form of a traced model.
// Node IDs are dense indices into Nodes.
type Program struct {
	Nodes   []*Node `json:"nodes"`
	Inputs  []int   `json:"inputs"`
	Outputs []int   `json:"outputs"`
}

// Validate checks that every reference points at an earlier node.
func (p *Program) Validate() error {
	for i, n := range p.Nodes {
		if n.ID != i {
			return fmt.Errorf("node %d has id %d", i, n.ID)
		}
		for _, in := range n.Inputs {
			if in < 0 || in >= i {
				return fmt.Errorf("node %d (%s) references node %d out of order", i, n.Op, in)
			}
		}
	}
	for i, in := range p.Inputs {
		if in < 0 || in >= len(p.Nodes) || p.Nodes[in].Op != OpInput {
			return fmt.Errorf("input %d does not reference an input node", i)
		}
	}
	for i, out := range p.Outputs {
		if out < 0 || out >= len(p.Nodes) {
			return fmt.Errorf("output %d references unknown node %d", i, out)
		}
	}
	return nil
}

// Consts returns the IDs of every constant node.
func (p *Program) Consts() []int {
	var ids []int
	for _, n := range p.Nodes {
		if n.Op == OpConst {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// String renders the program listing, one node per line:
//
//	%3 = matmul(%1, %2) kernel=blocked -> float32[10 10]
func (p *Program) String() string {
	var b strings.Builder
	for _, n := range p.Nodes {
		fmt.Fprintf(&b, "%%%d = %s", n.ID, n.Op)
		if len(n.Inputs) > 0 {
			refs := make([]string, len(n.Inputs))
			for i, in := range n.Inputs {
				refs[i] = "%" + strconv.Itoa(in)
			}
			b.WriteString("(" + strings.Join(refs, ", ") + ")")
		}
		if n.Name != "" {
			fmt.Fprintf(&b, " %q", n.Name)
		}
		if attrs := n.Attrs.String(); attrs != "" {
			b.WriteString(" " + attrs)
		}
		if n.KernelID > 0 {
			fmt.Fprintf(&b, " #k%d", n.KernelID)
		}
		fmt.Fprintf(&b, " -> %s%s\n", n.DType, n.Shape)
	}
	outs := make([]string, len(p.Outputs))
	for i, o := range p.Outputs {
		outs[i] = "%" + strconv.Itoa(o)
	}
	fmt.Fprintf(&b, "return (%s)\n", strings.Join(outs, ", "))
	return b.String()
}

// String formats the attributes that are set, in a fixed order.
func (a Attrs) String() string {
	var parts []string
	add := func(k string, v any) { parts = append(parts, fmt.Sprintf("%s=%v", k, v)) }
	if len(a.Axes) > 0 {
		add("axes", a.Axes)
	}
	if a.Axis != 0 {
		add("axis", a.Axis)
	}
	if a.Start != 0 || a.End != 0 || a.Step != 0 {
		add("range", fmt.Sprintf("%d:%d:%d", a.Start, a.End, a.Step))
	}
	if a.Index != 0 {
		add("index", a.Index)
	}
	if a.KeepDim {
		add("keep_dim", true)
	}
	if a.Scalar != 0 {
		add("scalar", a.Scalar)
	}
	if a.Eps != 0 {
		add("eps", a.Eps)
	}
	if a.P != 0 {
		add("p", a.P)
	}
	if a.Mean != 0 || a.Std != 0 {
		add("normal", fmt.Sprintf("%g,%g", a.Mean, a.Std))
	}
	if a.DType != "" {
		add("dtype", a.DType)
	}
	if a.HasWeight {
		add("weight", true)
	}
	if a.HasBias {
		add("bias", true)
	}
	if a.Kernel != "" {
		add("kernel", a.Kernel)
	}
	return strings.Join(parts, " ")
}
