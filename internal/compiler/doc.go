// Package compiler turns a graph.Model and example inputs into a .gaot
// artifact.
//
// Compile validates the example inputs (device, dtype, dynamic-shape
// constraints), traces the model into a graph.Program, runs the optimisation
// passes, fingerprints the result and consults the compile cache before
// writing a new artifact:
//
//	c := compiler.New(cache)
//	path, err := c.Compile(model, []any{x, y}, opts,
//	    compiler.DynamicDim(0, 0).GE(1),
//	    compiler.DynamicDim(0, 0).LE(1024),
//	)
//
// Passes, in order:
//
//   - constant folding: nodes whose inputs are all constants are evaluated
//     at compile time. Parameters count as constants only with freezing.
//     Stochastic nodes are never folded.
//   - dead-node elimination: nodes no output depends on are dropped.
//     Stochastic nodes are always kept so random draws stay in step with
//     the eager interpreter.
//   - matmul autotuning (max_autotune): every candidate GEMM kernel is timed
//     on the node's shapes and the fastest is recorded on the node.
//   - kernel deduplication: nodes with identical op, attributes and operand
//     dtypes share one kernel entry.
package compiler

// Version is written into every artifact header.
const Version = "0.1.0"
