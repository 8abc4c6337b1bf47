// Package runtime loads compiled .gaot artifacts and executes them.
//
// A Runner is the callable produced by Load. Call takes the same nested
// arguments the model was compiled with, flattens them against the stored
// input spec, validates every flat input against the artifact's dtype and
// symbolic shape bounds, executes the program node by node through a
// Registry, and rebuilds the nested result from the output spec. Run is the
// flat entry used by benchmarks and the CLI.
//
// Stochastic nodes draw from the runner's generator in program order, so a
// runner reseeded with the same seed as the eager interpreter reproduces its
// dropout masks and samples.
package runtime
