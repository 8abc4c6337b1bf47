package artifact

import (
	"time"

	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "GAOT"
	FormatVersion   = 1
	FixedHeaderSize = 64 // 0x40
	Alignment       = 64 // data section and every constant are 64-byte aligned
	Extension       = ".gaot"
)

// Flags for the .gaot format.
const (
	FlagCompressed uint32 = 1 << 0 // bit 0: zstd compressed data section
	FlagChecksum   uint32 = 1 << 1 // bit 1: checksum present
)

// Header is the JSON header of a .gaot file.
type Header struct {
	FormatVersion int            `json:"format_version"`
	GoldenVersion string         `json:"golden_version"`
	ArtifactID    string         `json:"artifact_id"`
	CreatedAt     time.Time      `json:"created_at"`
	Device        tensor.Device  `json:"device"`
	Fingerprint   string         `json:"fingerprint"`
	CallSpec      CallSpec       `json:"call_spec"`
	Inputs        []InputSpec    `json:"inputs"`
	Program       *graph.Program `json:"program"`
	Kernels       []KernelInfo   `json:"kernels,omitempty"`
	Constants     []ConstantMeta `json:"constants"`
	Options       map[string]any `json:"options,omitempty"`
}

// CallSpec holds the serialised input and output tree specs.
type CallSpec struct {
	In  string `json:"in"`
	Out string `json:"out"`
}

// InputSpec describes one flat program input.
type InputSpec struct {
	Name  string          `json:"name"`
	DType tensor.DataType `json:"dtype"`
	Dims  []DimSpec       `json:"dims"`
}

// DimSpec describes one input dimension. Static dimensions have no Symbol
// and must equal Size. Dynamic dimensions accept any size in [Min, Max];
// dimensions sharing a Symbol must be equal at call time.
type DimSpec struct {
	Size   int    `json:"size"`
	Symbol string `json:"symbol,omitempty"`
	Min    int    `json:"min,omitempty"`
	Max    int    `json:"max,omitempty"`
}

// Dynamic reports whether the dimension may vary between calls.
func (d DimSpec) Dynamic() bool {
	return d.Symbol != ""
}

// KernelInfo describes a kernel entry shared by one or more nodes.
type KernelInfo struct {
	ID        int    `json:"id"`
	Signature string `json:"signature"`
	Op        string `json:"op"`
	Uses      int    `json:"uses"`
}

// ConstantMeta locates a constant tensor in the (uncompressed) data section.
type ConstantMeta struct {
	Node   int             `json:"node"`
	Name   string          `json:"name"`
	DType  tensor.DataType `json:"dtype"`
	Shape  tensor.Shape    `json:"shape"`
	Offset int64           `json:"offset"`
	Size   int64           `json:"size"`
}

// Artifact is an in-memory artifact ready to be written.
type Artifact struct {
	Header    Header
	Constants map[int]*tensor.RawTensor // keyed by program node ID
}
