package compiler

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/born-ml/golden/internal/artifact"
	"github.com/born-ml/golden/internal/tensor"
)

// fingerprint hashes everything that determines an artifact's behaviour:
// the optimised program, the constant data, the call and input specs, the
// target device and the options. The output-path override is excluded so
// that relocating an artifact reuses the cached compile.
func fingerprint(h *artifact.Header, consts map[int]*tensor.RawTensor) (string, error) {
	opts := make(map[string]any, len(h.Options))
	for k, v := range h.Options {
		if k != OptOutputPath {
			opts[k] = v
		}
	}

	meta, err := json.Marshal(struct {
		Version  string               `json:"version"`
		Device   tensor.Device        `json:"device"`
		CallSpec artifact.CallSpec    `json:"call_spec"`
		Inputs   []artifact.InputSpec `json:"inputs"`
		Program  any                  `json:"program"`
		Options  map[string]any       `json:"options"`
	}{Version, h.Device, h.CallSpec, h.Inputs, h.Program, opts})
	if err != nil {
		return "", fmt.Errorf("failed to encode fingerprint metadata: %w", err)
	}

	hasher := xxh3.New()
	_, _ = hasher.Write(meta)

	ids := make([]int, 0, len(consts))
	for id := range consts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var word [8]byte
	for _, id := range ids {
		c := consts[id]
		binary.LittleEndian.PutUint64(word[:], uint64(id)) //nolint:gosec // G115: node ids are non-negative
		_, _ = hasher.Write(word[:])
		_, _ = hasher.Write([]byte(c.DType().String() + c.Shape().String()))
		_, _ = hasher.Write(c.Data())
	}

	sum := hasher.Sum128().Bytes()
	return hex.EncodeToString(sum[:]), nil
}
