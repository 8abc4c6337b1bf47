package artifact

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/golden/internal/graph"
	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

func sampleArtifact(t *testing.T) *Artifact {
	t.Helper()
	w := tensor.MustFromSlice([]float32{1, 2, 3}, tensor.Shape{3}, tensor.DefaultDevice)
	b := tensor.MustFromSlice([]float64{0.5}, tensor.Shape{1}, tensor.DefaultDevice)
	model := graph.ModelFunc(func(g *graph.Graph, args ...any) any {
		x := args[0].(*graph.Value)
		return x.Mul(g.Param("w", w)).Cast(tensor.Float64).Add(g.Param("b", b))
	})
	x := tensor.Randn(tensor.Shape{2, 3}, tensor.Float32, tensor.DefaultDevice, tensor.NewGenerator(1))
	traced, err := graph.Trace(model, tensor.DefaultDevice, x)
	require.NoError(t, err)

	in, err := pytree.Dumps(traced.InSpec)
	require.NoError(t, err)
	out, err := pytree.Dumps(traced.OutSpec)
	require.NoError(t, err)

	return &Artifact{
		Header: Header{
			GoldenVersion: "test",
			ArtifactID:    "00000000-0000-0000-0000-000000000001",
			CreatedAt:     time.Unix(0, 0).UTC(),
			Device:        tensor.DefaultDevice,
			Fingerprint:   "abc",
			CallSpec:      CallSpec{In: in, Out: out},
			Inputs: []InputSpec{{
				Name:  "arg0",
				DType: tensor.Float32,
				Dims:  []DimSpec{{Size: 2, Symbol: "s0", Min: 1, Max: 8}, {Size: 3}},
			}},
			Program: traced.Program,
			Options: map[string]any{"constant_folding": true},
		},
		Constants: traced.Constants,
	}
}

func writeSample(t *testing.T, compress bool) (string, *Artifact) {
	t.Helper()
	a := sampleArtifact(t)
	path := filepath.Join(t.TempDir(), "model"+Extension)
	require.NoError(t, Write(path, a, WriteOptions{Compress: compress}))
	return path, a
}

func TestRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			path, a := writeSample(t, compress)

			f, err := Open(path)
			require.NoError(t, err)
			defer f.Close()

			h := f.Header()
			assert.Equal(t, FormatVersion, h.FormatVersion)
			assert.Equal(t, a.Header.ArtifactID, h.ArtifactID)
			assert.Equal(t, a.Header.CallSpec, h.CallSpec)
			assert.Equal(t, a.Header.Inputs, h.Inputs)
			assert.Equal(t, a.Header.Program.String(), h.Program.String())
			assert.Equal(t, true, h.Options["constant_folding"])
			require.Len(t, h.Constants, len(a.Constants))

			for _, c := range h.Constants {
				assert.Zero(t, c.Offset%Alignment, "constant %q misaligned", c.Name)
				got, err := f.Constant(c.Node)
				require.NoError(t, err)
				assert.Equal(t, a.Constants[c.Node].Data(), got.Data())
				assert.Equal(t, a.Constants[c.Node].Shape(), got.Shape())
				assert.Equal(t, a.Constants[c.Node].DType(), got.DType())
			}
		})
	}
}

func TestConstantAfterClose(t *testing.T) {
	path, _ := writeSample(t, false)
	f, err := Open(path)
	require.NoError(t, err)
	node := f.Header().Constants[0].Node
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Constant(node)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUnknownConstant(t *testing.T) {
	path, _ := writeSample(t, false)
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Constant(0) // the input node
	assert.ErrorIs(t, err, ErrUnknownConstant)
}

func corrupt(t *testing.T, path string, edit func(buf []byte)) {
	t.Helper()
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	edit(buf)
	require.NoError(t, os.WriteFile(path, buf, 0o600))
}

func TestOpenRejectsCorruptFiles(t *testing.T) {
	tests := []struct {
		name string
		edit func(buf []byte)
		want error
	}{
		{"magic", func(buf []byte) { copy(buf, "BORN") }, ErrInvalidMagic},
		{"version", func(buf []byte) { binary.LittleEndian.PutUint32(buf[0x04:], 9) }, ErrUnsupportedVersion},
		{"checksum", func(buf []byte) { buf[len(buf)-1] ^= 0xff }, ErrChecksumMismatch},
		{"header size", func(buf []byte) { binary.LittleEndian.PutUint64(buf[0x10:], MaxHeaderSize+1) }, ErrHeaderTooLarge},
		{"data size", func(buf []byte) { binary.LittleEndian.PutUint64(buf[0x18:], 1<<30) }, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _ := writeSample(t, false)
			corrupt(t, path, tt.edit)
			_, err := Open(path)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenRejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.gaot")
	require.NoError(t, os.WriteFile(path, []byte("GAOT"), 0o600))
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestValidateConstants(t *testing.T) {
	meta := func(name string, offset, n int64) ConstantMeta {
		return ConstantMeta{Name: name, DType: tensor.Float32, Shape: tensor.Shape{int(n)}, Offset: offset, Size: n * 4}
	}
	tests := []struct {
		name   string
		consts []ConstantMeta
		want   error
	}{
		{"ok", []ConstantMeta{meta("a", 0, 4), meta("b", 64, 4)}, nil},
		{"overlap", []ConstantMeta{meta("a", 0, 4), meta("b", 8, 4)}, ErrOffsetOverlap},
		{"out of bounds", []ConstantMeta{meta("a", 120, 4)}, ErrOutOfBounds},
		{"negative", []ConstantMeta{meta("a", -64, 4)}, ErrNegativeOffset},
		{"size mismatch", []ConstantMeta{{Name: "a", DType: tensor.Float32, Shape: tensor.Shape{3}, Size: 4}}, ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConstants(tt.consts, 128)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Err: ErrOffsetOverlap, Constant: "a", Constant2: "b", Details: "x"}
	assert.Equal(t, `constant offsets overlap: constants "a" and "b": x`, err.Error())
}

func TestWriteRejectsInvalidProgram(t *testing.T) {
	a := sampleArtifact(t)
	a.Header.Inputs = nil
	err := Write(filepath.Join(t.TempDir(), "bad.gaot"), a, WriteOptions{})
	assert.Error(t, err)
}
