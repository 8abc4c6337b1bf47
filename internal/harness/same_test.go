package harness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/golden/internal/pytree"
	"github.com/born-ml/golden/internal/tensor"
)

func f32(values ...float32) *tensor.RawTensor {
	return tensor.MustFromSlice(values, tensor.Shape{len(values)}, tensor.DefaultDevice)
}

func TestSame(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name     string
		expected any
		actual   any
		reason   string
	}{
		{"equal", f32(1, 2), f32(1, 2), ""},
		{"within tolerance", f32(1000), f32(1000.05), ""},
		{"nan equals nan", f32(nan, 1), f32(nan, 1), ""},
		{"same infinity", f32(inf), f32(inf), ""},
		{"value", f32(1, 2), f32(1, 2.1), "value"},
		{"nan vs number", f32(nan), f32(0), "value"},
		{"opposite infinity", f32(inf), f32(-inf), "value"},
		{"shape", f32(1, 2), tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{1, 2}, tensor.DefaultDevice), "shape"},
		{"dtype", f32(1), tensor.MustFromSlice([]float64{1}, tensor.Shape{1}, tensor.DefaultDevice), "dtype"},
		{"structure", pytree.Tuple{f32(1), f32(2)}, pytree.Tuple{f32(1)}, "structure"},
		{"list vs tuple", pytree.Tuple{f32(1)}, []any{f32(1)}, "structure"},
		{"leaf type", f32(1), 1.0, "leaf type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Same(tt.expected, tt.actual, DefaultAtol, DefaultRtol)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			var mm *MismatchError
			require.ErrorAs(t, err, &mm)
			assert.Equal(t, tt.reason, mm.Reason)
		})
	}
}

func TestSameReportsPath(t *testing.T) {
	expected := pytree.Tuple{f32(0), pytree.NewDict().Set("a", f32(1)).Set("b", f32(1, 2, 3))}
	actual := pytree.Tuple{f32(0), pytree.NewDict().Set("a", f32(1)).Set("b", f32(1, 2, 4))}

	err := Same(expected, actual, DefaultAtol, DefaultRtol)
	var mm *MismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, `root[1]["b"]`, mm.Path)
	assert.Equal(t, 2, mm.Index)
	assert.Equal(t, 3.0, mm.Expected)
	assert.Equal(t, 4.0, mm.Actual)
	assert.Contains(t, err.Error(), `root[1]["b"] index 2`)
}

func TestSameUsesRelativeTolerance(t *testing.T) {
	assert.NoError(t, Same(f32(100), f32(100.5), 0, 0.01))
	assert.Error(t, Same(f32(100), f32(102), 0, 0.01))
}
