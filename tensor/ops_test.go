package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFromSlice[T DType](t *testing.T, data []T, shape Shape) *Tensor[T] {
	t.Helper()
	tt, err := FromSlice(data, shape)
	require.NoError(t, err)
	return tt
}

func TestAdd(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3, 4}, Shape{2, 2})
	b := mustFromSlice(t, []float32{10, 20, 30, 40}, Shape{2, 2})

	out := a.Add(b)
	assert.Equal(t, []float32{11, 22, 33, 44}, out.Data())
	// Inputs untouched.
	assert.Equal(t, []float32{1, 2, 3, 4}, a.Data())
}

func TestAddRowBroadcast(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	bias := mustFromSlice(t, []float32{10, 20, 30}, Shape{3})

	out := a.Add(bias)
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.Data())

	row := mustFromSlice(t, []float32{10, 20, 30}, Shape{1, 3})
	out = a.Add(row)
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.Data())
}

func TestAddShapeMismatchPanics(t *testing.T) {
	a := Zeros[float32](Shape{2, 3})
	b := Zeros[float32](Shape{3, 2})
	assert.Panics(t, func() { a.Add(b) })
}

func TestSubMul(t *testing.T) {
	a := mustFromSlice(t, []float32{5, 6}, Shape{2})
	b := mustFromSlice(t, []float32{1, 2}, Shape{2})

	assert.Equal(t, []float32{4, 4}, a.Sub(b).Data())
	assert.Equal(t, []float32{5, 12}, a.Mul(b).Data())
	assert.Equal(t, []float32{10, 12}, a.MulScalar(2).Data())
}

func TestMatMul(t *testing.T) {
	// [[1,2],[3,4]] @ [[5,6],[7,8]] = [[19,22],[43,50]]
	a := mustFromSlice(t, []float32{1, 2, 3, 4}, Shape{2, 2})
	b := mustFromSlice(t, []float32{5, 6, 7, 8}, Shape{2, 2})

	out := a.MatMul(b)
	assert.Equal(t, Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{19, 22, 43, 50}, out.Data())
}

func TestMatMulRectangular(t *testing.T) {
	// [1,3] @ [3,2]
	a := mustFromSlice(t, []float32{1, 2, 3}, Shape{1, 3})
	b := mustFromSlice(t, []float32{1, 4, 2, 5, 3, 6}, Shape{3, 2})

	out := a.MatMul(b)
	assert.Equal(t, Shape{1, 2}, out.Shape())
	assert.Equal(t, []float32{14, 32}, out.Data())
}

func TestMatMulDimensionMismatchPanics(t *testing.T) {
	a := Zeros[float32](Shape{2, 3})
	b := Zeros[float32](Shape{2, 3})
	assert.Panics(t, func() { a.MatMul(b) })
}

func TestTranspose(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	out := a.Transpose()
	assert.Equal(t, Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.Data())
}

func TestArgmaxRows(t *testing.T) {
	a := mustFromSlice(t, []float32{
		0.1, 0.9, 0.0,
		0.5, 0.5, 0.4, // tie resolves to the lowest index
		-1, -2, -0.5,
	}, Shape{3, 3})

	assert.Equal(t, []int{1, 0, 2}, a.ArgmaxRows())
}

func TestSquaredDiffSum(t *testing.T) {
	a := mustFromSlice(t, []float32{1, 2, 3}, Shape{3})
	b := mustFromSlice(t, []float32{2, 4, 0}, Shape{3})

	sum, err := SquaredDiffSum(a.Raw(), b.Raw())
	require.NoError(t, err)
	// 1 + 4 + 9
	assert.InDelta(t, 14.0, sum, 1e-9)
}

func TestSquaredDiffSumErrors(t *testing.T) {
	a := Zeros[float32](Shape{2})
	b := Zeros[float32](Shape{3})
	_, err := SquaredDiffSum(a.Raw(), b.Raw())
	assert.Error(t, err)

	c := Zeros[int32](Shape{2})
	_, err = SquaredDiffSum(a.Raw(), c.Raw())
	assert.Error(t, err)
}
