package tensor

import "fmt"

// Add returns the element-wise sum of t and other.
//
// Shapes must match exactly, or other may be a row vector of shape [C] or
// [1, C] broadcast across a [N, C] tensor (the bias-add case).
func (t *Tensor[T]) Add(other *Tensor[T]) *Tensor[T] {
	return t.zipWith(other, func(a, b T) T { return a + b })
}

// Sub returns the element-wise difference of t and other.
// The same broadcasting rules as Add apply.
func (t *Tensor[T]) Sub(other *Tensor[T]) *Tensor[T] {
	return t.zipWith(other, func(a, b T) T { return a - b })
}

// Mul returns the element-wise product of t and other.
// The same broadcasting rules as Add apply.
func (t *Tensor[T]) Mul(other *Tensor[T]) *Tensor[T] {
	return t.zipWith(other, func(a, b T) T { return a * b })
}

// MulScalar returns a copy of t with every element multiplied by s.
func (t *Tensor[T]) MulScalar(s T) *Tensor[T] {
	out := t.Clone()
	data := out.Data()
	for i := range data {
		data[i] *= s
	}
	return out
}

func (t *Tensor[T]) zipWith(other *Tensor[T], op func(a, b T) T) *Tensor[T] {
	ts, os := t.Shape(), other.Shape()

	if ts.Equal(os) {
		out := t.Clone()
		a, b := out.Data(), other.Data()
		for i := range a {
			a[i] = op(a[i], b[i])
		}
		return out
	}

	// Row broadcast: [N, C] op [C] or [1, C].
	if len(ts) == 2 && rowVectorLen(os) == ts[1] {
		out := t.Clone()
		a, b := out.Data(), other.Data()
		cols := ts[1]
		for i := range a {
			a[i] = op(a[i], b[i%cols])
		}
		return out
	}

	panic(fmt.Sprintf("shapes not compatible: %v vs %v", ts, os))
}

// rowVectorLen returns the length of a [C] or [1, C] shape, or -1.
func rowVectorLen(s Shape) int {
	switch {
	case len(s) == 1:
		return s[0]
	case len(s) == 2 && s[0] == 1:
		return s[1]
	default:
		return -1
	}
}

// MatMul performs 2-D matrix multiplication: [M, K] @ [K, N] -> [M, N].
func (t *Tensor[T]) MatMul(other *Tensor[T]) *Tensor[T] {
	a, b := t.Shape(), other.Shape()
	if len(a) != 2 || len(b) != 2 {
		panic(fmt.Sprintf("MatMul requires 2-D tensors, got %v and %v", a, b))
	}
	if a[1] != b[0] {
		panic(fmt.Sprintf("MatMul inner dimensions must match: %v @ %v", a, b))
	}

	m, k, n := a[0], a[1], b[1]
	out := Zeros[T](Shape{m, n})

	ad, bd, od := t.Data(), other.Data(), out.Data()
	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := ad[i*k+p]
			if av == 0 {
				continue
			}
			row := bd[p*n : (p+1)*n]
			outRow := od[i*n : (i+1)*n]
			for j, bv := range row {
				outRow[j] += av * bv
			}
		}
	}
	return out
}

// Transpose returns the transpose of a 2-D tensor.
func (t *Tensor[T]) Transpose() *Tensor[T] {
	s := t.Shape()
	if len(s) != 2 {
		panic(fmt.Sprintf("Transpose requires a 2-D tensor, got %v", s))
	}
	rows, cols := s[0], s[1]
	out := Zeros[T](Shape{cols, rows})
	in, od := t.Data(), out.Data()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			od[j*rows+i] = in[i*cols+j]
		}
	}
	return out
}

// ArgmaxRows returns the index of the maximum element of each row of a
// 2-D tensor. Ties resolve to the lowest index.
func (t *Tensor[T]) ArgmaxRows() []int {
	s := t.Shape()
	if len(s) != 2 {
		panic(fmt.Sprintf("ArgmaxRows requires a 2-D tensor, got %v", s))
	}
	rows, cols := s[0], s[1]
	data := t.Data()

	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		best := 0
		for j := 1; j < cols; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// SquaredDiffSum returns the sum of squared element-wise differences between
// two float32 raw tensors. Shapes and dtypes must match.
func SquaredDiffSum(a, b *RawTensor) (float64, error) {
	if a.DType() != Float32 || b.DType() != Float32 {
		return 0, fmt.Errorf("SquaredDiffSum requires float32 tensors, got %s and %s", a.DType(), b.DType())
	}
	if !a.Shape().Equal(b.Shape()) {
		return 0, fmt.Errorf("shape mismatch: %v vs %v", a.Shape(), b.Shape())
	}

	av, bv := a.AsFloat32(), b.AsFloat32()
	var sum float64
	for i := range av {
		d := float64(av[i]) - float64(bv[i])
		sum += d * d
	}
	return sum, nil
}
