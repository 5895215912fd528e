package tensor

import "fmt"

// Tensor is a typed view over a RawTensor.
//
// Type parameter T fixes the element type at compile time, so callers get
// type-safe Data() slices without runtime assertions at every access.
//
// Example:
//
//	t, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	row0 := t.At(0, 1) // 2
type Tensor[T DType] struct {
	raw *RawTensor
}

// New creates a Tensor from a RawTensor.
// Panics if the raw tensor's dtype does not match T.
func New[T DType](raw *RawTensor) *Tensor[T] {
	var dummy T
	if dtype := inferDataType(dummy); dtype != raw.DType() {
		panic(fmt.Sprintf("dtype mismatch: Tensor[%s] over %s RawTensor", dtype, raw.DType()))
	}
	return &Tensor[T]{raw: raw}
}

// Zeros creates a zero-filled tensor with the given shape.
func Zeros[T DType](shape Shape) *Tensor[T] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), CPU)
	if err != nil {
		panic(err)
	}
	return &Tensor[T]{raw: raw}
}

// Full creates a tensor filled with the given value.
func Full[T DType](shape Shape, value T) *Tensor[T] {
	t := Zeros[T](shape)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType](data []T, shape Shape) (*Tensor[T], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := Zeros[T](shape)
	copy(t.Data(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor[T]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor[T]) DType() DataType {
	return t.raw.DType()
}

// Device returns the tensor's compute device.
func (t *Tensor[T]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor[T]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[T]) Raw() *RawTensor {
	return t.raw
}

// Data returns a typed slice view of the tensor's data (zero-copy).
//
// WARNING: Modifications to the returned slice modify the tensor.
func (t *Tensor[T]) Data() []T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(t.raw.AsFloat32()).([]T)
	case int32:
		return any(t.raw.AsInt32()).([]T)
	case int64:
		return any(t.raw.AsInt64()).([]T)
	default:
		panic("unsupported type")
	}
}

// Item returns the scalar value of a single-element tensor.
// Panics if the tensor holds more than one element.
func (t *Tensor[T]) Item() T {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for scalar tensors, got shape %v", t.Shape()))
	}
	return t.Data()[0]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T]) At(indices ...int) T {
	return t.Data()[t.offsetOf(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T]) Set(value T, indices ...int) {
	t.Data()[t.offsetOf(indices)] = value
}

func (t *Tensor[T]) offsetOf(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return offset
}

// Clone creates a deep copy of the tensor.
func (t *Tensor[T]) Clone() *Tensor[T] {
	return &Tensor[T]{raw: t.raw.Clone()}
}

// Reshape returns a tensor sharing this tensor's data with a new shape.
// The element count must match.
func (t *Tensor[T]) Reshape(dims ...int) *Tensor[T] {
	shape := Shape(dims)
	if shape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("cannot reshape %v to %v", t.Shape(), shape))
	}
	raw := &RawTensor{
		data:   t.raw.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  t.raw.dtype,
		device: t.raw.device,
	}
	return &Tensor[T]{raw: raw}
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[T]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.DType(), t.Shape(), t.Device())
}
