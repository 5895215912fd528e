package nn

import "github.com/robustfl/flsim/tensor"

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors whose gradients are accumulated during the backward
// pass. They typically represent weights and biases of layers.
type Parameter struct {
	name   string
	tensor *tensor.Tensor[float32]
	grad   *tensor.Tensor[float32]
}

// NewParameter creates a new trainable parameter.
//
// The gradient buffer is allocated lazily on the first backward pass.
func NewParameter(name string, t *tensor.Tensor[float32]) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name (e.g. "weight", "bias").
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor[float32] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil if no gradient has been
// accumulated since the last ZeroGrad.
func (p *Parameter) Grad() *tensor.Tensor[float32] {
	return p.grad
}

// AccumGrad adds the given gradient into the parameter's gradient buffer,
// allocating it if needed. Shapes must match the parameter.
func (p *Parameter) AccumGrad(grad *tensor.Tensor[float32]) {
	if p.grad == nil {
		p.grad = tensor.Zeros[float32](p.tensor.Shape())
	}
	dst, src := p.grad.Data(), grad.Data()
	for i := range dst {
		dst[i] += src[i]
	}
}

// ZeroGrad clears the gradient buffer.
//
// Call before each training iteration to avoid accumulating gradients from
// previous iterations.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
