package nn

import (
	"fmt"
	"math/rand"

	"github.com/robustfl/flsim/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//
// Weights are initialized with Xavier/Glorot uniform values drawn from the
// supplied generator; biases start at zero.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	mode        Mode
	input       *tensor.Tensor[float32] // cached in Train mode for Backward
}

// NewLinear creates a new Linear layer.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	weightShape := tensor.Shape{outFeatures, inFeatures}
	weight := NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, rng))
	bias := NewParameter("bias", tensor.Zeros[float32](tensor.Shape{outFeatures}))

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
		mode:        Train,
	}
}

// SetMode switches the layer between Train and Eval.
// Leaving Train mode drops the cached forward input.
func (l *Linear) SetMode(mode Mode) {
	l.mode = mode
	if mode == Eval {
		l.input = nil
	}
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear) Forward(input *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", shape))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[1]))
	}

	if l.mode == Train {
		l.input = input
	}

	// [batch, in] @ [in, out] = [batch, out]
	output := input.MatMul(l.weight.Tensor().Transpose())
	return output.Add(l.bias.Tensor())
}

// Backward accumulates weight and bias gradients from the output gradient
// and returns the gradient with respect to the layer input.
//
//	dW = dY.T @ x      [out, in]
//	db = colsum(dY)    [out]
//	dX = dY @ W        [batch, in]
func (l *Linear) Backward(grad *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	if l.input == nil {
		panic("Linear.Backward: no cached input (Forward not called in Train mode)")
	}

	l.weight.AccumGrad(grad.Transpose().MatMul(l.input))

	gradBias := tensor.Zeros[float32](tensor.Shape{l.outFeatures})
	gb := gradBias.Data()
	gd := grad.Data()
	batch := grad.Shape()[0]
	for i := 0; i < batch; i++ {
		for j := 0; j < l.outFeatures; j++ {
			gb[j] += gd[i*l.outFeatures+j]
		}
	}
	l.bias.AccumGrad(gradBias)

	return grad.MatMul(l.weight.Tensor())
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns the live weight and bias tensors keyed by name.
func (l *Linear) StateDict() *StateDict {
	sd := NewStateDict()
	sd.Set("weight", l.weight.Tensor().Raw())
	sd.Set("bias", l.bias.Tensor().Raw())
	return sd
}

// LoadStateDict loads parameters under strict key matching.
func (l *Linear) LoadStateDict(sd *StateDict) error {
	return loadStrict(l.StateDict(), sd)
}
