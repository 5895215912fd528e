// Package nn implements the neural network modules used by flsim clients.
//
// This package provides the building blocks a federated client trains:
//   - Module interface: mode switching, forward/backward, parameter access
//   - Parameter: named trainable tensors with accumulated gradients
//   - StateDict: the ordered parameter set exchanged with the aggregator
//   - Linear, ReLU, Sequential: the layer set for the reference networks
//   - CrossEntropyLoss: classification loss with its input gradient
//
// Design inspired by PyTorch's nn.Module, with layer-local backward passes:
// each layer caches what its backward step needs while in Train mode and
// accumulates gradients into its own parameters.
package nn

import "github.com/robustfl/flsim/tensor"

// Mode selects between training and evaluation behavior.
//
// In Train mode layers cache forward activations for the backward pass; in
// Eval mode no caching happens and Backward must not be called.
type Mode int

// Module modes.
const (
	Train Mode = iota
	Eval
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	if m == Train {
		return "train"
	}
	return "eval"
}

// Module is the base interface for all neural network components.
//
// Modules can be composed with Sequential to build networks:
//
//	model := nn.NewSequential().
//	    Add("fc1", nn.NewLinear(784, 128, rng)).
//	    Add("relu", nn.NewReLU()).
//	    Add("fc2", nn.NewLinear(128, 10, rng))
type Module interface {
	// SetMode switches the module (and any children) between Train and Eval.
	SetMode(mode Mode)

	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32]) *tensor.Tensor[float32]

	// Backward propagates the gradient of the loss with respect to this
	// module's output, accumulates gradients into trainable parameters, and
	// returns the gradient with respect to the input.
	//
	// Must only be called after a Forward in Train mode.
	Backward(grad *tensor.Tensor[float32]) *tensor.Tensor[float32]

	// Parameters returns all trainable parameters of this module, including
	// nested module parameters. Modules without trainable parameters return
	// an empty slice.
	Parameters() []*Parameter

	// StateDict returns the ordered mapping from parameter name to raw
	// tensor. The returned tensors are the live parameter buffers, not
	// copies.
	StateDict() *StateDict

	// LoadStateDict loads parameters under strict key matching: any missing
	// or unexpected key is an error, and on error the module's prior
	// parameters are left unchanged.
	LoadStateDict(sd *StateDict) error
}
