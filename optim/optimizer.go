// Package optim implements the optimization algorithms flsim clients train with.
//
// This package provides:
//   - Optimizer interface: gradient application and learning-rate access
//   - SGD: stochastic gradient descent with momentum
//   - MinCapableStepLR: step-decay learning-rate scheduler with a floor
package optim

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers read the gradients accumulated on their parameters by the
// backward pass and update the parameters in place.
type Optimizer interface {
	// Step applies the accumulated gradients to all parameters.
	// Parameters with no accumulated gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	//
	// Call before each backward pass to prevent gradient accumulation from
	// previous iterations.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float32

	// SetLR updates the learning rate. Used by schedulers.
	SetLR(lr float32)
}
