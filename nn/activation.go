package nn

import "github.com/robustfl/flsim/tensor"

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function f(x) = max(0, x).
type ReLU struct {
	mode Mode
	mask []bool // true where the forward input was positive
}

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{mode: Train}
}

// SetMode switches the module between Train and Eval.
func (r *ReLU) SetMode(mode Mode) {
	r.mode = mode
	if mode == Eval {
		r.mask = nil
	}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(input *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	out := input.Clone()
	data := out.Data()

	if r.mode == Train {
		r.mask = make([]bool, len(data))
	}
	for i, v := range data {
		if v > 0 {
			if r.mode == Train {
				r.mask[i] = true
			}
		} else {
			data[i] = 0
		}
	}
	return out
}

// Backward passes the gradient through where the forward input was positive.
func (r *ReLU) Backward(grad *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	if r.mask == nil {
		panic("ReLU.Backward: no cached mask (Forward not called in Train mode)")
	}
	out := grad.Clone()
	data := out.Data()
	for i := range data {
		if !r.mask[i] {
			data[i] = 0
		}
	}
	return out
}

// Parameters returns an empty slice (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// StateDict returns an empty state dict.
func (r *ReLU) StateDict() *StateDict {
	return NewStateDict()
}

// LoadStateDict accepts only an empty state dict.
func (r *ReLU) LoadStateDict(sd *StateDict) error {
	return loadStrict(r.StateDict(), sd)
}
