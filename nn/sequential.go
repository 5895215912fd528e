package nn

import (
	"fmt"
	"strings"

	"github.com/robustfl/flsim/tensor"
)

// Sequential is a container that chains child modules in order.
//
// Children are registered under names; parameter names in the state dict are
// prefixed with the child name ("fc1.weight", "fc2.bias", ...), which is the
// key format the aggregator exchanges.
type Sequential struct {
	names    []string
	children []Module
}

// NewSequential creates an empty Sequential container.
func NewSequential() *Sequential {
	return &Sequential{}
}

// Add registers a child module under the given name and returns the container
// for chaining. Names must be unique and must not contain '.'.
func (s *Sequential) Add(name string, child Module) *Sequential {
	if strings.Contains(name, ".") {
		panic(fmt.Sprintf("Sequential.Add: name %q must not contain '.'", name))
	}
	for _, existing := range s.names {
		if existing == name {
			panic(fmt.Sprintf("Sequential.Add: duplicate child name %q", name))
		}
	}
	s.names = append(s.names, name)
	s.children = append(s.children, child)
	return s
}

// SetMode switches all children between Train and Eval.
func (s *Sequential) SetMode(mode Mode) {
	for _, child := range s.children {
		child.SetMode(mode)
	}
}

// Forward passes the input through each child in registration order.
func (s *Sequential) Forward(input *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	out := input
	for _, child := range s.children {
		out = child.Forward(out)
	}
	return out
}

// Backward propagates the output gradient through the children in reverse
// order, accumulating parameter gradients along the way.
func (s *Sequential) Backward(grad *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	out := grad
	for i := len(s.children) - 1; i >= 0; i-- {
		out = s.children[i].Backward(out)
	}
	return out
}

// Parameters returns the parameters of all children in registration order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, child := range s.children {
		params = append(params, child.Parameters()...)
	}
	return params
}

// StateDict returns the live parameter tensors of all children, keyed by
// "<child>.<param>".
func (s *Sequential) StateDict() *StateDict {
	sd := NewStateDict()
	for i, child := range s.children {
		childSD := child.StateDict()
		for _, key := range childSD.Keys() {
			raw, _ := childSD.Get(key)
			sd.Set(s.names[i]+"."+key, raw)
		}
	}
	return sd
}

// LoadStateDict loads parameters under strict key matching across all
// children. Validation precedes mutation, so a failed load leaves every
// child's prior parameters unchanged.
func (s *Sequential) LoadStateDict(sd *StateDict) error {
	return loadStrict(s.StateDict(), sd)
}
