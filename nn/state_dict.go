package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robustfl/flsim/tensor"
)

// StateDict is an ordered mapping from parameter name to raw tensor.
//
// It is the unit of exchange between a client and the aggregator. Iteration
// order is insertion order, matching the order in which a module registers
// its parameters.
type StateDict struct {
	keys    []string
	entries map[string]*tensor.RawTensor
}

// NewStateDict creates an empty state dict.
func NewStateDict() *StateDict {
	return &StateDict{
		entries: make(map[string]*tensor.RawTensor),
	}
}

// Set inserts or replaces the tensor stored under name.
func (sd *StateDict) Set(name string, raw *tensor.RawTensor) {
	if _, ok := sd.entries[name]; !ok {
		sd.keys = append(sd.keys, name)
	}
	sd.entries[name] = raw
}

// Get returns the tensor stored under name.
func (sd *StateDict) Get(name string) (*tensor.RawTensor, bool) {
	raw, ok := sd.entries[name]
	return raw, ok
}

// Keys returns the parameter names in insertion order.
// The returned slice must not be modified.
func (sd *StateDict) Keys() []string {
	return sd.keys
}

// Len returns the number of entries.
func (sd *StateDict) Len() int {
	return len(sd.keys)
}

// Clone returns a deep copy of the state dict: every tensor buffer is copied.
func (sd *StateDict) Clone() *StateDict {
	clone := NewStateDict()
	for _, name := range sd.keys {
		clone.Set(name, sd.entries[name].Clone())
	}
	return clone
}

// KeyMismatchError reports a strict-load failure: the supplied state dict's
// key set does not match the module's parameter names.
type KeyMismatchError struct {
	Missing    []string // expected by the module, absent from the input
	Unexpected []string // present in the input, unknown to the module
}

// Error implements the error interface.
func (e *KeyMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing keys: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected keys: %s", strings.Join(e.Unexpected, ", ")))
	}
	return "state dict key mismatch: " + strings.Join(parts, "; ")
}

// loadStrict copies the tensors of src into the live buffers of dst under
// strict key matching. All validation (key sets, shapes, dtypes) happens
// before any copy, so a failed load leaves dst unchanged.
//
// dst holds references to a module's live parameter buffers, which is what
// Module.StateDict returns.
func loadStrict(dst, src *StateDict) error {
	var mismatch KeyMismatchError
	for _, name := range dst.keys {
		if _, ok := src.entries[name]; !ok {
			mismatch.Missing = append(mismatch.Missing, name)
		}
	}
	for _, name := range src.keys {
		if _, ok := dst.entries[name]; !ok {
			mismatch.Unexpected = append(mismatch.Unexpected, name)
		}
	}
	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 {
		sort.Strings(mismatch.Missing)
		sort.Strings(mismatch.Unexpected)
		return &mismatch
	}

	for _, name := range dst.keys {
		target, source := dst.entries[name], src.entries[name]
		if !target.Shape().Equal(source.Shape()) {
			return fmt.Errorf("parameter %q: shape mismatch: expected %v, got %v",
				name, target.Shape(), source.Shape())
		}
		if target.DType() != source.DType() {
			return fmt.Errorf("parameter %q: dtype mismatch: expected %s, got %s",
				name, target.DType(), source.DType())
		}
	}

	for _, name := range dst.keys {
		if err := dst.entries[name].CopyFrom(src.entries[name]); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return nil
}
