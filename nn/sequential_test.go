package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robustfl/flsim/tensor"
)

func newTestNet(seed int64) *Sequential {
	rng := rand.New(rand.NewSource(seed))
	return NewSequential().
		Add("fc1", NewLinear(4, 3, rng)).
		Add("relu", NewReLU()).
		Add("fc2", NewLinear(3, 2, rng))
}

func TestSequentialStateDictKeys(t *testing.T) {
	net := newTestNet(1)
	sd := net.StateDict()

	assert.Equal(t, []string{"fc1.weight", "fc1.bias", "fc2.weight", "fc2.bias"}, sd.Keys())

	// StateDict exposes the live buffers, not copies.
	raw, ok := sd.Get("fc1.weight")
	require.True(t, ok)
	assert.Same(t, net.Parameters()[0].Tensor().Raw(), raw)
}

func TestSequentialForwardBackwardShapes(t *testing.T) {
	net := newTestNet(1)

	input := tensor.Randn(tensor.Shape{5, 4}, rand.New(rand.NewSource(2)))
	out := net.Forward(input)
	assert.Equal(t, tensor.Shape{5, 2}, out.Shape())

	dx := net.Backward(tensor.Zeros[float32](tensor.Shape{5, 2}))
	assert.Equal(t, tensor.Shape{5, 4}, dx.Shape())

	for _, p := range net.Parameters() {
		require.NotNil(t, p.Grad())
		assert.True(t, p.Grad().Shape().Equal(p.Tensor().Shape()))
	}
}

func TestSequentialLoadStateDict(t *testing.T) {
	src := newTestNet(1)
	dst := newTestNet(2)

	require.NoError(t, dst.LoadStateDict(src.StateDict().Clone()))

	for _, key := range src.StateDict().Keys() {
		want, _ := src.StateDict().Get(key)
		got, _ := dst.StateDict().Get(key)
		assert.Equal(t, want.Data(), got.Data(), key)
	}
}

func TestSequentialLoadStateDictKeyMismatch(t *testing.T) {
	net := newTestNet(1)

	sd := net.StateDict().Clone()
	extra := tensor.Zeros[float32](tensor.Shape{1})
	sd.Set("fc3.weight", extra.Raw())

	err := net.LoadStateDict(sd)
	require.Error(t, err)

	var mismatch *KeyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"fc3.weight"}, mismatch.Unexpected)
	assert.Empty(t, mismatch.Missing)
}

func TestSequentialLoadFailureLeavesParametersUnchanged(t *testing.T) {
	net := newTestNet(1)
	before := net.StateDict().Clone()

	// Matching keys, one wrong shape: validation must reject the whole load
	// before touching any buffer.
	sd := net.StateDict().Clone()
	bad := tensor.Full[float32](tensor.Shape{1}, 123)
	sd.Set("fc2.bias", bad.Raw())

	err := net.LoadStateDict(sd)
	require.Error(t, err)

	after := net.StateDict()
	for _, key := range before.Keys() {
		want, _ := before.Get(key)
		got, _ := after.Get(key)
		assert.Equal(t, want.Data(), got.Data(), key)
	}
}

func TestSequentialLoadMissingKey(t *testing.T) {
	net := newTestNet(1)

	sd := NewStateDict()
	raw, _ := net.StateDict().Get("fc1.weight")
	sd.Set("fc1.weight", raw.Clone())

	err := net.LoadStateDict(sd)
	var mismatch *KeyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"fc1.bias", "fc2.bias", "fc2.weight"}, mismatch.Missing)
}

func TestSequentialAddValidation(t *testing.T) {
	assert.Panics(t, func() {
		NewSequential().Add("a.b", NewReLU())
	})
	assert.Panics(t, func() {
		NewSequential().Add("x", NewReLU()).Add("x", NewReLU())
	})
}

func TestStateDictCloneIsDeep(t *testing.T) {
	net := newTestNet(1)
	clone := net.StateDict().Clone()

	live, _ := net.StateDict().Get("fc1.bias")
	live.AsFloat32()[0] = 42

	copied, _ := clone.Get("fc1.bias")
	assert.NotEqual(t, float32(42), copied.AsFloat32()[0])
}
