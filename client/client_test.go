package client

import (
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robustfl/flsim/attack"
	"github.com/robustfl/flsim/config"
	"github.com/robustfl/flsim/data"
	"github.com/robustfl/flsim/nn"
	"github.com/robustfl/flsim/serialization"
	"github.com/robustfl/flsim/tensor"
)

func init() {
	config.RegisterNet("toynet", func(rng *rand.Rand) nn.Module {
		return nn.NewSequential().Add("fc", nn.NewLinear(2, 2, rng))
	})
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testArgs(t *testing.T, params config.Params) *config.Arguments {
	t.Helper()
	if params.NetName == "" {
		params.NetName = "toynet"
	}
	if params.BatchSize == 0 {
		params.BatchSize = 4
	}
	if params.DefaultModelDir == "" {
		params.DefaultModelDir = t.TempDir()
	}
	if params.SaveModelDir == "" {
		params.SaveModelDir = t.TempDir()
	}
	args, err := config.New(params, quietLogger())
	require.NoError(t, err)
	return args
}

// blobDataset builds a linearly separable two-class dataset: class 0 at
// (1, 0), class 1 at (0, 1), alternating.
func blobDataset(t *testing.T, n int) *data.Dataset {
	t.Helper()
	features := make([][]float32, n)
	labels := make([]int32, n)
	for i := range features {
		if i%2 == 0 {
			features[i] = []float32{1, 0}
			labels[i] = 0
		} else {
			features[i] = []float32{0, 1}
			labels[i] = 1
		}
	}
	ds, err := data.NewDataset(features, labels)
	require.NoError(t, err)
	return ds
}

func newToyClient(t *testing.T, args *config.Arguments, idx int, seed int64) *Client {
	t.Helper()
	ds := blobDataset(t, 16)
	trainLoader, err := data.NewLoader(ds, args.BatchSize())
	require.NoError(t, err)
	testLoader, err := data.NewLoader(blobDataset(t, 8), args.BatchSize())
	require.NoError(t, err)

	c, err := New(args, idx, trainLoader, testLoader, seed)
	require.NoError(t, err)
	return c
}

func requireEqualParams(t *testing.T, a, b *nn.StateDict) {
	t.Helper()
	require.Equal(t, a.Keys(), b.Keys())
	for _, key := range a.Keys() {
		wa, _ := a.Get(key)
		wb, _ := b.Get(key)
		assert.Equal(t, wa.Data(), wb.Data(), key)
	}
}

func TestNewRandomInitIsSeedDeterministic(t *testing.T) {
	a := newToyClient(t, testArgs(t, config.Params{}), 0, 42)
	b := newToyClient(t, testArgs(t, config.Params{}), 1, 42)
	requireEqualParams(t, a.Parameters(), b.Parameters())

	c := newToyClient(t, testArgs(t, config.Params{}), 2, 43)
	wa, _ := a.Parameters().Get("fc.weight")
	wc, _ := c.Parameters().Get("fc.weight")
	assert.NotEqual(t, wa.Data(), wc.Data())
}

func TestNewLoadsDefaultModel(t *testing.T) {
	args := testArgs(t, config.Params{})

	reference := args.Net()(rand.New(rand.NewSource(7)))
	path := filepath.Join(args.DefaultModelDir(), args.NetName()+".model")
	require.NoError(t, serialization.SaveStateDict(path, reference.StateDict(), args.NetName(), nil))

	c := newToyClient(t, args, 0, 1)
	requireEqualParams(t, reference.StateDict(), c.Parameters())
}

func TestNewRemapsForeignDeviceDefaultModel(t *testing.T) {
	args := testArgs(t, config.Params{})

	reference := args.Net()(rand.New(rand.NewSource(7)))
	sd := reference.StateDict().Clone()
	for _, key := range sd.Keys() {
		raw, _ := sd.Get(key)
		raw.SetDevice(tensor.CUDA)
	}
	path := filepath.Join(args.DefaultModelDir(), args.NetName()+".model")
	require.NoError(t, serialization.SaveStateDict(path, sd, args.NetName(), nil))

	c := newToyClient(t, args, 0, 1)
	requireEqualParams(t, reference.StateDict(), c.Parameters())
}

func TestNewFailsOnCorruptDefaultModel(t *testing.T) {
	args := testArgs(t, config.Params{})
	path := filepath.Join(args.DefaultModelDir(), args.NetName()+".model")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o644))

	ds := blobDataset(t, 8)
	loader, err := data.NewLoader(ds, args.BatchSize())
	require.NoError(t, err)
	_, err = New(args, 0, loader, loader, 1)
	assert.Error(t, err)
}

func TestParametersReturnsLiveBuffers(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{}), 0, 1)

	raw, ok := c.Parameters().Get("fc.bias")
	require.True(t, ok)
	raw.AsFloat32()[0] = 42

	again, _ := c.Parameters().Get("fc.bias")
	assert.Equal(t, float32(42), again.AsFloat32()[0])
}

func TestUpdateParameters(t *testing.T) {
	src := newToyClient(t, testArgs(t, config.Params{}), 0, 1)
	dst := newToyClient(t, testArgs(t, config.Params{}), 1, 2)

	require.NoError(t, dst.UpdateParameters(src.Parameters()))
	requireEqualParams(t, src.Parameters(), dst.Parameters())

	// The update copied the data: mutating the source afterwards must not
	// leak into dst.
	raw, _ := src.Parameters().Get("fc.weight")
	raw.AsFloat32()[0] += 100
	got, _ := dst.Parameters().Get("fc.weight")
	assert.NotEqual(t, raw.AsFloat32()[0], got.AsFloat32()[0])
}

func TestUpdateParametersKeyMismatchIsAtomic(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{}), 0, 1)
	before := c.Parameters().Clone()

	sd := c.Parameters().Clone()
	sd.Set("extra.weight", tensor.Zeros[float32](tensor.Shape{1}).Raw())

	err := c.UpdateParameters(sd)
	require.Error(t, err)
	var mismatch *nn.KeyMismatchError
	assert.ErrorAs(t, err, &mismatch)

	requireEqualParams(t, before, c.Parameters())
}

func TestDiffSquaredSum(t *testing.T) {
	a := newToyClient(t, testArgs(t, config.Params{}), 0, 1)
	b := newToyClient(t, testArgs(t, config.Params{}), 1, 2)
	require.NoError(t, b.UpdateParameters(a.Parameters()))

	sum, err := a.DiffSquaredSum(b.Net())
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum)

	// Perturb one element by 3: the diff becomes 9.
	raw, _ := b.Parameters().Get("fc.weight")
	raw.AsFloat32()[0] += 3

	sum, err = a.DiffSquaredSum(b.Net())
	require.NoError(t, err)
	assert.InDelta(t, 9.0, sum, 1e-4)

	sum, err = a.DiffSquaredSum(b.Parameters())
	require.NoError(t, err)
	assert.InDelta(t, 9.0, sum, 1e-4)
}

func TestDiffSquaredSumSkipsMissingNames(t *testing.T) {
	a := newToyClient(t, testArgs(t, config.Params{}), 0, 1)

	partial := nn.NewStateDict()
	raw, _ := a.Parameters().Get("fc.weight")
	partial.Set("fc.weight", raw.Clone())

	sum, err := a.DiffSquaredSum(partial)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum)
}

func TestDiffSquaredSumRejectsUnsupportedType(t *testing.T) {
	a := newToyClient(t, testArgs(t, config.Params{}), 0, 1)
	_, err := a.DiffSquaredSum("not a model")
	assert.ErrorContains(t, err, "cannot diff against")
}

func TestPoisonCompounds(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{}), 0, 1)

	require.NoError(t, c.Poison(attack.ReplaceXWithY(0, 1), 1.0))
	assert.Equal(t, []int32{1}, c.AttributeNames())

	// The second call must operate on the already poisoned labels.
	require.NoError(t, c.Poison(attack.ReplaceXWithY(1, 0), 1.0))
	assert.Equal(t, []int32{0}, c.AttributeNames())
}

func TestAttributeNames(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{}), 0, 1)
	assert.Equal(t, []int32{0, 1}, c.AttributeNames())
}

func TestSaveModelNaming(t *testing.T) {
	args := testArgs(t, config.Params{StartSuffix: "s", EndSuffix: "e"})
	c := newToyClient(t, args, 7, 1)

	path, err := c.SaveModel(3, "s")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(args.SaveModelDir(), "model_7_3_s.model"), path)

	loaded, err := serialization.LoadStateDict(path)
	require.NoError(t, err)
	requireEqualParams(t, c.Parameters(), loaded)
}
