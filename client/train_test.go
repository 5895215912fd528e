package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robustfl/flsim/config"
	"github.com/robustfl/flsim/nn"
	"github.com/robustfl/flsim/serialization"
)

func TestParseObjective(t *testing.T) {
	for _, name := range []string{"fedavg", "fedprox", "fedgreedy"} {
		obj, err := ParseObjective(name)
		require.NoError(t, err)
		assert.Equal(t, Objective(name), obj)
	}

	_, err := ParseObjective("fedsgd")
	assert.Error(t, err)
}

func TestTrainRejectsInvalidEpochs(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{}), 0, 1)
	_, err := c.Train(TrainConfig{Round: 0, Epochs: 0})
	assert.Error(t, err)
}

func TestTrainReturnsFinalEpochLoss(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{}), 0, 1)

	seed := int64(5)
	loss, err := c.Train(TrainConfig{Round: 0, Epochs: 2, Seed: &seed})
	require.NoError(t, err)
	assert.Greater(t, loss, 0.0)
}

func TestTrainIsDeterministicUnderFixedSeed(t *testing.T) {
	a := newToyClient(t, testArgs(t, config.Params{Momentum: 0.9}), 0, 42)
	b := newToyClient(t, testArgs(t, config.Params{Momentum: 0.9}), 1, 42)
	requireEqualParams(t, a.Parameters(), b.Parameters())

	seed := int64(1234)
	lossA, err := a.Train(TrainConfig{Round: 0, Epochs: 3, Seed: &seed})
	require.NoError(t, err)
	lossB, err := b.Train(TrainConfig{Round: 0, Epochs: 3, Seed: &seed})
	require.NoError(t, err)

	assert.Equal(t, lossA, lossB)
	requireEqualParams(t, a.Parameters(), b.Parameters())
}

func TestTrainChangesParameters(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{}), 0, 1)
	before := c.Parameters().Clone()

	seed := int64(5)
	_, err := c.Train(TrainConfig{Round: 0, Epochs: 1, Seed: &seed})
	require.NoError(t, err)

	diff, err := c.DiffSquaredSum(before)
	require.NoError(t, err)
	assert.Greater(t, diff, 0.0)
}

func TestTrainWritesRoundCheckpoints(t *testing.T) {
	args := testArgs(t, config.Params{StartSuffix: "s", EndSuffix: "e"})
	c := newToyClient(t, args, 7, 1)

	before := c.Parameters().Clone()
	seed := int64(5)
	_, err := c.Train(TrainConfig{Round: 3, Epochs: 1, Seed: &seed})
	require.NoError(t, err)

	startPath := filepath.Join(args.SaveModelDir(), "model_7_3_s.model")
	endPath := filepath.Join(args.SaveModelDir(), "model_7_3_e.model")
	for _, path := range []string{startPath, endPath} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	// The start checkpoint holds the pre-training parameters, the end
	// checkpoint the post-training ones.
	start, err := serialization.LoadStateDict(startPath)
	require.NoError(t, err)
	requireEqualParams(t, before, start)

	end, err := serialization.LoadStateDict(endPath)
	require.NoError(t, err)
	requireEqualParams(t, c.Parameters(), end)
}

func TestApplyProximal(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{Mu: 2}), 0, 1)
	c.SetMu(2)

	anchor := c.net.StateDict().Clone()
	names := parameterNames(c.net)

	// Shift every weight element by 0.5 and every bias element by -1.
	weight, _ := c.Parameters().Get("fc.weight")
	for i := range weight.AsFloat32() {
		weight.AsFloat32()[i] += 0.5
	}
	bias, _ := c.Parameters().Get("fc.bias")
	for i := range bias.AsFloat32() {
		bias.AsFloat32()[i] -= 1
	}

	penalty := c.applyProximal(anchor, names)

	// penalty = (mu/2) * (4*0.5^2 + 2*1^2) = 1 * 3
	assert.InDelta(t, 3.0, penalty, 1e-5)

	// gradient = mu * (w - w0)
	for _, param := range c.net.Parameters() {
		require.NotNil(t, param.Grad(), param.Name())
		want := float32(1.0) // 2 * 0.5
		if param.Name() == "bias" {
			want = -2.0 // 2 * -1
		}
		for _, g := range param.Grad().Data() {
			assert.InDelta(t, float64(want), float64(g), 1e-5)
		}
	}
}

func TestApplyProximalSkipsMissingAnchorEntries(t *testing.T) {
	c := newToyClient(t, testArgs(t, config.Params{Mu: 2}), 0, 1)
	c.SetMu(2)

	names := parameterNames(c.net)

	// Anchor with the weight only: the bias has no entry to pull toward.
	anchorWeight, _ := c.net.StateDict().Get("fc.weight")
	partial := nn.NewStateDict()
	partial.Set("fc.weight", anchorWeight.Clone())

	weight, _ := c.Parameters().Get("fc.weight")
	weight.AsFloat32()[0] += 1
	bias, _ := c.Parameters().Get("fc.bias")
	bias.AsFloat32()[0] += 1

	penalty := c.applyProximal(partial, names)
	assert.InDelta(t, 1.0, penalty, 1e-5)

	for _, param := range c.net.Parameters() {
		if param.Name() == "bias" {
			assert.Nil(t, param.Grad())
		}
	}
}

func TestTrainFedProxStaysCloserToAnchor(t *testing.T) {
	strongProx := newToyClient(t, testArgs(t, config.Params{Mu: 10, LearningRate: 0.05}), 0, 42)
	plain := newToyClient(t, testArgs(t, config.Params{LearningRate: 0.05}), 1, 42)

	anchor := strongProx.Parameters().Clone()

	seed := int64(9)
	_, err := strongProx.Train(TrainConfig{Round: 0, Epochs: 5, Objective: FedProx, Seed: &seed})
	require.NoError(t, err)
	_, err = plain.Train(TrainConfig{Round: 0, Epochs: 5, Objective: FedAvg, Seed: &seed})
	require.NoError(t, err)

	proxDist, err := strongProx.DiffSquaredSum(anchor)
	require.NoError(t, err)
	plainDist, err := plain.DiffSquaredSum(anchor)
	require.NoError(t, err)

	assert.Less(t, proxDist, plainDist)
}
