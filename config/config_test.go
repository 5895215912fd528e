package config

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	args, err := New(Params{}, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultNetName, args.NetName())
	assert.Equal(t, DefaultBatchSize, args.BatchSize())
	assert.Equal(t, DefaultLearningRate, args.LearningRate())
	assert.Equal(t, DefaultMomentum, args.Momentum())
	assert.Equal(t, DefaultSchedulerStepSize, args.SchedulerStepSize())
	assert.Equal(t, DefaultMinLR, args.MinLR())
	assert.Equal(t, DefaultLogInterval, args.LogInterval())
	assert.Equal(t, DefaultStartSuffix, args.StartSuffix())
	assert.Equal(t, DefaultEndSuffix, args.EndSuffix())
	assert.Equal(t, 0.0, args.Mu())
	assert.NotNil(t, args.Logger())
	assert.NotNil(t, args.Net())
	assert.NotNil(t, args.Loss())
}

func TestNewRejectsUnknownNet(t *testing.T) {
	_, err := New(Params{NetName: "nonexistent"}, nil)
	assert.ErrorContains(t, err, "unknown network")
}

func TestNewRejectsUnknownLoss(t *testing.T) {
	_, err := New(Params{LossName: "nonexistent"}, nil)
	assert.ErrorContains(t, err, "unknown loss")
}

func TestNewRejectsNegativeMu(t *testing.T) {
	_, err := New(Params{Mu: -1}, nil)
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flsim.yaml")
	yaml := `
net_name: MNISTMLP
batch_size: 32
learning_rate: 0.05
mu: 0.1
start_suffix: s
end_suffix: e
save_model_dir: /tmp/models
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	logger := logrus.New()
	args, err := Load(path, logger)
	require.NoError(t, err)

	assert.Equal(t, "MNISTMLP", args.NetName())
	assert.Equal(t, 32, args.BatchSize())
	assert.Equal(t, 0.05, args.LearningRate())
	assert.Equal(t, 0.1, args.Mu())
	assert.Equal(t, "s", args.StartSuffix())
	assert.Equal(t, "e", args.EndSuffix())
	assert.Equal(t, "/tmp/models", args.SaveModelDir())
	// Unset values fall back to defaults.
	assert.Equal(t, DefaultMomentum, args.Momentum())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestMNISTMLPFactory(t *testing.T) {
	factory, err := NetByName("MNISTMLP")
	require.NoError(t, err)

	net := factory(rand.New(rand.NewSource(1)))
	sd := net.StateDict()
	assert.Equal(t, []string{"fc1.weight", "fc1.bias", "fc2.weight", "fc2.bias"}, sd.Keys())

	weight, ok := sd.Get("fc1.weight")
	require.True(t, ok)
	assert.Equal(t, 784*128, weight.NumElements())
}

func TestLossFactory(t *testing.T) {
	factory, err := LossByName("cross_entropy")
	require.NoError(t, err)
	assert.Equal(t, "cross_entropy", factory().Name())
}

func TestNewExperimentID(t *testing.T) {
	a := NewExperimentID()
	b := NewExperimentID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
