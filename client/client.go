// Package client implements a simulated federated-learning client.
//
// A Client owns a local network, trains it on its own data partition under a
// configurable objective, optionally poisons its own training labels, and
// exchanges parameter sets with an external aggregator through state dicts.
// There is no transport here; an experiment driver moves state dicts between
// clients directly.
package client

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/robustfl/flsim/attack"
	"github.com/robustfl/flsim/config"
	"github.com/robustfl/flsim/data"
	"github.com/robustfl/flsim/nn"
	"github.com/robustfl/flsim/optim"
	"github.com/robustfl/flsim/serialization"
	"github.com/robustfl/flsim/tensor"
)

// Client is one simulated federated participant.
//
// All randomness (weight init, batch shuffling, poison selection) flows
// through the client's own generator, so a fixed seed makes the client fully
// deterministic.
type Client struct {
	args *config.Arguments
	idx  int

	net       nn.Module
	loss      nn.Loss
	optimizer *optim.SGD
	scheduler *optim.MinCapableStepLR
	mu        float32

	rng         *rand.Rand
	trainLoader *data.Loader
	testLoader  *data.Loader

	logger logrus.FieldLogger
}

// New creates a client with index idx over its train and test partitions.
//
// The network is built from the configured factory with weights drawn from a
// generator seeded with seed, then replaced by the shared default weights at
// <default_model_dir>/<net_name>.model when that file exists. A default file
// saved for another device is retried with the CPU-mapped reader; a missing
// file keeps the random initialization.
func New(args *config.Arguments, idx int, trainLoader, testLoader *data.Loader, seed int64) (*Client, error) {
	logger := args.Logger().WithField("client_idx", idx)
	rng := rand.New(rand.NewSource(seed))

	net := args.Net()(rng)
	if err := loadDefaultModel(net, defaultModelPath(args), logger); err != nil {
		return nil, err
	}

	optimizer := optim.NewSGD(net.Parameters(), optim.SGDConfig{
		LR:       float32(args.LearningRate()),
		Momentum: float32(args.Momentum()),
	})
	scheduler := optim.NewMinCapableStepLR(logger, optimizer,
		args.SchedulerStepSize(), float32(args.SchedulerGamma()), float32(args.MinLR()))

	return &Client{
		args:        args,
		idx:         idx,
		net:         net,
		loss:        args.Loss()(),
		optimizer:   optimizer,
		scheduler:   scheduler,
		mu:          float32(args.Mu()),
		rng:         rng,
		trainLoader: trainLoader,
		testLoader:  testLoader,
		logger:      logger,
	}, nil
}

func defaultModelPath(args *config.Arguments) string {
	return filepath.Join(args.DefaultModelDir(), args.NetName()+".model")
}

// loadDefaultModel loads shared initial weights into net. A missing file is
// logged and skipped; a device mismatch is retried with the CPU-mapped reader.
func loadDefaultModel(net nn.Module, path string, logger logrus.FieldLogger) error {
	sd, err := serialization.LoadStateDict(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warnf("Could not find default model %s, using random initialization", path)
		return nil
	case errors.Is(err, serialization.ErrDeviceMismatch):
		logger.Warnf("Default model %s was saved for another device, mapping to CPU", path)
		sd, err = serialization.LoadStateDictMapped(path)
	}
	if err != nil {
		return fmt.Errorf("failed to load default model %s: %w", path, err)
	}

	if err := net.LoadStateDict(sd); err != nil {
		return fmt.Errorf("failed to load default model %s: %w", path, err)
	}
	return nil
}

// Idx returns the client's index within the experiment.
func (c *Client) Idx() int {
	return c.idx
}

// Net returns the client's network.
func (c *Client) Net() nn.Module {
	return c.net
}

// Mu returns the proximal coefficient used by proximal objectives.
func (c *Client) Mu() float32 {
	return c.mu
}

// SetMu replaces the proximal coefficient for subsequent rounds.
func (c *Client) SetMu(mu float32) {
	c.mu = mu
}

// Parameters returns the client's parameter set by reference: the returned
// state dict holds the live buffers. Callers must copy before mutating.
func (c *Client) Parameters() *nn.StateDict {
	return c.net.StateDict()
}

// UpdateParameters replaces the client's parameters with a copy of sd under
// strict key matching. On any mismatch the previous parameters are left
// unchanged.
func (c *Client) UpdateParameters(sd *nn.StateDict) error {
	if err := c.net.LoadStateDict(sd); err != nil {
		return fmt.Errorf("failed to update parameters: %w", err)
	}
	return nil
}

// AttributeNames returns the label values present in the client's current
// training data, in first-appearance order.
func (c *Client) AttributeNames() []int32 {
	return c.trainLoader.Dataset().Classes()
}

// Poison rebuilds the training loader from a label-replaced copy of the
// current training data. Repeated calls compound: each call poisons whatever
// the previous call produced.
func (c *Client) Poison(repl attack.Replacement, intensity float64) error {
	poisoned := attack.ApplyLabelReplacement(c.trainLoader.Dataset(), repl, intensity, c.rng)
	loader, err := data.NewShuffledLoader(poisoned, c.args.BatchSize(), c.rng)
	if err != nil {
		return fmt.Errorf("failed to rebuild training loader: %w", err)
	}
	c.trainLoader = loader
	c.logger.Infof("Poisoned %.1f%% of %d training labels", intensity*100, poisoned.Len())
	return nil
}

// DiffSquaredSum returns the sum of squared element-wise parameter
// differences between this client's network and other, which must be an
// nn.Module or a *nn.StateDict. Parameters absent from either side are
// skipped.
func (c *Client) DiffSquaredSum(other any) (float64, error) {
	switch o := other.(type) {
	case nn.Module:
		return diffSquaredSum(c.net.StateDict(), o.StateDict())
	case *nn.StateDict:
		return diffSquaredSum(c.net.StateDict(), o)
	default:
		return 0, fmt.Errorf("cannot diff against %T: expected nn.Module or *nn.StateDict", other)
	}
}

func diffSquaredSum(a, b *nn.StateDict) (float64, error) {
	var total float64
	for _, name := range a.Keys() {
		mine, _ := a.Get(name)
		theirs, ok := b.Get(name)
		if !ok {
			continue
		}
		sum, err := tensor.SquaredDiffSum(mine, theirs)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", name, err)
		}
		total += sum
	}
	return total, nil
}

// SaveModel writes the client's current parameter set to
// <save_model_dir>/model_<idx>_<round>_<suffix>.model, creating the directory
// if needed, and returns the written path.
func (c *Client) SaveModel(round int, suffix string) (string, error) {
	dir := c.args.SaveModelDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create checkpoint directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("model_%d_%d_%s.model", c.idx, round, suffix))
	metadata := map[string]string{
		"client_idx": strconv.Itoa(c.idx),
		"round":      strconv.Itoa(round),
		"suffix":     suffix,
	}
	if err := serialization.SaveStateDict(path, c.net.StateDict(), c.args.NetName(), metadata); err != nil {
		return "", fmt.Errorf("failed to save checkpoint: %w", err)
	}

	c.logger.Debugf("Saved model checkpoint to %s", path)
	return path, nil
}
