package client

import (
	"fmt"
	"math/rand"

	"github.com/robustfl/flsim/data"
	"github.com/robustfl/flsim/nn"
	"github.com/robustfl/flsim/optim"
	"github.com/robustfl/flsim/tensor"
)

// TrainConfig describes one local training round.
type TrainConfig struct {
	// Round is the federated round number, used in checkpoint names.
	Round int

	// Epochs is the number of local passes over the training data.
	Epochs int

	// Objective selects the training objective. Empty means FedAvg.
	Objective Objective

	// Seed, when non-nil, replaces the client's generator before training so
	// the round is reproducible independently of the client's history.
	Seed *int64
}

// Train runs one local training round and returns the mean batch loss of the
// final epoch.
//
// The round-start parameters are checkpointed with the configured start
// suffix and the post-training parameters with the end suffix. For proximal
// objectives the round-start parameters also anchor the penalty
// (mu/2)*||w - w0||^2, whose gradient mu*(w - w0) is added to each parameter
// present in the anchor snapshot.
func (c *Client) Train(cfg TrainConfig) (float64, error) {
	if cfg.Epochs <= 0 {
		return 0, fmt.Errorf("invalid epoch count: %d", cfg.Epochs)
	}
	if cfg.Objective == "" {
		cfg.Objective = FedAvg
	}
	if cfg.Seed != nil {
		c.rng = rand.New(rand.NewSource(*cfg.Seed))
	}

	var anchor *nn.StateDict
	if cfg.Objective.proximal() && c.mu > 0 {
		anchor = c.net.StateDict().Clone()
	}
	names := parameterNames(c.net)

	c.logger.Infof("Training round %d: %d epoch(s), objective %s, lr %g",
		cfg.Round, cfg.Epochs, cfg.Objective, c.optimizer.LR())

	var meanLoss float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		c.net.SetMode(nn.Train)
		if epoch == 0 {
			if _, err := c.SaveModel(cfg.Round, c.args.StartSuffix()); err != nil {
				return 0, err
			}
		}

		loader, err := data.NewShuffledLoader(c.trainLoader.Dataset(), c.args.BatchSize(), c.rng)
		if err != nil {
			return 0, fmt.Errorf("failed to shuffle training data: %w", err)
		}

		meanLoss = c.trainEpoch(loader, anchor, names, cfg.Round, epoch, epoch == cfg.Epochs-1)
		c.scheduler.Step()
	}

	if _, err := c.SaveModel(cfg.Round, c.args.EndSuffix()); err != nil {
		return 0, err
	}
	return meanLoss, nil
}

// trainEpoch runs one pass over the loader and returns the mean batch loss.
// Running-loss lines are only emitted during the final epoch, matching the
// reporting cadence the aggregator consumes.
func (c *Client) trainEpoch(loader *data.Loader, anchor *nn.StateDict, names map[*nn.Parameter]string, round, epoch int, logLosses bool) float64 {
	logInterval := c.args.LogInterval()

	var epochLoss, runningLoss float64
	runningCount := 0

	for i, batch := range loader.Batches() {
		c.optimizer.ZeroGrad()

		logits := c.net.Forward(batch.Inputs)
		lossVal, grad := c.loss.Forward(logits, batch.Targets)

		total := float64(lossVal)
		if anchor != nil {
			total += c.applyProximal(anchor, names)
		}

		c.net.Backward(grad)
		c.optimizer.Step()

		epochLoss += total
		runningLoss += total
		runningCount++
		if logLosses && runningCount == logInterval {
			c.logger.Infof("[round %d, epoch %d, batch %5d] loss: %.3f",
				round, epoch, i+1, runningLoss/float64(runningCount))
			runningLoss = 0
			runningCount = 0
		}
	}

	return epochLoss / float64(loader.NumBatches())
}

// applyProximal adds the proximal gradient mu*(w - w0) to every parameter
// whose name appears in the anchor snapshot and returns the penalty value
// (mu/2)*||w - w0||^2. Parameters without an anchor entry are skipped.
func (c *Client) applyProximal(anchor *nn.StateDict, names map[*nn.Parameter]string) float64 {
	var penalty float64
	for _, param := range c.net.Parameters() {
		w0raw, ok := anchor.Get(names[param])
		if !ok {
			continue
		}

		w := param.Tensor().Data()
		w0 := w0raw.AsFloat32()
		grad := tensor.Zeros[float32](param.Tensor().Shape())
		gd := grad.Data()
		for i := range w {
			d := w[i] - w0[i]
			penalty += float64(d) * float64(d)
			gd[i] = c.mu * d
		}
		param.AccumGrad(grad)
	}
	return float64(c.mu) / 2 * penalty
}

// parameterNames maps each trainable parameter to its state-dict name by
// matching the live tensor buffers, which StateDict exposes by reference.
func parameterNames(net nn.Module) map[*nn.Parameter]string {
	sd := net.StateDict()
	byRaw := make(map[*tensor.RawTensor]string, sd.Len())
	for _, name := range sd.Keys() {
		raw, _ := sd.Get(name)
		byRaw[raw] = name
	}

	names := make(map[*nn.Parameter]string, len(byRaw))
	for _, param := range net.Parameters() {
		if name, ok := byRaw[param.Tensor().Raw()]; ok {
			names[param] = name
		}
	}
	return names
}

// Optimizer returns the client's optimizer, mainly for inspection in
// experiment drivers.
func (c *Client) Optimizer() *optim.SGD {
	return c.optimizer
}

// Scheduler returns the client's learning-rate scheduler.
func (c *Client) Scheduler() *optim.MinCapableStepLR {
	return c.scheduler
}
