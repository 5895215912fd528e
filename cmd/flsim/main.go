// Command flsim runs a local multi-client federated-learning experiment.
//
// Every client trains on its own IID shard of the dataset; a subset of
// clients can be configured to poison their training labels. Aggregation is
// out of scope: the driver reports per-client losses, test metrics, and
// parameter divergence from client 0, and leaves combining updates to
// external tooling.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robustfl/flsim/attack"
	"github.com/robustfl/flsim/client"
	"github.com/robustfl/flsim/config"
	"github.com/robustfl/flsim/data"
)

type experimentOptions struct {
	configPath string
	logLevel   string

	numClients int
	rounds     int
	epochs     int
	objective  string
	seed       int64

	mnistDir        string
	poisonedClients int
	poisonIntensity float64
}

func main() {
	opts := &experimentOptions{}

	rootCmd := &cobra.Command{
		Use:   "flsim",
		Short: "Simulated federated-learning clients for robustness research",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (YAML); defaults apply when omitted")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.IntVarP(&opts.numClients, "clients", "n", 4, "number of simulated clients")
	flags.IntVarP(&opts.rounds, "rounds", "r", 3, "number of federated rounds")
	flags.IntVarP(&opts.epochs, "epochs", "e", 1, "local epochs per round")
	flags.StringVar(&opts.objective, "objective", string(client.FedAvg), "training objective (fedavg, fedprox, fedgreedy)")
	flags.Int64Var(&opts.seed, "seed", 42, "experiment seed")
	flags.StringVar(&opts.mnistDir, "mnist-dir", "", "directory with MNIST IDX files; synthetic data when omitted")
	flags.IntVar(&opts.poisonedClients, "poisoned-clients", 0, "number of clients that poison their labels")
	flags.Float64Var(&opts.poisonIntensity, "poison-intensity", 0.5, "fraction of labels each poisoned client flips")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExperiment(opts *experimentOptions) error {
	logger := logrus.New()
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
	}
	logger.SetLevel(level)

	objective, err := client.ParseObjective(opts.objective)
	if err != nil {
		return err
	}
	if opts.poisonedClients < 0 || opts.poisonedClients > opts.numClients {
		return fmt.Errorf("poisoned-clients must be between 0 and %d, got %d", opts.numClients, opts.poisonedClients)
	}

	var args *config.Arguments
	if opts.configPath != "" {
		args, err = config.Load(opts.configPath, logger)
	} else {
		args, err = config.New(config.Params{}, logger)
	}
	if err != nil {
		return err
	}

	experimentID := config.NewExperimentID()
	logger.WithFields(logrus.Fields{
		"experiment_id": experimentID,
		"clients":       opts.numClients,
		"rounds":        opts.rounds,
		"objective":     objective,
	}).Info("Starting experiment")

	rng := rand.New(rand.NewSource(opts.seed))
	train, test, err := loadData(opts, rng)
	if err != nil {
		return err
	}

	clients, err := buildClients(args, opts, train, test, rng)
	if err != nil {
		return err
	}

	for _, cl := range clients[:opts.poisonedClients] {
		if err := cl.Poison(attack.ReplaceWithRandom(rng), opts.poisonIntensity); err != nil {
			return fmt.Errorf("client %d: %w", cl.Idx(), err)
		}
	}

	for round := 0; round < opts.rounds; round++ {
		for _, cl := range clients {
			loss, err := cl.Train(client.TrainConfig{
				Round:     round,
				Epochs:    opts.epochs,
				Objective: objective,
			})
			if err != nil {
				return fmt.Errorf("client %d, round %d: %w", cl.Idx(), round, err)
			}

			result := cl.Test(logger.IsLevelEnabled(logrus.DebugLevel))
			divergence, err := cl.DiffSquaredSum(clients[0].Parameters())
			if err != nil {
				return fmt.Errorf("client %d, round %d: %w", cl.Idx(), round, err)
			}

			logger.WithFields(logrus.Fields{
				"round":      round,
				"client_idx": cl.Idx(),
				"train_loss": fmt.Sprintf("%.4f", loss),
				"accuracy":   fmt.Sprintf("%.2f%%", result.Accuracy),
				"divergence": fmt.Sprintf("%.4f", divergence),
			}).Info("Round complete")
		}
	}

	logger.WithField("experiment_id", experimentID).Info("Experiment finished")
	return nil
}

func loadData(opts *experimentOptions, rng *rand.Rand) (train, test *data.Dataset, err error) {
	if opts.mnistDir != "" {
		return data.LoadMNIST(opts.mnistDir)
	}
	train = syntheticBlobs(2000, 784, 10, rng)
	test = syntheticBlobs(400, 784, 10, rng)
	return train, test, nil
}

func buildClients(args *config.Arguments, opts *experimentOptions, train, test *data.Dataset, rng *rand.Rand) ([]*client.Client, error) {
	shards, err := data.PartitionIID(train, opts.numClients, rng)
	if err != nil {
		return nil, err
	}

	testLoader, err := data.NewLoader(test, args.BatchSize())
	if err != nil {
		return nil, err
	}

	clients := make([]*client.Client, opts.numClients)
	for i, shard := range shards {
		trainLoader, err := data.NewShuffledLoader(shard, args.BatchSize(), rng)
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", i, err)
		}
		clients[i], err = client.New(args, i, trainLoader, testLoader, rng.Int63())
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", i, err)
		}
	}
	return clients, nil
}

// syntheticBlobs generates a linearly separable stand-in for MNIST: one
// Gaussian blob per class in feature space.
func syntheticBlobs(samples, features, classes int, rng *rand.Rand) *data.Dataset {
	featuresOut := make([][]float32, samples)
	labels := make([]int32, samples)
	for i := range featuresOut {
		class := rng.Intn(classes)
		vec := make([]float32, features)
		for j := range vec {
			vec[j] = float32(rng.NormFloat64() * 0.1)
		}
		// Shift a class-specific block of coordinates.
		block := features / classes
		for j := class * block; j < (class+1)*block && j < features; j++ {
			vec[j] += 1.0
		}
		featuresOut[i] = vec
		labels[i] = int32(class)
	}
	return &data.Dataset{Features: featuresOut, Labels: labels}
}
