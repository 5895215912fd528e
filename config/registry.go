package config

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/robustfl/flsim/nn"
)

// NetFactory constructs a fresh network with weights initialized from the
// supplied generator.
type NetFactory func(rng *rand.Rand) nn.Module

// LossFactory constructs a loss function.
type LossFactory func() nn.Loss

var (
	netRegistry  = make(map[string]NetFactory)
	lossRegistry = make(map[string]LossFactory)
)

// RegisterNet registers a network factory under a name. The name is also the
// stem of the shared default-weights file (<default_model_dir>/<name>.model).
func RegisterNet(name string, factory NetFactory) {
	if _, ok := netRegistry[name]; ok {
		panic(fmt.Sprintf("config: network %q registered twice", name))
	}
	netRegistry[name] = factory
}

// NetByName looks up a registered network factory.
func NetByName(name string) (NetFactory, error) {
	factory, ok := netRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %q (registered: %v)", name, registeredNets())
	}
	return factory, nil
}

func registeredNets() []string {
	names := make([]string, 0, len(netRegistry))
	for name := range netRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterLoss registers a loss-function factory under a name.
func RegisterLoss(name string, factory LossFactory) {
	if _, ok := lossRegistry[name]; ok {
		panic(fmt.Sprintf("config: loss %q registered twice", name))
	}
	lossRegistry[name] = factory
}

// LossByName looks up a registered loss factory.
func LossByName(name string) (LossFactory, error) {
	factory, ok := lossRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown loss %q", name)
	}
	return factory, nil
}

func init() {
	// Reference MLP for MNIST-shaped data: 784 -> 128 -> 10, the standard
	// simple baseline.
	RegisterNet("MNISTMLP", func(rng *rand.Rand) nn.Module {
		return nn.NewSequential().
			Add("fc1", nn.NewLinear(784, 128, rng)).
			Add("relu", nn.NewReLU()).
			Add("fc2", nn.NewLinear(128, 10, rng))
	})

	RegisterLoss("cross_entropy", func() nn.Loss {
		return nn.NewCrossEntropyLoss()
	})
}
