// Package attack implements the label-flipping data poisoning a malicious
// federated client applies to its own training partition.
package attack

import (
	"math/rand"

	"github.com/robustfl/flsim/data"
)

// Replacement maps an original label to its poisoned value. It receives the
// set of label values present in the dataset so strategies can pick targets
// relative to the label space.
type Replacement func(label int32, classes []int32) int32

// ReplaceXWithY flips every selected sample labeled x to y and leaves other
// labels alone. The classic targeted label-flipping strategy.
func ReplaceXWithY(x, y int32) Replacement {
	return func(label int32, _ []int32) int32 {
		if label == x {
			return y
		}
		return label
	}
}

// ReplaceWithRandom relabels every selected sample with a class drawn
// uniformly from the label set, excluding the true label when more than one
// class exists.
func ReplaceWithRandom(rng *rand.Rand) Replacement {
	return func(label int32, classes []int32) int32 {
		if len(classes) < 2 {
			return label
		}
		for {
			candidate := classes[rng.Intn(len(classes))]
			if candidate != label {
				return candidate
			}
		}
	}
}

// ApplyLabelReplacement returns a copy of the dataset in which a fraction of
// samples (intensity, clamped to [0, 1]) have their labels rewritten by the
// replacement strategy. Sample selection is uniform without replacement,
// driven by the supplied generator. Feature vectors are shared with the
// input dataset; only labels are copied and rewritten.
func ApplyLabelReplacement(ds *data.Dataset, repl Replacement, intensity float64, rng *rand.Rand) *data.Dataset {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}

	poisoned := ds.Clone()
	classes := ds.Classes()

	numPoisoned := int(float64(ds.Len())*intensity + 0.5)
	for _, idx := range rng.Perm(ds.Len())[:numPoisoned] {
		poisoned.Labels[idx] = repl(poisoned.Labels[idx], classes)
	}
	return poisoned
}
