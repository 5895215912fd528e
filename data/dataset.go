// Package data provides in-memory datasets and batching loaders for flsim
// clients.
package data

import (
	"fmt"
	"math/rand"
)

// Dataset is an in-memory labeled dataset: one feature vector and one integer
// class label per sample.
type Dataset struct {
	Features [][]float32
	Labels   []int32
}

// NewDataset creates a dataset from parallel feature and label slices.
func NewDataset(features [][]float32, labels []int32) (*Dataset, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("features and labels length mismatch: %d vs %d", len(features), len(labels))
	}
	return &Dataset{Features: features, Labels: labels}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Features)
}

// NumFeatures returns the feature-vector length, or 0 for an empty dataset.
func (d *Dataset) NumFeatures() int {
	if len(d.Features) == 0 {
		return 0
	}
	return len(d.Features[0])
}

// Classes returns the sorted-by-first-appearance set of label values present
// in the dataset.
func (d *Dataset) Classes() []int32 {
	seen := make(map[int32]bool)
	var classes []int32
	for _, label := range d.Labels {
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	return classes
}

// Clone returns a deep copy of the labels and a shallow copy of the feature
// vectors. Feature vectors are treated as immutable throughout flsim;
// poisoning only rewrites labels.
func (d *Dataset) Clone() *Dataset {
	labels := make([]int32, len(d.Labels))
	copy(labels, d.Labels)
	features := make([][]float32, len(d.Features))
	copy(features, d.Features)
	return &Dataset{Features: features, Labels: labels}
}

// PartitionIID splits the dataset into n near-equal shards after a uniform
// shuffle driven by the supplied generator. Each simulated client trains on
// one shard.
func PartitionIID(d *Dataset, n int, rng *rand.Rand) ([]*Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid partition count: %d", n)
	}
	if d.Len() < n {
		return nil, fmt.Errorf("cannot partition %d samples across %d clients", d.Len(), n)
	}

	perm := rng.Perm(d.Len())
	shards := make([]*Dataset, n)
	for i := range shards {
		shards[i] = &Dataset{}
	}
	for pos, idx := range perm {
		shard := shards[pos%n]
		shard.Features = append(shard.Features, d.Features[idx])
		shard.Labels = append(shard.Labels, d.Labels[idx])
	}
	return shards, nil
}
