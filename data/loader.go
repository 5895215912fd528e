package data

import (
	"fmt"
	"math/rand"

	"github.com/robustfl/flsim/tensor"
)

// Batch is one mini-batch of training or test data.
type Batch struct {
	Inputs  *tensor.Tensor[float32] // [batch_size, num_features]
	Targets *tensor.Tensor[int32]   // [batch_size]
	Size    int
}

// Loader yields a dataset as a fixed sequence of mini-batches.
//
// Batches are materialized once at construction in a deterministic order, so
// two iterations over the same loader see identical data. The last batch may
// be smaller if the dataset does not divide evenly.
type Loader struct {
	dataset   *Dataset
	batchSize int
	batches   []*Batch
}

// NewLoader creates a loader over the dataset in sample order.
func NewLoader(dataset *Dataset, batchSize int) (*Loader, error) {
	return newLoader(dataset, batchSize, nil)
}

// NewShuffledLoader creates a loader over a permutation of the dataset drawn
// from the supplied generator.
func NewShuffledLoader(dataset *Dataset, batchSize int, rng *rand.Rand) (*Loader, error) {
	return newLoader(dataset, batchSize, rng.Perm(dataset.Len()))
}

func newLoader(dataset *Dataset, batchSize int, order []int) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("invalid batch size: %d", batchSize)
	}
	if dataset.Len() == 0 {
		return nil, fmt.Errorf("empty dataset")
	}

	if order == nil {
		order = make([]int, dataset.Len())
		for i := range order {
			order[i] = i
		}
	}

	numFeatures := dataset.NumFeatures()
	n := len(order)
	batches := make([]*Batch, 0, (n+batchSize-1)/batchSize)

	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		size := end - start

		inputs := tensor.Zeros[float32](tensor.Shape{size, numFeatures})
		targets := tensor.Zeros[int32](tensor.Shape{size})
		in, tg := inputs.Data(), targets.Data()
		for row, pos := range order[start:end] {
			copy(in[row*numFeatures:(row+1)*numFeatures], dataset.Features[pos])
			tg[row] = dataset.Labels[pos]
		}
		batches = append(batches, &Batch{Inputs: inputs, Targets: targets, Size: size})
	}

	return &Loader{dataset: dataset, batchSize: batchSize, batches: batches}, nil
}

// Batches returns the loader's batches in iteration order.
func (l *Loader) Batches() []*Batch {
	return l.batches
}

// Dataset returns the dataset the loader was built from.
func (l *Loader) Dataset() *Dataset {
	return l.dataset
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// Len returns the total number of samples.
func (l *Loader) Len() int {
	return l.dataset.Len()
}

// NumBatches returns the number of batches.
func (l *Loader) NumBatches() int {
	return len(l.batches)
}
