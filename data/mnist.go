package data

import (
	"fmt"

	mnist "github.com/petar/GoMNIST"
)

// LoadMNIST loads the official IDX-format MNIST dataset from dir and returns
// the train and test splits with pixel values normalized to [0, 1].
//
// Expected files in dir (gzipped, as distributed):
//
//	train-images-idx3-ubyte.gz, train-labels-idx1-ubyte.gz
//	t10k-images-idx3-ubyte.gz,  t10k-labels-idx1-ubyte.gz
func LoadMNIST(dir string) (train, test *Dataset, err error) {
	trainSet, testSet, err := mnist.Load(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load MNIST from %s: %w", dir, err)
	}

	train, err = fromMNISTSet(trainSet)
	if err != nil {
		return nil, nil, fmt.Errorf("train set: %w", err)
	}
	test, err = fromMNISTSet(testSet)
	if err != nil {
		return nil, nil, fmt.Errorf("test set: %w", err)
	}
	return train, test, nil
}

func fromMNISTSet(set *mnist.Set) (*Dataset, error) {
	if len(set.Images) != len(set.Labels) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", len(set.Images), len(set.Labels))
	}

	numPixels := set.NRow * set.NCol
	features := make([][]float32, len(set.Images))
	labels := make([]int32, len(set.Labels))

	for i, img := range set.Images {
		pixels := make([]float32, numPixels)
		for j, p := range img {
			pixels[j] = float32(p) / 255.0
		}
		features[i] = pixels
		labels[i] = int32(set.Labels[i])
	}

	return &Dataset{Features: features, Labels: labels}, nil
}
