package nn

import (
	"fmt"
	"math"

	"github.com/robustfl/flsim/tensor"
)

// Loss computes a scalar training loss and its gradient with respect to the
// network output. Implementations must be stateless so one instance can be
// shared across rounds.
type Loss interface {
	// Forward returns the mean batch loss and the gradient of that loss with
	// respect to logits.
	Forward(logits *tensor.Tensor[float32], targets *tensor.Tensor[int32]) (float32, *tensor.Tensor[float32])

	// Name returns the loss identifier used in configuration.
	Name() string
}

// CrossEntropyLoss combines log-softmax and negative log-likelihood, the
// standard loss for multi-class classification.
//
// Forward expects logits of shape [batch, classes] and integer class targets
// of shape [batch]. The returned loss is the batch mean; the gradient is
// (softmax(logits) - onehot(targets)) / batch.
type CrossEntropyLoss struct{}

// NewCrossEntropyLoss creates a new cross-entropy loss.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Name returns "cross_entropy".
func (c *CrossEntropyLoss) Name() string {
	return "cross_entropy"
}

// Forward computes the mean cross-entropy loss and its logits gradient.
func (c *CrossEntropyLoss) Forward(logits *tensor.Tensor[float32], targets *tensor.Tensor[int32]) (float32, *tensor.Tensor[float32]) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("CrossEntropyLoss: expected 2D logits [batch, classes], got %v", shape))
	}
	batch, classes := shape[0], shape[1]
	if targets.NumElements() != batch {
		panic(fmt.Sprintf("CrossEntropyLoss: %d logits rows but %d targets", batch, targets.NumElements()))
	}

	ld := logits.Data()
	td := targets.Data()
	grad := tensor.Zeros[float32](shape)
	gd := grad.Data()

	var totalLoss float64
	for i := 0; i < batch; i++ {
		row := ld[i*classes : (i+1)*classes]
		target := int(td[i])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("CrossEntropyLoss: target %d out of range [0, %d)", target, classes))
		}

		// Stable log-softmax: shift by the row max.
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxVal))
		}
		logSumExp := math.Log(sumExp)

		totalLoss += logSumExp - float64(row[target]-maxVal)

		gradRow := gd[i*classes : (i+1)*classes]
		for j, v := range row {
			softmax := math.Exp(float64(v-maxVal)) / sumExp
			gradRow[j] = float32(softmax / float64(batch))
		}
		gradRow[target] -= 1.0 / float32(batch)
	}

	return float32(totalLoss / float64(batch)), grad
}
