package client

import (
	"gonum.org/v1/gonum/mat"

	"github.com/robustfl/flsim/metrics"
	"github.com/robustfl/flsim/nn"
)

// TestResult holds the metrics of one evaluation pass.
type TestResult struct {
	// Accuracy is the overall accuracy in percent.
	Accuracy float64

	// Loss is the loss summed over all test batches.
	Loss float64

	// Precision and Recall are per-class values indexed by class label.
	// Entries are NaN for classes absent from predictions or true labels.
	Precision []float64
	Recall    []float64

	// ConfusionMatrix has true classes as rows, predicted classes as columns.
	ConfusionMatrix *mat.Dense
}

// Test evaluates the network on the client's test partition and returns the
// computed metrics. No gradients are accumulated. When log is set, the full
// evaluation report is emitted at debug level.
func (c *Client) Test(log bool) *TestResult {
	c.net.SetMode(nn.Eval)

	yTrue := make([]int, 0, c.testLoader.Len())
	yPred := make([]int, 0, c.testLoader.Len())
	var totalLoss float64

	for _, batch := range c.testLoader.Batches() {
		logits := c.net.Forward(batch.Inputs)
		lossVal, _ := c.loss.Forward(logits, batch.Targets)
		totalLoss += float64(lossVal)

		targets := batch.Targets.Data()
		for i, pred := range logits.ArgmaxRows() {
			yTrue = append(yTrue, int(targets[i]))
			yPred = append(yPred, pred)
		}
	}

	cm := metrics.ConfusionMatrix(yTrue, yPred, 0)
	result := &TestResult{
		Accuracy:        metrics.Accuracy(yTrue, yPred),
		Loss:            totalLoss,
		Precision:       metrics.ClassPrecision(cm),
		Recall:          metrics.ClassRecall(cm),
		ConfusionMatrix: cm,
	}

	if log {
		c.logger.Debugf("Test accuracy: %d/%d (%.2f%%), summed loss: %.4f",
			correctCount(yTrue, yPred), len(yTrue), result.Accuracy, result.Loss)
		c.logger.Debugf("Classification report:\n%s", metrics.ClassificationReport(yTrue, yPred))
		c.logger.Debugf("Confusion matrix:\n%v", mat.Formatted(cm))
		c.logger.Debugf("Per-class precision: %v", result.Precision)
		c.logger.Debugf("Per-class recall: %v", result.Recall)
	}
	return result
}

func correctCount(yTrue, yPred []int) int {
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return correct
}
