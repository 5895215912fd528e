// Package metrics computes the classification metrics a federated client
// reports after evaluation: accuracy, confusion matrix, per-class precision
// and recall, and a human-readable classification report.
package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Accuracy returns the percentage of predictions matching the true labels.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) != len(yPred) {
		panic(fmt.Sprintf("metrics: %d true labels but %d predictions", len(yTrue), len(yPred)))
	}
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return 100 * float64(correct) / float64(len(yTrue))
}

// ConfusionMatrix builds the confusion matrix for a multi-class problem:
// rows are true classes, columns predicted classes.
//
// numClasses fixes the matrix dimension; pass 0 to infer it as one more than
// the largest label observed on either axis.
func ConfusionMatrix(yTrue, yPred []int, numClasses int) *mat.Dense {
	if len(yTrue) != len(yPred) {
		panic(fmt.Sprintf("metrics: %d true labels but %d predictions", len(yTrue), len(yPred)))
	}

	if numClasses <= 0 {
		for i := range yTrue {
			if yTrue[i] >= numClasses {
				numClasses = yTrue[i] + 1
			}
			if yPred[i] >= numClasses {
				numClasses = yPred[i] + 1
			}
		}
	}
	if numClasses <= 0 {
		numClasses = 1
	}

	cm := mat.NewDense(numClasses, numClasses, nil)
	for i := range yTrue {
		cm.Set(yTrue[i], yPred[i], cm.At(yTrue[i], yPred[i])+1)
	}
	return cm
}

// ClassPrecision computes per-class precision from a confusion matrix:
// the diagonal entry divided by the column sum (predicted-as-class total).
//
// Classes never predicted yield NaN, which callers must treat as "undefined",
// not as an error.
func ClassPrecision(cm *mat.Dense) []float64 {
	_, cols := cm.Dims()
	precision := make([]float64, cols)
	for c := 0; c < cols; c++ {
		colSum := mat.Sum(cm.ColView(c))
		precision[c] = cm.At(c, c) / colSum
	}
	return precision
}

// ClassRecall computes per-class recall from a confusion matrix:
// the diagonal entry divided by the row sum (true-class total).
//
// Classes absent from the true labels yield NaN.
func ClassRecall(cm *mat.Dense) []float64 {
	rows, _ := cm.Dims()
	recall := make([]float64, rows)
	for r := 0; r < rows; r++ {
		rowSum := mat.Sum(cm.RowView(r))
		recall[r] = cm.At(r, r) / rowSum
	}
	return recall
}
