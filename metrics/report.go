package metrics

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ClassificationReport renders a per-class precision/recall/f1/support table
// in the familiar scikit-learn layout, followed by the overall accuracy.
func ClassificationReport(yTrue, yPred []int) string {
	cm := ConfusionMatrix(yTrue, yPred, 0)
	precision := ClassPrecision(cm)
	recall := ClassRecall(cm)
	numClasses, _ := cm.Dims()

	var b strings.Builder
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	b.WriteString("\n")

	for c := 0; c < numClasses; c++ {
		support := int(mat.Sum(cm.RowView(c)))
		f1 := f1Score(precision[c], recall[c])
		fmt.Fprintf(&b, "%12d %10s %10s %10s %10d\n",
			c, formatMetric(precision[c]), formatMetric(recall[c]), formatMetric(f1), support)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%12s %10s %10s %10.2f %10d\n", "accuracy", "", "", Accuracy(yTrue, yPred)/100, len(yTrue))
	return b.String()
}

// f1Score is the harmonic mean of precision and recall; NaN inputs or a zero
// denominator yield NaN.
func f1Score(precision, recall float64) float64 {
	if math.IsNaN(precision) || math.IsNaN(recall) || precision+recall == 0 {
		return math.NaN()
	}
	return 2 * precision * recall / (precision + recall)
}

func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
