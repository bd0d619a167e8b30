package svm

// evaluate computes specificity, recall, precision, and F1 for (w,b)
// against the full training fold, used both for early-stopping
// selection and collapse detection.
func evaluate(X [][]float64, y []int8, w []float64, b float64) (specificity, recall, precision, f1 float64) {
	var tp, tn, fp, fn int
	for i, x := range X {
		pred := sign(dot(w, x) + b)
		actual := y[i]
		switch {
		case pred > 0 && actual > 0:
			tp++
		case pred > 0 && actual < 0:
			fp++
		case pred < 0 && actual > 0:
			fn++
		default:
			tn++
		}
	}

	if tn+fp > 0 {
		specificity = float64(tn) / float64(tn+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return
}
