package svm

import (
	"sort"

	"github.com/example/voicebio/internal/config"
)

// TrainOneVsAll constructs one binary classifier per distinct label in
// X/labels: for each class k, +1 labels for samples of class k and -1
// for everything else.
func TrainOneVsAll(X [][]float64, labels []int32, dim int, cfg config.SVMConfig) map[int32]Result {
	classes := distinctClasses(labels)
	out := make(map[int32]Result, len(classes))

	for _, k := range classes {
		y := make([]int8, len(labels))
		for i, label := range labels {
			if label == k {
				y[i] = 1
			} else {
				y[i] = -1
			}
		}
		result := TrainBinary(X, y, dim, cfg)
		result.Classifier.ClassID = k
		out[k] = result
	}
	return out
}

func distinctClasses(labels []int32) []int32 {
	seen := make(map[int32]bool)
	var classes []int32
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}
