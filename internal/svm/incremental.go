package svm

import (
	"math/rand/v2"

	"github.com/example/voicebio/internal/config"
)

// AveragePosNegRatio returns the mean neg/pos ratio across a fleet of
// already-trained classifiers, given each class's sample count and the
// total sample count.
func AveragePosNegRatio(classCounts map[int32]int, total int) float64 {
	if len(classCounts) == 0 {
		return 1
	}
	var sum float64
	for _, pos := range classCounts {
		neg := total - pos
		if pos > 0 {
			sum += float64(neg) / float64(pos)
		}
	}
	return sum / float64(len(classCounts))
}

// TrainIncremental trains only the new class k*'s binary classifier.
// Negatives are a seed-controlled, without-replacement uniform subsample of
// negativePool sized so that neg/pos matches targetRatio. Existing
// classifiers are left untouched by this call — the caller commits the
// new classifier alone via ModelStore.AddClass.
func TrainIncremental(newClassID int32, positives, negativePool [][]float64, targetRatio float64, dim int, cfg config.SVMConfig) Result {
	negCount := int(float64(len(positives)) * targetRatio)
	negCount = min(negCount, len(negativePool))
	if negCount < 1 && len(negativePool) > 0 {
		negCount = 1
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1|2))
	negatives := sampleWithoutReplacement(negativePool, negCount, rng)

	X := make([][]float64, 0, len(positives)+len(negatives))
	y := make([]int8, 0, len(positives)+len(negatives))
	for _, x := range positives {
		X = append(X, x)
		y = append(y, 1)
	}
	for _, x := range negatives {
		X = append(X, x)
		y = append(y, -1)
	}

	result := TrainBinary(X, y, dim, cfg)
	result.Classifier.ClassID = newClassID
	return result
}

func sampleWithoutReplacement(pool [][]float64, n int, rng *rand.Rand) [][]float64 {
	if n >= len(pool) {
		out := make([][]float64, len(pool))
		copy(out, pool)
		return out
	}
	idx := make([]int, len(pool))
	for i := range idx {
		idx[i] = i
	}
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	out := make([][]float64, n)
	for i := range n {
		out[i] = pool[idx[i]]
	}
	return out
}
