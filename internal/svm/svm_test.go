package svm

import (
	"math"
	"testing"

	"github.com/example/voicebio/internal/config"
)

func separableDataset() ([][]float64, []int32) {
	var X [][]float64
	var labels []int32
	for i := range 20 {
		X = append(X, []float64{10 + float64(i)*0.1, 0})
		labels = append(labels, 1)
	}
	for i := range 20 {
		X = append(X, []float64{-10 - float64(i)*0.1, 0})
		labels = append(labels, 0)
	}
	return X, labels
}

func fastConfig() config.SVMConfig {
	cfg := config.DefaultConfig().SVM
	cfg.EpochsMax = 300
	cfg.MinEpochs = 20
	cfg.Patience = 30
	cfg.PatienceMinority = 30
	cfg.BatchSize = 8
	return cfg
}

// TestTrainOneVsAllSeparableAchievesHighAccuracy checks that two
// linearly separable classes train to F1 >= 0.99 on the training set
// with |b| < 5.
func TestTrainOneVsAllSeparableAchievesHighAccuracy(t *testing.T) {
	X, labels := separableDataset()
	cfg := fastConfig()

	results := TrainOneVsAll(X, labels, 2, cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 classifiers, got %d", len(results))
	}

	for k, res := range results {
		if math.Abs(res.Classifier.Bias) >= 5 {
			t.Errorf("class %d: |bias| = %f, want < 5", k, math.Abs(res.Classifier.Bias))
		}

		y := make([]int8, len(labels))
		for i, label := range labels {
			if label == k {
				y[i] = 1
			} else {
				y[i] = -1
			}
		}
		_, _, _, f1 := evaluate(X, y, res.Classifier.Weights, res.Classifier.Bias)
		if f1 < 0.99 {
			t.Errorf("class %d: f1 = %f, want >= 0.99", k, f1)
		}
	}
}

func TestTrainBinaryIsDeterministicGivenSeed(t *testing.T) {
	X, labels := separableDataset()
	cfg := fastConfig()

	y := make([]int8, len(labels))
	for i, label := range labels {
		if label == 1 {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}

	a := TrainBinary(X, y, 2, cfg)
	b := TrainBinary(X, y, 2, cfg)

	if a.Classifier.Bias != b.Classifier.Bias {
		t.Fatalf("expected identical bias across runs with the same seed")
	}
	for i := range a.Classifier.Weights {
		if a.Classifier.Weights[i] != b.Classifier.Weights[i] {
			t.Fatalf("expected identical weights across runs with the same seed")
		}
	}
}

func TestIsDegenerateDetectsZeroNorm(t *testing.T) {
	c := Classifier{Weights: []float64{0, 0, 0}, Bias: 0}
	X := [][]float64{{1, 2, 3}}
	y := []int8{1}
	if !isDegenerate(c, X, y) {
		t.Fatal("expected near-zero weight norm to be flagged degenerate")
	}
}

func TestIsDegenerateDetectsUniformPredictions(t *testing.T) {
	c := Classifier{Weights: []float64{1, 0}, Bias: 100}
	X := [][]float64{{1, 0}, {-1, 0}, {2, 0}}
	y := []int8{1, -1, 1}
	if !isDegenerate(c, X, y) {
		t.Fatal("expected uniform predictions across all samples to be flagged degenerate")
	}
}

func TestAveragePosNegRatio(t *testing.T) {
	counts := map[int32]int{1: 10, 2: 10}
	ratio := AveragePosNegRatio(counts, 40)
	want := 3.0 // (30/10 + 30/10) / 2
	if math.Abs(ratio-want) > 1e-9 {
		t.Fatalf("AveragePosNegRatio() = %f, want %f", ratio, want)
	}
}

func TestTrainIncrementalAssignsClassID(t *testing.T) {
	positives := [][]float64{{1, 0}, {1.1, 0}, {0.9, 0}}
	negativePool := make([][]float64, 50)
	for i := range negativePool {
		negativePool[i] = []float64{-1 - float64(i)*0.01, 0}
	}

	cfg := fastConfig()
	result := TrainIncremental(5, positives, negativePool, 2.0, 2, cfg)

	if result.Classifier.ClassID != 5 {
		t.Fatalf("expected ClassID 5, got %d", result.Classifier.ClassID)
	}
}
