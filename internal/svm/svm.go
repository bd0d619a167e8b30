// Package svm implements the per-class hinge-loss SVM trainer (Adam
// optimiser, class-balanced weighting, specificity/recall/F1-driven
// early stopping, collapse detection, degenerate-fit restarts) and its
// One-vs-All and incremental wrappers. It is a from-scratch linear SVM
// in a small-struct, explicit-loop style, built on stdlib
// math/rand/v2.
package svm

import (
	"math"
	"math/rand/v2"

	"github.com/example/voicebio/internal/config"
)

// Classifier is one trained binary hyperplane.
type Classifier struct {
	ClassID int32
	Weights []float64
	Bias    float64
}

// Result is the outcome of training one binary classifier.
type Result struct {
	Classifier Classifier
	Degenerate bool
	Epochs     int
}

// adamState holds the first/second moment estimates for one parameter
// vector plus the shared step counter.
type adamState struct {
	m, v   []float64
	mb, vb float64
	t      int
}

func newAdamState(dim int) *adamState {
	return &adamState{m: make([]float64, dim), v: make([]float64, dim)}
}

// TrainBinary fits w,b to minimise hinge loss with L2 regularisation
// over X (n x dim) against labels y (+1/-1).
func TrainBinary(X [][]float64, y []int8, dim int, cfg config.SVMConfig) Result {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1|1))

	posWeight, negWeight, minorityHeavy := classWeights(y, cfg.Weighting)
	patience := cfg.Patience
	if minorityHeavy {
		patience = cfg.PatienceMinority
	}

	restarts := 0
	for {
		result := trainOnce(X, y, dim, cfg, posWeight, negWeight, patience, rng)
		if !isDegenerate(result.Classifier, X, y) || restarts >= cfg.MaxRestarts {
			result.Degenerate = isDegenerate(result.Classifier, X, y)
			return result
		}
		restarts++
	}
}

func trainOnce(X [][]float64, y []int8, dim int, cfg config.SVMConfig, posWeight, negWeight float64, patience int, rng *rand.Rand) Result {
	w := xavierInit(dim, rng)
	b := 0.0
	adamW := newAdamState(dim)
	adamB := &adamState{}

	bestW := append([]float64(nil), w...)
	bestB := b
	bestScore := math.Inf(-1)
	noImprove := 0
	epoch := 0

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}

	for epoch = 1; epoch <= cfg.EpochsMax; epoch++ {
		rng.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

		for start := 0; start < len(indices); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(indices))
			gradW, gradB := batchGradient(X, y, w, b, indices[start:end], posWeight, negWeight, cfg.C)
			adamStep(w, adamW, gradW, cfg)
			b = adamStepScalar(b, adamB, gradB, cfg)
		}

		spec, recall, precision, f1 := evaluate(X, y, w, b)
		collapsed := recall >= cfg.CollapseRecall && spec < cfg.CollapseFloor

		if !collapsed {
			score := compositeScore(spec, recall, precision, f1, cfg.Thresholds)
			if score > bestScore {
				bestScore = score
				bestW = append(bestW[:0], w...)
				bestB = b
				noImprove = 0
			} else {
				noImprove++
			}
		} else {
			noImprove++
		}

		if epoch >= cfg.MinEpochs && noImprove >= patience {
			break
		}
	}

	return Result{
		Classifier: Classifier{Weights: bestW, Bias: bestB},
		Epochs:     epoch,
	}
}

func xavierInit(dim int, rng *rand.Rand) []float64 {
	std := math.Sqrt(2.0 / float64(dim+1))
	w := make([]float64, dim)
	for i := range w {
		w[i] = rng.NormFloat64() * std
	}
	return w
}

// batchGradient sums the hinge sub-gradient (plus L2 term) over one
// mini-batch, weighted per sample by its class weight.
func batchGradient(X [][]float64, y []int8, w []float64, b float64, idx []int, posWeight, negWeight, c float64) ([]float64, float64) {
	gradW := make([]float64, len(w))
	var gradB float64

	for _, i := range idx {
		x := X[i]
		yi := float64(y[i])
		weight := negWeight
		if y[i] > 0 {
			weight = posWeight
		}

		margin := yi * (dot(w, x) + b)
		if margin < 1 {
			for j, xj := range x {
				gradW[j] += -yi * xj * weight
			}
			gradB += -yi * weight
		}
	}

	n := float64(len(idx))
	for j := range gradW {
		gradW[j] = gradW[j]/n + w[j]/c
	}
	gradB /= n
	return gradW, gradB
}

func adamStep(w []float64, s *adamState, grad []float64, cfg config.SVMConfig) {
	s.t++
	beta1, beta2, eps := cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEpsilon
	biasCorr1 := 1 - math.Pow(beta1, float64(s.t))
	biasCorr2 := 1 - math.Pow(beta2, float64(s.t))

	for j, g := range grad {
		s.m[j] = beta1*s.m[j] + (1-beta1)*g
		s.v[j] = beta2*s.v[j] + (1-beta2)*g*g
		mHat := s.m[j] / biasCorr1
		vHat := s.v[j] / biasCorr2
		w[j] -= cfg.LearningRate * mHat / (math.Sqrt(vHat) + eps)
	}
}

func adamStepScalar(b float64, s *adamState, grad float64, cfg config.SVMConfig) float64 {
	s.t++
	beta1, beta2, eps := cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEpsilon
	biasCorr1 := 1 - math.Pow(beta1, float64(s.t))
	biasCorr2 := 1 - math.Pow(beta2, float64(s.t))

	s.mb = beta1*s.mb + (1-beta1)*grad
	s.vb = beta2*s.vb + (1-beta2)*grad*grad
	mHat := s.mb / biasCorr1
	vHat := s.vb / biasCorr2
	return b - cfg.LearningRate*mHat/(math.Sqrt(vHat)+eps)
}

func dot(w, x []float64) float64 {
	var sum float64
	for j, wj := range w {
		sum += wj * x[j]
	}
	return sum
}

// compositeScore prefers any epoch meeting all three floors over one
// that does not, and breaks ties within each bucket by F1.
func compositeScore(specificity, recall, precision, f1 float64, thr config.SVMThresholds) float64 {
	meetsFloors := specificity >= thr.Specificity && recall >= thr.Recall && f1 >= thr.F1
	if meetsFloors {
		return 1 + f1
	}
	return f1
}

// isDegenerate reports whether a fit is unusable: zero weight norm, or
// identical predictions for every training example.
func isDegenerate(c Classifier, X [][]float64, y []int8) bool {
	if norm(c.Weights) < 1e-8 {
		return true
	}
	if len(X) == 0 {
		return false
	}
	first := sign(dot(c.Weights, X[0]) + c.Bias)
	for _, x := range X[1:] {
		if sign(dot(c.Weights, x)+c.Bias) != first {
			return false
		}
	}
	return true
}

func norm(v []float64) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	return math.Sqrt(sumSq)
}

func sign(x float64) int8 {
	if x >= 0 {
		return 1
	}
	return -1
}
