package svm

import (
	"math"

	"github.com/example/voicebio/internal/config"
)

// classWeights computes the positive/negative class weights and
// reports whether the class is minority-heavy enough to
// warrant the longer patience window (ratio >= 10, the point past
// which the conservative weight would otherwise saturate at its cap).
func classWeights(y []int8, cfg config.SVMWeighting) (posWeight, negWeight float64, minorityHeavy bool) {
	var pos, neg int
	for _, yi := range y {
		if yi > 0 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 {
		return cfg.Max, 1, true
	}

	ratio := float64(neg) / float64(pos)
	if cfg.Logarithmic {
		posWeight = cfg.Conservative * math.Log(1+ratio)
	} else {
		posWeight = cfg.Conservative * ratio
	}
	posWeight = math.Min(math.Max(posWeight, cfg.Min), cfg.Max)
	return posWeight, 1, ratio >= 10
}
