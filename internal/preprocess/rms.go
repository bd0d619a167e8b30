package preprocess

import "math"

// rmsEpsilon guards against division by a near-silent signal.
const rmsEpsilon = 1e-10

// NormalizeRMS scales x so its RMS energy matches targetRMS. Pure
// function; returns a new slice and never mutates x. If the input's
// RMS is at or below rmsEpsilon, x is returned unchanged.
func NormalizeRMS(x []float64, targetRMS float64) []float64 {
	r := rms(x)
	if r <= rmsEpsilon {
		return x
	}
	scale := targetRMS / r
	out := make([]float64, len(x))
	for i, s := range x {
		out[i] = s * scale
	}
	return out
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range x {
		sumSq += s * s
	}
	return math.Sqrt(sumSq / float64(len(x)))
}
