package features

import (
	"math"

	"github.com/example/voicebio/internal/spectral"
)

// logEpsilon avoids log(0) when a mel-filter energy is exactly zero.
const logEpsilon = 1e-10

// mfccMatrix computes the frames x C MFCC matrix from a spectrogram:
// mel filterbank -> log -> type-II DCT -> keep first C.
// When numCoefficients exceeds numFilters (the MFCC[0..bankSize) DCT
// output is shorter than C), the remaining coefficients are zero-filled
// rather than treated as an error — this mirrors the original reference
// implementation's config, which allows numCoefficients >= numFilters.
func mfccMatrix(spec spectral.Spectrogram, sampleRate, numFilters, numCoefficients int, fMin, fMax float64) [][]float64 {
	fb := melFilterbank(numFilters, spec.FFTSize, sampleRate, fMin, fMax)

	out := make([][]float64, len(spec.Frames))
	logEnergies := make([]float64, numFilters)
	for i, frame := range spec.Frames {
		melEnergies := applyFilterbank(fb, frame)
		for m, e := range melEnergies {
			logEnergies[m] = math.Log(e + logEpsilon)
		}
		row := make([]float64, numCoefficients)
		for c := range min(numCoefficients, numFilters) {
			for m, le := range logEnergies {
				row[c] += le * math.Cos(math.Pi/float64(numFilters)*(float64(m)+0.5)*float64(c))
			}
		}
		out[i] = row
	}
	return out
}
