// Package features implements the FeatureExtractor stage that turns a
// magnitude spectrogram into a fixed-dimension feature vector (mel
// filterbank -> log-DCT -> temporal statistics -> optional polynomial
// expansion -> optional L2 normalisation), built as a chain of small
// pure functions.
package features

import (
	"github.com/example/voicebio/internal/config"
	"github.com/example/voicebio/internal/spectral"
)

// Extractor turns spectrograms into feature vectors per a fixed MFCC
// configuration. Stateless and safe for concurrent use.
type Extractor struct {
	cfg config.MFCCConfig
}

// New creates an Extractor bound to the given MFCC configuration.
func New(cfg config.MFCCConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Dimension returns the feature vector length this Extractor produces.
func (e *Extractor) Dimension() int {
	d := 5 * e.cfg.NumCoefficients
	if e.cfg.UsePolyExpansion {
		d *= 2
	}
	return d
}

// Extract runs the full pipeline over a spectrogram computed at
// sampleRate and returns the final feature vector.
func (e *Extractor) Extract(spec spectral.Spectrogram, sampleRate int) []float64 {
	mfcc := mfccMatrix(spec, sampleRate, e.cfg.NumFilters, e.cfg.NumCoefficients, e.cfg.FMin, e.cfg.FMax)
	v := temporalStats(mfcc)

	if e.cfg.UsePolyExpansion {
		v = polyExpand(v)
	}
	if e.cfg.UseL2 {
		v = l2Normalize(v)
	}
	return v
}
