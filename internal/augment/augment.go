// Package augment implements the Augmenter that expands one enrolment
// buffer into an ordered list of the original plus V perturbed copies
// (additive noise, gain, time-stretch), each sampled uniformly from
// configured ranges. Time-stretch uses a linear-interpolation resampler
// generalised from a fixed sample-rate conversion to an arbitrary speed
// factor, seeded via math/rand/v2's PCG source for reproducible
// variants.
package augment

import (
	"math/rand/v2"

	"github.com/example/voicebio/internal/config"
)

// Augmenter generates reproducible perturbed copies of a buffer.
type Augmenter struct {
	cfg config.AugmentConfig
}

// New creates an Augmenter bound to the given configuration.
func New(cfg config.AugmentConfig) *Augmenter {
	return &Augmenter{cfg: cfg}
}

// Generate returns a slice of len(V)+1 buffers: x unchanged followed by
// V perturbations, each the composition of additive noise, a gain
// scale, and a time-stretch resample, with parameters drawn uniformly
// from the Augmenter's configured ranges.
func (a *Augmenter) Generate(x []float64) [][]float64 {
	out := make([][]float64, 0, a.cfg.Variations+1)
	out = append(out, x)

	rng := rand.New(rand.NewPCG(a.cfg.Seed, a.cfg.Seed>>32|1))
	for range a.cfg.Variations {
		v := make([]float64, len(x))
		copy(v, x)

		v = addNoise(v, a.cfg.NoiseIntensity, rng)
		v = applyGain(v, uniform(rng, a.cfg.GainRange[0], a.cfg.GainRange[1]))
		v = timeStretch(v, uniform(rng, a.cfg.SpeedRange[0], a.cfg.SpeedRange[1]))

		out = append(out, v)
	}
	return out
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// addNoise adds white noise scaled to intensity*peak(x).
func addNoise(x []float64, intensity float64, rng *rand.Rand) []float64 {
	if intensity <= 0 {
		return x
	}
	peak := 0.0
	for _, s := range x {
		if a := abs(s); a > peak {
			peak = a
		}
	}
	scale := intensity * peak
	if scale == 0 {
		return x
	}
	out := make([]float64, len(x))
	for i, s := range x {
		out[i] = s + scale*(2*rng.Float64()-1)
	}
	return out
}

func applyGain(x []float64, gain float64) []float64 {
	out := make([]float64, len(x))
	for i, s := range x {
		out[i] = s * gain
	}
	return out
}

// timeStretch resamples x by speed, a factor in (0, inf): speed > 1
// compresses (plays faster, fewer samples), speed < 1 stretches.
// Linear interpolation generalised to an arbitrary ratio.
func timeStretch(x []float64, speed float64) []float64 {
	if speed == 1 || len(x) == 0 {
		return x
	}
	outLen := int(float64(len(x)) / speed)
	if outLen <= 0 {
		outLen = 1
	}
	out := make([]float64, outLen)
	for i := range outLen {
		srcIdx := float64(i) * speed
		idx := int(srcIdx)
		frac := srcIdx - float64(idx)
		out[i] = interpolate(x, idx, frac)
	}
	return out
}

func interpolate(x []float64, idx int, frac float64) float64 {
	if idx+1 >= len(x) {
		return x[len(x)-1]
	}
	return x[idx]*(1-frac) + x[idx+1]*frac
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
