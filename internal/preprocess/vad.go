// Package preprocess implements RMS normalisation and the adaptive
// multi-feature voice activity gate: a config struct, a
// frame-at-a-time pass, and a small energy helper. Unlike a plain
// dB-threshold gate, the decision logic here combines energy,
// zero-crossing rate, and spectral entropy, with thresholds derived
// from the same audio it gates.
package preprocess

import (
	"math"

	"github.com/example/voicebio/internal/config"
)

const subBands = 8

type frameFeatures struct {
	start, end int // sample offsets into the source signal
	energy     float64
	zcr        float64
	entropy    float64
}

// ApplyVAD runs the adaptive multi-feature voice activity gate over x at
// the given sample rate and returns the concatenation of surviving voice
// runs. If no run survives, x is returned unchanged (fail-open) so
// downstream stages always have something to work with.
func ApplyVAD(x []float64, sampleRate int, cfg config.VADConfig) []float64 {
	frameLen := msToSamples(cfg.FrameMs, sampleRate)
	strideLen := msToSamples(cfg.StrideMs, sampleRate)
	if frameLen <= 0 || strideLen <= 0 || len(x) < frameLen {
		return x
	}

	frames := computeFrames(x, frameLen, strideLen)
	if len(frames) == 0 {
		return x
	}

	thetaE, thetaZ, thetaH := thresholds(frames, cfg.EnergyMin)
	voice := classifyFrames(frames, thetaE, thetaZ, thetaH)
	smoothGaps(voice)

	runs := extractRuns(frames, voice, len(x))
	runs = padRuns(runs, msToSamples(cfg.PaddingMs, sampleRate), len(x))
	runs = dropShortRuns(runs, msToSamples(cfg.MinDurMs, sampleRate))
	runs = mergeCloseRuns(runs, msToSamples(cfg.MergeGapMs, sampleRate))

	if len(runs) == 0 {
		return x
	}
	return concatRuns(x, runs)
}

func msToSamples(ms float64, sampleRate int) int {
	return int(ms * float64(sampleRate) / 1000.0)
}

func computeFrames(x []float64, frameLen, strideLen int) []frameFeatures {
	var frames []frameFeatures
	for start := 0; start+frameLen <= len(x); start += strideLen {
		seg := x[start : start+frameLen]
		frames = append(frames, frameFeatures{
			start:   start,
			end:     start + frameLen,
			energy:  frameRMS(seg),
			zcr:     zeroCrossingRate(seg),
			entropy: spectralEntropy(seg),
		})
	}
	return frames
}

func frameRMS(seg []float64) float64 {
	var sumSq float64
	for _, s := range seg {
		sumSq += s * s
	}
	return math.Sqrt(sumSq / float64(len(seg)))
}

func zeroCrossingRate(seg []float64) float64 {
	if len(seg) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(seg); i++ {
		if (seg[i-1] >= 0) != (seg[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(seg)-1)
}

// spectralEntropy partitions seg into subBands equal-width sub-frames,
// computes each sub-frame's energy, treats the normalised energies as a
// probability distribution, and returns its Shannon entropy normalised
// by log2(subBands) so the result lies in [0, 1].
func spectralEntropy(seg []float64) float64 {
	bandLen := len(seg) / subBands
	if bandLen == 0 {
		return 0
	}
	energies := make([]float64, subBands)
	var total float64
	for b := range subBands {
		start := b * bandLen
		end := start + bandLen
		if b == subBands-1 {
			end = len(seg)
		}
		var e float64
		for _, s := range seg[start:end] {
			e += s * s
		}
		energies[b] = e
		total += e
	}
	if total <= 0 {
		return 0
	}
	var h float64
	for _, e := range energies {
		p := e / total
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h / math.Log2(float64(subBands))
}

func thresholds(frames []frameFeatures, energyMinFloor float64) (thetaE, thetaZ, thetaH float64) {
	energies := make([]float64, len(frames))
	var sumE, sumZ, sumH float64
	for i, f := range frames {
		energies[i] = f.energy
		sumE += f.energy
		sumZ += f.zcr
		sumH += f.entropy
	}
	n := float64(len(frames))
	meanE, meanZ, meanH := sumE/n, sumZ/n, sumH/n
	medE := median(energies)

	thetaE = max3(energyMinFloor, medE*0.75, meanE*0.6)
	thetaZ = math.Max(0.02, meanZ*0.9)
	thetaH = math.Max(0.05, meanH*0.95)
	return
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}

func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sortFloats(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func classifyFrames(frames []frameFeatures, thetaE, thetaZ, thetaH float64) []bool {
	voice := make([]bool, len(frames))
	for i, f := range frames {
		strict := f.energy >= thetaE && (f.zcr <= thetaZ*1.15 || f.entropy <= thetaH*1.1)
		relaxed := f.energy >= thetaE*0.5 && f.zcr <= thetaZ*0.9 && f.entropy <= thetaH
		voice[i] = strict || relaxed
	}
	return voice
}

// smoothGaps fills single-frame and then 2-frame silence gaps that are
// bracketed by voice frames on both sides.
func smoothGaps(voice []bool) {
	fillGaps(voice, 1)
	fillGaps(voice, 2)
}

func fillGaps(voice []bool, gapLen int) {
	n := len(voice)
	for i := 0; i+gapLen+1 < n; i++ {
		if !voice[i] {
			continue
		}
		allSilent := true
		for g := 1; g <= gapLen; g++ {
			if voice[i+g] {
				allSilent = false
				break
			}
		}
		if allSilent && voice[i+gapLen+1] {
			for g := 1; g <= gapLen; g++ {
				voice[i+g] = true
			}
		}
	}
}

type run struct {
	start, end int // sample offsets, end exclusive
}

func extractRuns(frames []frameFeatures, voice []bool, totalSamples int) []run {
	var runs []run
	inRun := false
	var cur run
	for i, v := range voice {
		if v && !inRun {
			inRun = true
			cur = run{start: frames[i].start, end: frames[i].end}
		} else if v && inRun {
			cur.end = frames[i].end
		} else if !v && inRun {
			inRun = false
			runs = append(runs, cur)
		}
	}
	if inRun {
		runs = append(runs, cur)
	}
	return runs
}

func padRuns(runs []run, padding, totalSamples int) []run {
	out := make([]run, len(runs))
	for i, r := range runs {
		start := r.start - padding
		if start < 0 {
			start = 0
		}
		end := r.end + padding
		if end > totalSamples {
			end = totalSamples
		}
		out[i] = run{start: start, end: end}
	}
	return out
}

func dropShortRuns(runs []run, minDur int) []run {
	var out []run
	for _, r := range runs {
		if r.end-r.start >= minDur {
			out = append(out, r)
		}
	}
	return out
}

func mergeCloseRuns(runs []run, maxGap int) []run {
	if len(runs) == 0 {
		return runs
	}
	out := []run{runs[0]}
	for _, r := range runs[1:] {
		last := &out[len(out)-1]
		if r.start-last.end <= maxGap {
			last.end = r.end
		} else {
			out = append(out, r)
		}
	}
	return out
}

func concatRuns(x []float64, runs []run) []float64 {
	total := 0
	for _, r := range runs {
		total += r.end - r.start
	}
	out := make([]float64, 0, total)
	for _, r := range runs {
		out = append(out, x[r.start:r.end]...)
	}
	return out
}
