// Package spectral implements framing, Hann windowing, and the STFT
// magnitude spectrogram. The FFT core uses
// gonum.org/v1/gonum/dsp/fourier (a real-to-complex radix-2 FFT) rather
// than a hand-rolled Cooley-Tukey butterfly network — see DESIGN.md for
// why a library was preferred here over the stdlib-only path taken
// elsewhere in this module.
package spectral

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrogram is an ordered sequence of frames; every frame has the same
// number of non-negative magnitude bins B = fft_size/2 + 1.
type Spectrogram struct {
	Frames [][]float64
	Bins   int
	FFTSize int
}

// STFT computes the short-time Fourier transform magnitude spectrogram
// of x at the given sample rate, using frame/stride durations in
// milliseconds. The FFT size is the next power of two at least as large
// as the frame length.
func STFT(x []float64, sampleRate int, frameMs, strideMs float64) Spectrogram {
	frameLen := int(frameMs * float64(sampleRate) / 1000.0)
	strideLen := int(strideMs * float64(sampleRate) / 1000.0)
	if frameLen <= 0 {
		frameLen = 1
	}
	if strideLen <= 0 {
		strideLen = 1
	}
	fftSize := nextPowerOfTwo(frameLen)

	window := hannWindow(frameLen)
	fft := fourier.NewFFT(fftSize)
	bins := fftSize/2 + 1

	var frames [][]float64
	padded := make([]float64, fftSize)
	for start := 0; start+frameLen <= len(x); start += strideLen {
		for i := range padded {
			padded[i] = 0
		}
		for i := 0; i < frameLen; i++ {
			padded[i] = x[start+i] * window[i]
		}
		coeffs := fft.Coefficients(nil, padded)
		mags := make([]float64, bins)
		for i, c := range coeffs {
			mags[i] = math.Hypot(real(c), imag(c))
		}
		frames = append(frames, mags)
	}

	return Spectrogram{Frames: frames, Bins: bins, FFTSize: fftSize}
}

// hannWindow returns a symmetric Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range n {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
