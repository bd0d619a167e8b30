package spectral

import (
	"math"
	"testing"
)

func TestSTFTFramesHaveEqualBinCount(t *testing.T) {
	sr := 16000
	n := sr // 1 second
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 440 * float64(i) / float64(sr))
	}
	spec := STFT(x, sr, 25, 10)
	if len(spec.Frames) == 0 {
		t.Fatal("expected at least one frame")
	}
	for i, f := range spec.Frames {
		if len(f) != spec.Bins {
			t.Fatalf("frame %d has %d bins, want %d", i, len(f), spec.Bins)
		}
		for _, m := range f {
			if m < 0 {
				t.Fatalf("frame %d has negative magnitude %f", i, m)
			}
		}
	}
}

func TestSTFTBinCountMatchesFFTSize(t *testing.T) {
	sr := 16000
	x := make([]float64, sr)
	spec := STFT(x, sr, 25, 10)
	if spec.Bins != spec.FFTSize/2+1 {
		t.Fatalf("bins = %d, want fftSize/2+1 = %d", spec.Bins, spec.FFTSize/2+1)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 400: 512, 512: 512, 513: 1024}
	for in, want := range cases {
		if got := nextPowerOfTwo(in); got != want {
			t.Fatalf("nextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
