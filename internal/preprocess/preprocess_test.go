package preprocess

import (
	"math"
	"testing"

	"github.com/example/voicebio/internal/config"
)

func TestNormalizeRMSScalesToTarget(t *testing.T) {
	x := make([]float64, 1000)
	for i := range x {
		x[i] = math.Sin(float64(i) * 0.1)
	}
	out := NormalizeRMS(x, 0.1)
	if math.Abs(rms(out)-0.1) > 1e-6 {
		t.Fatalf("expected rms ~0.1, got %f", rms(out))
	}
}

func TestNormalizeRMSLeavesSilenceUnchanged(t *testing.T) {
	x := make([]float64, 100)
	out := NormalizeRMS(x, 0.1)
	for i := range x {
		if out[i] != x[i] {
			t.Fatalf("expected silent signal unchanged at %d", i)
		}
	}
}

// TestApplyVADFailsOpenOnQuietTone checks that a very quiet, steady
// tone keeps its full length: the VAD thresholds are derived from the
// signal itself, so every frame of the uniform tone counts as voice and
// the single voiced run spans the whole input.
func TestApplyVADFailsOpenOnQuietTone(t *testing.T) {
	sr := 16000
	n := sr * 2
	x := make([]float64, n)
	// amplitude 0.001: about -63dB RMS
	for i := range x {
		x[i] = 0.001 * math.Sin(2*math.Pi*440*float64(i)/float64(sr))
	}
	cfg := config.DefaultConfig().Preproc.VAD
	out := ApplyVAD(x, sr, cfg)
	if len(out) != len(x) {
		t.Fatalf("expected fail-open unchanged length %d, got %d", len(x), len(out))
	}
}

func TestApplyVADRetainsLoudSpeechLikeSignal(t *testing.T) {
	sr := 16000
	n := sr * 2
	x := make([]float64, n)
	for i := range x {
		// Full-scale tone for the middle second only — simulates a speech burst.
		if i > sr/2 && i < sr+sr/2 {
			x[i] = 0.5 * math.Sin(2*math.Pi*200*float64(i)/float64(sr))
		}
	}
	cfg := config.DefaultConfig().Preproc.VAD
	out := ApplyVAD(x, sr, cfg)
	if len(out) == 0 {
		t.Fatal("expected non-empty output for loud signal")
	}
	if len(out) >= len(x) {
		t.Fatalf("expected VAD to trim silence, got %d >= %d", len(out), len(x))
	}
}
