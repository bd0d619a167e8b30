package augment

import (
	"testing"

	"github.com/example/voicebio/internal/config"
)

func TestGenerateReturnsOriginalFirst(t *testing.T) {
	cfg := config.DefaultConfig().Augment
	cfg.Variations = 3
	a := New(cfg)

	x := []float64{0.1, -0.2, 0.3, -0.1, 0.05}
	out := a.Generate(x)

	if len(out) != 4 {
		t.Fatalf("expected 4 buffers (1 original + 3 variations), got %d", len(out))
	}
	for i, s := range out[0] {
		if s != x[i] {
			t.Fatalf("expected first buffer to be the unmodified original")
		}
	}
}

// TestGenerateIdentityParamsProduceIdenticalBuffers checks that
// noise_intensity=0, gain_range=[1,1], speed_range=[1,1], variations=4
// returns five identical buffers.
func TestGenerateIdentityParamsProduceIdenticalBuffers(t *testing.T) {
	cfg := config.AugmentConfig{
		NoiseIntensity: 0,
		GainRange:      [2]float64{1, 1},
		SpeedRange:     [2]float64{1, 1},
		Variations:     4,
		Seed:           42,
	}
	a := New(cfg)

	x := []float64{0.2, -0.4, 0.6, -0.6, 0.1, 0.0}
	out := a.Generate(x)

	if len(out) != 5 {
		t.Fatalf("expected 5 buffers, got %d", len(out))
	}
	for i, buf := range out {
		if len(buf) != len(x) {
			t.Fatalf("buffer %d: expected length %d, got %d", i, len(x), len(buf))
		}
		for j, s := range buf {
			if s != x[j] {
				t.Fatalf("buffer %d differs from original at %d: %f != %f", i, j, s, x[j])
			}
		}
	}
}

func TestTimeStretchCompressesAndStretches(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		x[i] = float64(i)
	}

	faster := timeStretch(x, 2.0)
	if len(faster) >= len(x) {
		t.Fatalf("expected speed=2.0 to shrink buffer, got len %d", len(faster))
	}

	slower := timeStretch(x, 0.5)
	if len(slower) <= len(x) {
		t.Fatalf("expected speed=0.5 to grow buffer, got len %d", len(slower))
	}
}

func TestAddNoiseZeroIntensityIsNoop(t *testing.T) {
	x := []float64{0.1, 0.2, 0.3}
	out := addNoise(x, 0, nil)
	for i, s := range out {
		if s != x[i] {
			t.Fatalf("expected zero intensity to be a no-op")
		}
	}
}
