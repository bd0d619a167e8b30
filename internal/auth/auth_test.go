package auth

import (
	"context"
	"testing"

	"github.com/example/voicebio/internal/config"
	"github.com/example/voicebio/internal/modelstore"
	"github.com/example/voicebio/internal/svm"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return s.text, s.err
}

func twoClassModel(s1, s2 float64) modelstore.Model {
	// Weight vector [1,0] and bias s_k reproduces a fixed score s_k for
	// the probe vector [1,0] used throughout these tests.
	return modelstore.Model{
		Dimension: 2,
		Classes:   []int32{1, 2},
		Classifiers: map[int32]svm.Classifier{
			1: {ClassID: 1, Weights: []float64{1, 0}, Bias: s1 - 1},
			2: {ClassID: 2, Weights: []float64{1, 0}, Bias: s2 - 1},
		},
	}
}

// TestDecideGrantsOnMatchingIdentityAndPhrase checks a high-confidence
// top score combined with a matching phrase grants access.
func TestDecideGrantsOnMatchingIdentityAndPhrase(t *testing.T) {
	cfg := config.DefaultConfig().Auth
	a := New(cfg, stubTranscriber{text: "open sesame"})
	model := twoClassModel(0.9, 0.2)

	v := a.Decide(context.Background(), []float64{1, 0}, model, "1", "open sesame", "probe.wav")

	if !v.Granted {
		t.Fatalf("expected granted=true")
	}
	if v.Confidence < 0.95 {
		t.Errorf("expected confidence >= 0.95, got %f", v.Confidence)
	}
}

// TestDecideDeniesOnIdentityMismatch checks that a top score for a
// different class than the one claimed always denies.
func TestDecideDeniesOnIdentityMismatch(t *testing.T) {
	cfg := config.DefaultConfig().Auth
	a := New(cfg, stubTranscriber{text: "open sesame"})
	model := twoClassModel(0.9, 0.2)

	v := a.Decide(context.Background(), []float64{1, 0}, model, "2", "open sesame", "probe.wav")

	if v.Granted {
		t.Fatalf("expected granted=false on identity mismatch")
	}
	if v.IDMatch {
		t.Fatalf("expected id_match=false")
	}
}

func TestDecideDeniesOnLowPhraseSimilarity(t *testing.T) {
	cfg := config.DefaultConfig().Auth
	a := New(cfg, stubTranscriber{text: "completely unrelated text"})
	model := twoClassModel(0.9, 0.2)

	v := a.Decide(context.Background(), []float64{1, 0}, model, "1", "open sesame", "probe.wav")

	if v.Granted {
		t.Fatalf("expected granted=false when text_similarity < 0.70")
	}
}

func TestConfidenceIsMonotoneInTop1(t *testing.T) {
	cfg := config.DefaultConfig().Auth
	lower := computeConfidence(0.2, 0.3, true, cfg)
	higher := computeConfidence(0.5, 0.3, true, cfg)
	if higher < lower {
		t.Fatalf("expected confidence to not decrease as top1 increases: %f -> %f", lower, higher)
	}
}

func TestConfidenceIsMonotoneInSeparationPastTwo(t *testing.T) {
	cfg := config.DefaultConfig().Auth
	without := computeConfidence(0.85, 1.5, true, cfg)
	with := computeConfidence(0.85, 2.5, true, cfg)
	if with < without {
		t.Fatalf("expected confidence to not decrease once separation exceeds 2.0: %f -> %f", without, with)
	}
}
