package config

import "testing"

func TestDefaultConfigDimension(t *testing.T) {
	c := DefaultConfig()
	if got, want := c.Dimension(), 250; got != want {
		t.Fatalf("Dimension() = %d, want %d", got, want)
	}

	c.MFCC.UsePolyExpansion = true
	if got, want := c.Dimension(), 500; got != want {
		t.Fatalf("Dimension() with poly expansion = %d, want %d", got, want)
	}
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MFCC.NumCoefficients != 50 {
		t.Fatalf("expected default 50 coefficients, got %d", cfg.MFCC.NumCoefficients)
	}
	if cfg.Auth.PhraseSimilarityMin != 0.70 {
		t.Fatalf("expected default phrase similarity 0.70, got %f", cfg.Auth.PhraseSimilarityMin)
	}
}
