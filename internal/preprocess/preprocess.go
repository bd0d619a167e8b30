package preprocess

import "github.com/example/voicebio/internal/config"

// Process applies RMS normalisation followed by the adaptive VAD gate.
func Process(x []float64, sampleRate int, cfg config.PreprocConfig) []float64 {
	normalized := NormalizeRMS(x, cfg.TargetRMS)
	return ApplyVAD(normalized, sampleRate, cfg.VAD)
}
