// Package pipeline wires the AudioDecoder, Preprocessor, Spectralizer,
// and FeatureExtractor into the single synchronous operation behind
// the authentication/enrolment data flow: audio -> Preprocessor ->
// Spectralizer -> FeatureExtractor. It is the one place callers
// (internal/enroll, cmd/voicebiod) go from raw audio bytes to a
// FeatureVector, as a sequence of staged calls.
package pipeline

import (
	"os"
	"time"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/audiodecode"
	"github.com/example/voicebio/internal/config"
	"github.com/example/voicebio/internal/features"
	"github.com/example/voicebio/internal/metrics"
	"github.com/example/voicebio/internal/preprocess"
	"github.com/example/voicebio/internal/spectral"
)

// minVoicedSamples is a fixed floor checked before the STFT; a buffer
// above it that is still shorter than one STFT frame is caught after
// the STFT, when it yields no frames.
const minVoicedSamples = 64

// Extractor runs the full audio-to-feature-vector pipeline.
type Extractor struct {
	cfg config.Config
	fe  *features.Extractor
}

// New builds an Extractor bound to cfg.
func New(cfg config.Config) *Extractor {
	return &Extractor{cfg: cfg, fe: features.New(cfg.MFCC)}
}

// Dimension returns the feature vector length this Extractor produces.
func (e *Extractor) Dimension() int {
	return e.fe.Dimension()
}

// ExtractFile reads the audio file at path, decodes it, and runs the
// full pipeline down to a FeatureVector.
func (e *Extractor) ExtractFile(path string, codec audiodecode.Codec, sampleRateHint int) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInputMalformed, err, "pipeline: read audio file", "path", path)
	}
	return e.ExtractBytes(data, codec, sampleRateHint)
}

// ExtractBytes runs the full pipeline over already-loaded audio bytes.
func (e *Extractor) ExtractBytes(data []byte, codec audiodecode.Codec, sampleRateHint int) ([]float64, error) {
	buf, err := audiodecode.Decode(data, codec, sampleRateHint)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInputMalformed, err, "pipeline: decode audio")
	}
	if err := buf.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindInputMalformed, err, "pipeline: validate audio")
	}
	return e.ExtractSamples(buf.Samples, buf.SampleRate)
}

// ExtractSamples runs preprocessing, spectral analysis, and feature
// extraction over an already-decoded mono sample buffer.
func (e *Extractor) ExtractSamples(samples []float64, sampleRate int) ([]float64, error) {
	t0 := time.Now()
	voiced := preprocess.Process(samples, sampleRate, e.cfg.Preproc)
	metrics.StageDuration.WithLabelValues("preprocess").Observe(time.Since(t0).Seconds())
	if len(samples) > 0 {
		metrics.VADRetentionRatio.Observe(float64(len(voiced)) / float64(len(samples)))
	}
	if len(voiced) < minVoicedSamples {
		metrics.Errors.WithLabelValues("pipeline", string(apperr.KindNoVoiceDetected)).Inc()
		return nil, apperr.New(apperr.KindNoVoiceDetected, "pipeline: insufficient voiced audio", "samples", len(voiced))
	}

	t1 := time.Now()
	spec := spectral.STFT(voiced, sampleRate, e.cfg.STFT.FrameSizeMs, e.cfg.STFT.FrameStrideMs)
	metrics.StageDuration.WithLabelValues("spectral").Observe(time.Since(t1).Seconds())
	if len(spec.Frames) == 0 {
		metrics.Errors.WithLabelValues("pipeline", string(apperr.KindNoVoiceDetected)).Inc()
		return nil, apperr.New(apperr.KindNoVoiceDetected, "pipeline: no spectral frames produced")
	}

	t2 := time.Now()
	v := e.fe.Extract(spec, sampleRate)
	metrics.StageDuration.WithLabelValues("features").Observe(time.Since(t2).Seconds())
	if len(v) != e.fe.Dimension() {
		metrics.Errors.WithLabelValues("pipeline", string(apperr.KindDimensionMismatch)).Inc()
		return nil, apperr.New(apperr.KindDimensionMismatch, "pipeline: unexpected feature dimension",
			"got", len(v), "want", e.fe.Dimension())
	}
	return v, nil
}
