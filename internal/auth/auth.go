// Package auth implements the Authenticator, which turns a feature
// vector and a claimed identity into a granted/denied Verdict by
// combining classifier score gating with a transcribed phrase match.
// The orchestration runs as sequential named stages with slog.Info per
// decision, producing a single structured result type.
package auth

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/example/voicebio/internal/config"
	"github.com/example/voicebio/internal/metrics"
	"github.com/example/voicebio/internal/modelstore"
	"github.com/example/voicebio/internal/svm"
	"github.com/example/voicebio/internal/textsim"
)

// Transcriber is the external ASR collaborator used to recover spoken
// text from a challenge-phrase recording.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Verdict is the immutable outcome of one authentication attempt.
type Verdict struct {
	Granted        bool
	PredictedID    int32
	Confidence     float64
	Scores         map[int32]float64
	ExpectedPhrase string
	Transcription  string
	TextSimilarity float64
	TextOK         bool
	IDMatch        bool
	Elapsed        time.Duration
}

// Authenticator decides Verdicts against a read-only Model
// snapshot; it never mutates the Model it was handed.
type Authenticator struct {
	cfg         config.AuthConfig
	transcriber Transcriber
}

// New binds an Authenticator to its configuration and Transcriber.
func New(cfg config.AuthConfig, transcriber Transcriber) *Authenticator {
	return &Authenticator{cfg: cfg, transcriber: transcriber}
}

// Decide scores v against every classifier in model, applies the
// identity and margin gating logic, and fuses in the phrase-similarity
// signal obtained by transcribing audioPath.
func (a *Authenticator) Decide(ctx context.Context, v []float64, model modelstore.Model, claimedID string, expectedPhrase, audioPath string) Verdict {
	start := time.Now()

	scores := scoreAll(v, model.Classifiers)
	predicted, top1, top2 := topTwo(scores)

	gateScore := top1 >= a.cfg.ScoreMin
	sep := top1 - top2
	gateSep := sep >= a.cfg.DiffMin
	gateRunnerUp := top2 < a.cfg.RunnerUpFactor*top1
	gateExcellent := top1 >= a.cfg.ScoreHigh

	scoreGranted := (gateScore && gateSep && gateRunnerUp) || gateExcellent || (gateScore && (gateSep || gateRunnerUp))
	idMatch := strconv.Itoa(int(predicted)) == claimedID

	transcription, textSim, textOK := a.evaluatePhrase(ctx, expectedPhrase, audioPath)

	granted := scoreGranted && idMatch && textOK
	confidence := computeConfidence(top1, sep, granted, a.cfg)

	slog.Info("auth_decision",
		"predicted_id", predicted, "claimed_id", claimedID,
		"top1", top1, "top2", top2, "sep", sep,
		"id_match", idMatch, "text_similarity", textSim, "granted", granted,
	)

	metrics.AuthAttempts.WithLabelValues(strconv.FormatBool(granted)).Inc()
	metrics.AuthConfidence.Observe(confidence)
	metrics.AuthScoreSeparation.Observe(sep)

	return Verdict{
		Granted:        granted,
		PredictedID:    predicted,
		Confidence:     confidence,
		Scores:         scores,
		ExpectedPhrase: expectedPhrase,
		Transcription:  transcription,
		TextSimilarity: textSim,
		TextOK:         textOK,
		IDMatch:        idMatch,
		Elapsed:        time.Since(start),
	}
}

func (a *Authenticator) evaluatePhrase(ctx context.Context, expectedPhrase, audioPath string) (transcription string, similarity float64, ok bool) {
	tctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.TranscriberTimeoutS*float64(time.Second)))
	defer cancel()

	text, err := a.transcriber.Transcribe(tctx, audioPath)
	if err != nil {
		slog.Error("transcriber unavailable", "error", err)
		return "", 0, false
	}

	similarity = textsim.Similarity(expectedPhrase, text)
	return text, similarity, similarity >= a.cfg.PhraseSimilarityMin
}

func scoreAll(v []float64, classifiers map[int32]svm.Classifier) map[int32]float64 {
	scores := make(map[int32]float64, len(classifiers))
	for k, c := range classifiers {
		var s float64
		for j, wj := range c.Weights {
			s += wj * v[j]
		}
		scores[k] = s + c.Bias
	}
	return scores
}

// topTwo returns the argmax class and its score, plus the runner-up
// score (0 if fewer than two classes exist).
func topTwo(scores map[int32]float64) (predicted int32, top1, top2 float64) {
	type kv struct {
		k int32
		s float64
	}
	ordered := make([]kv, 0, len(scores))
	for k, s := range scores {
		ordered = append(ordered, kv{k, s})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].s > ordered[j].s })

	if len(ordered) == 0 {
		return 0, 0, 0
	}
	predicted, top1 = ordered[0].k, ordered[0].s
	if len(ordered) > 1 {
		top2 = ordered[1].s
	}
	return predicted, top1, top2
}

// computeConfidence derives a [0,1] confidence from the top score and
// its separation from the runner-up.
func computeConfidence(top1, sep float64, granted bool, cfg config.AuthConfig) float64 {
	var conf float64
	switch {
	case !granted:
		conf = clip01(min64(0.40, top1/0.1))
	case top1 >= cfg.ScoreHigh:
		conf = 0.95 + min64(0.05, (top1-cfg.ScoreHigh)*0.02)
	case top1 >= cfg.ScoreMin:
		conf = 0.70 + ((top1-cfg.ScoreMin)/0.7)*0.25
	default:
		conf = clip01(min64(0.40, top1/0.1))
	}

	if sep > 2.0 {
		conf = min64(conf*1.05, 1.0)
	}
	return conf
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
