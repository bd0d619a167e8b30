// Package enroll implements the Enroller: the orchestration that
// turns a batch of enrolment recordings for one speaker into augmented
// feature vectors, appends them to the DatasetStore, trains
// (incrementally for a brand-new class, fully otherwise), and commits
// the result to the ModelStore. It threads several single-purpose
// components through one synchronous call.
package enroll

import (
	"context"
	"os"
	"time"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/audiodecode"
	"github.com/example/voicebio/internal/audit"
	"github.com/example/voicebio/internal/augment"
	"github.com/example/voicebio/internal/config"
	"github.com/example/voicebio/internal/dataset"
	"github.com/example/voicebio/internal/metrics"
	"github.com/example/voicebio/internal/modelstore"
	"github.com/example/voicebio/internal/pipeline"
	"github.com/example/voicebio/internal/svm"
	"github.com/example/voicebio/internal/userdirectory"
)

// Directory is the subset of userdirectory.Store the Enroller needs:
// it resolves the claimed identifier to a directory record, then
// registers the new biometric credential against that record's user
// ID so a user can only ever enrol once (a second attempt is rejected
// as a duplicate credential).
type Directory interface {
	Lookup(ctx context.Context, identifier string) (*userdirectory.UserRecord, error)
	RegisterBiometricCredential(ctx context.Context, userID string) error
}

// Enroller orchestrates one speaker's enrolment end to end.
type Enroller struct {
	cfg       config.Config
	extractor *pipeline.Extractor
	augmenter *augment.Augmenter
	dataset   *dataset.Store
	models    *modelstore.Store
	users     Directory
	audit     *audit.Logger
}

// New builds an Enroller. audit may be nil (audit logging becomes a
// no-op, matching Tracer's nil-safety).
func New(cfg config.Config, ds *dataset.Store, ms *modelstore.Store, users Directory, auditLog *audit.Logger) *Enroller {
	return &Enroller{
		cfg:       cfg,
		extractor: pipeline.New(cfg),
		augmenter: augment.New(cfg.Augment),
		dataset:   ds,
		models:    ms,
		users:     users,
		audit:     auditLog,
	}
}

// Result is the outcome of one Enroll call.
type Result struct {
	ClassID     int32
	Model       modelstore.Model
	Training    svm.Result
	Incremental bool
}

// Enroll resolves identifier against the user directory, extracts
// features from every recording in audioPaths (plus augmented variants
// of each), appends them to the dataset under classID, registers the
// biometric credential against the resolved user's ID, and commits a
// trained classifier for classID to the ModelStore — incrementally if
// classID is new, by full retrain otherwise.
func (e *Enroller) Enroll(ctx context.Context, identifier string, classID int32, audioPaths []string, codec audiodecode.Codec, sampleRateHint int) (Result, error) {
	if len(audioPaths) < e.cfg.Dataset.MinSamplesPerSpeaker {
		return Result{}, apperr.New(apperr.KindInputMalformed, "enroll: too few recordings for enrolment",
			"got", len(audioPaths), "min", e.cfg.Dataset.MinSamplesPerSpeaker)
	}

	rec, err := e.users.Lookup(ctx, identifier)
	if err != nil {
		return Result{}, err
	}
	if rec == nil {
		return Result{}, apperr.New(apperr.KindIdentityRejected, "enroll: claimed id not in user directory", "identifier", identifier)
	}

	if err := e.users.RegisterBiometricCredential(ctx, rec.ID); err != nil {
		return Result{}, err
	}

	vectors, err := e.extractAugmented(audioPaths, codec, sampleRateHint)
	if err != nil {
		return Result{}, err
	}

	labels := make([]int32, len(vectors))
	for i := range labels {
		labels[i] = classID
	}
	if err := e.dataset.Append(vectors, labels); err != nil {
		return Result{}, err
	}
	if records, err := e.dataset.Load(); err == nil {
		metrics.DatasetRecords.Set(float64(len(records)))
	}

	existing, err := e.models.Load()
	isNewModel := apperr.Is(err, apperr.KindModelNotLoaded)
	if err != nil && !isNewModel {
		return Result{}, err
	}

	_, alreadyEnrolled := existing.Classifiers[classID]

	start := time.Now()
	var res Result
	if isNewModel || !alreadyEnrolled {
		res, err = e.trainIncremental(existing, isNewModel, classID)
	} else {
		res, err = e.trainFull(classID)
	}
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, err
	}

	kind := "incremental"
	if !res.Incremental {
		kind = "full"
	}
	e.audit.RecordTrainingRun(kind, &classID, res.Training, elapsed)

	metrics.TrainingEpochsToConverge.WithLabelValues(kind).Observe(float64(res.Training.Epochs))
	if res.Training.Degenerate {
		metrics.TrainingDegenerate.Inc()
	}
	metrics.ModelClasses.Set(float64(len(res.Model.Classes)))

	return res, nil
}

// trainIncremental trains only the new class and adds it to the
// existing Model (or a fresh empty one), leaving every other
// classifier byte-for-byte untouched.
func (e *Enroller) trainIncremental(existing modelstore.Model, isNewModel bool, classID int32) (Result, error) {
	records, err := e.dataset.Load()
	if err != nil {
		return Result{}, err
	}

	dim := e.extractor.Dimension()
	var positives, negativePool [][]float64
	classCounts := make(map[int32]int)
	total := 0
	for _, r := range records {
		total++
		classCounts[r.Label]++
		if r.Label == classID {
			positives = append(positives, r.Features)
		} else {
			negativePool = append(negativePool, r.Features)
		}
	}
	delete(classCounts, classID)

	if len(negativePool) == 0 {
		// First-ever class: nothing to discriminate against yet, train
		// on positives alone with an empty negative set.
		result := svm.TrainBinary(positives, onesLabel(len(positives)), dim, e.cfg.SVM)
		result.Classifier.ClassID = classID
		model, err := e.commit(existing, isNewModel, dim, result.Classifier)
		return Result{ClassID: classID, Model: model, Training: result, Incremental: true}, err
	}

	targetRatio := svm.AveragePosNegRatio(classCounts, total-len(positives))
	result := svm.TrainIncremental(classID, positives, negativePool, targetRatio, dim, e.cfg.SVM)
	model, err := e.commit(existing, isNewModel, dim, result.Classifier)
	return Result{ClassID: classID, Model: model, Training: result, Incremental: true}, err
}

// trainFull re-runs One-vs-All over the entire dataset, used when
// classID already has a classifier (re-enrolment with more samples).
func (e *Enroller) trainFull(classID int32) (Result, error) {
	records, err := e.dataset.Load()
	if err != nil {
		return Result{}, err
	}

	dim := e.extractor.Dimension()
	X := make([][]float64, len(records))
	labels := make([]int32, len(records))
	for i, r := range records {
		X[i] = r.Features
		labels[i] = r.Label
	}

	results := svm.TrainOneVsAll(X, labels, dim, e.cfg.SVM)

	classes := make([]int32, 0, len(results))
	classifiers := make(map[int32]svm.Classifier, len(results))
	for k, r := range results {
		classes = append(classes, k)
		classifiers[k] = r.Classifier
	}
	full := modelstore.Model{Dimension: dim, Classes: classes, Classifiers: classifiers}
	if err := e.models.SaveFull(full); err != nil {
		return Result{}, err
	}

	return Result{ClassID: classID, Model: full, Training: results[classID], Incremental: false}, nil
}

func (e *Enroller) commit(existing modelstore.Model, isNewModel bool, dim int, c svm.Classifier) (modelstore.Model, error) {
	if isNewModel {
		model := modelstore.Model{
			Dimension:   dim,
			Classes:     []int32{c.ClassID},
			Classifiers: map[int32]svm.Classifier{c.ClassID: c},
		}
		if err := e.models.SaveFull(model); err != nil {
			return modelstore.Model{}, err
		}
		return model, nil
	}
	return e.models.AddClass(existing, c)
}

// extractAugmented decodes each recording, generates augmented
// variants of the raw waveform, and runs the
// preprocess/spectral/feature pipeline over every variant.
func (e *Enroller) extractAugmented(audioPaths []string, codec audiodecode.Codec, sampleRateHint int) ([][]float64, error) {
	var vectors [][]float64
	for _, path := range audioPaths {
		buf, err := readDecoded(path, codec, sampleRateHint)
		if err != nil {
			return nil, err
		}

		variants := [][]float64{buf.Samples}
		if e.cfg.Dataset.UseAugmentation {
			variants = e.augmenter.Generate(buf.Samples)
		}

		for _, samples := range variants {
			v, err := e.extractor.ExtractSamples(samples, buf.SampleRate)
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, v)
		}
	}
	return vectors, nil
}

func onesLabel(n int) []int8 {
	y := make([]int8, n)
	for i := range y {
		y[i] = 1
	}
	return y
}

func readDecoded(path string, codec audiodecode.Codec, sampleRateHint int) (audiodecode.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audiodecode.Buffer{}, apperr.Wrap(apperr.KindInputMalformed, err, "enroll: read audio file", "path", path)
	}
	buf, err := audiodecode.Decode(data, codec, sampleRateHint)
	if err != nil {
		return audiodecode.Buffer{}, apperr.Wrap(apperr.KindInputMalformed, err, "enroll: decode audio", "path", path)
	}
	if err := buf.Validate(); err != nil {
		return audiodecode.Buffer{}, apperr.Wrap(apperr.KindInputMalformed, err, "enroll: validate audio", "path", path)
	}
	return buf, nil
}
