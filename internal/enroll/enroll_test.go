package enroll_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/audiodecode"
	"github.com/example/voicebio/internal/config"
	"github.com/example/voicebio/internal/dataset"
	"github.com/example/voicebio/internal/enroll"
	"github.com/example/voicebio/internal/modelstore"
	"github.com/example/voicebio/internal/userdirectory"
)

type stubDirectory struct {
	registered map[string]bool
	unknown    map[string]bool
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{registered: make(map[string]bool), unknown: make(map[string]bool)}
}

func (s *stubDirectory) Lookup(ctx context.Context, identifier string) (*userdirectory.UserRecord, error) {
	if s.unknown[identifier] {
		return nil, nil
	}
	return &userdirectory.UserRecord{ID: identifier, Identifier: identifier, HasVoiceCred: s.registered[identifier]}, nil
}

func (s *stubDirectory) RegisterBiometricCredential(ctx context.Context, userID string) error {
	if s.registered[userID] {
		return apperr.New(apperr.KindDuplicateCredential, "enroll test: already enrolled", "user_id", userID)
	}
	s.registered[userID] = true
	return nil
}

func fastConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.MFCC.NumCoefficients = 4
	cfg.MFCC.NumFilters = 8
	cfg.Dataset.MinSamplesPerSpeaker = 2
	cfg.Dataset.UseAugmentation = false
	cfg.SVM.EpochsMax = 200
	cfg.SVM.MinEpochs = 10
	cfg.SVM.Patience = 20
	cfg.SVM.PatienceMinority = 20
	cfg.SVM.BatchSize = 4
	return cfg
}

func sineWavePCM16File(t *testing.T, dir, name string, sr int, freq float64) string {
	t.Helper()
	n := sr // one second
	data := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := 0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
		v := int16(s * math.MaxInt16)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write audio fixture: %v", err)
	}
	return path
}

func newEnroller(t *testing.T, cfg config.Config, dir *stubDirectory) *enroll.Enroller {
	t.Helper()
	root := t.TempDir()
	ds := dataset.Open(filepath.Join(root, "dataset.bin"))
	ms := modelstore.Open(filepath.Join(root, "model"))
	return enroll.New(cfg, ds, ms, dir, nil)
}

// TestEnrollNewClassIsIncremental checks that the first enrolment of a
// speaker, with no negatives yet available, trains on positives alone
// and commits via ModelStore.SaveFull.
func TestEnrollNewClassIsIncremental(t *testing.T) {
	cfg := fastConfig()
	dir := newStubDirectory()
	e := newEnroller(t, cfg, dir)
	audioDir := t.TempDir()

	paths := []string{
		sineWavePCM16File(t, audioDir, "a1.raw", 16000, 200),
		sineWavePCM16File(t, audioDir, "a2.raw", 16000, 210),
	}

	res, err := e.Enroll(context.Background(), "user-1", 1, paths, audiodecode.CodecPCM16, 16000)
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if !res.Incremental {
		t.Fatalf("expected first enrolment to take the incremental path")
	}
	if _, ok := res.Model.Classifiers[1]; !ok {
		t.Fatalf("expected class 1 present in committed model")
	}
}

// TestEnrollSecondSpeakerAddsClassIncrementally exercises the
// incremental trainer's negative-subsampling path now that a negative
// pool exists.
func TestEnrollSecondSpeakerAddsClassIncrementally(t *testing.T) {
	cfg := fastConfig()
	dir := newStubDirectory()
	e := newEnroller(t, cfg, dir)
	audioDir := t.TempDir()

	first := []string{
		sineWavePCM16File(t, audioDir, "s1-a.raw", 16000, 200),
		sineWavePCM16File(t, audioDir, "s1-b.raw", 16000, 205),
	}
	if _, err := e.Enroll(context.Background(), "user-1", 1, first, audiodecode.CodecPCM16, 16000); err != nil {
		t.Fatalf("first Enroll() error = %v", err)
	}

	second := []string{
		sineWavePCM16File(t, audioDir, "s2-a.raw", 16000, 600),
		sineWavePCM16File(t, audioDir, "s2-b.raw", 16000, 610),
	}
	res, err := e.Enroll(context.Background(), "user-2", 2, second, audiodecode.CodecPCM16, 16000)
	if err != nil {
		t.Fatalf("second Enroll() error = %v", err)
	}
	if !res.Incremental {
		t.Fatalf("expected new-class enrolment to take the incremental path")
	}
	if len(res.Model.Classes) != 2 {
		t.Fatalf("expected 2 classes after second enrolment, got %d", len(res.Model.Classes))
	}
}

// TestEnrollExistingClassTriggersFullRetrain covers re-enrolment of a
// speaker who already has a committed classifier.
func TestEnrollExistingClassTriggersFullRetrain(t *testing.T) {
	cfg := fastConfig()
	dir := newStubDirectory()
	e := newEnroller(t, cfg, dir)
	audioDir := t.TempDir()

	first := []string{
		sineWavePCM16File(t, audioDir, "r1-a.raw", 16000, 200),
		sineWavePCM16File(t, audioDir, "r1-b.raw", 16000, 205),
	}
	if _, err := e.Enroll(context.Background(), "user-1", 1, first, audiodecode.CodecPCM16, 16000); err != nil {
		t.Fatalf("first Enroll() error = %v", err)
	}

	// A distinct userID sidesteps the directory's DuplicateCredential
	// check so the test can reach the "class already has a classifier"
	// branch, which is keyed on classID, not userID.
	again := []string{
		sineWavePCM16File(t, audioDir, "r1-c.raw", 16000, 202),
		sineWavePCM16File(t, audioDir, "r1-d.raw", 16000, 207),
	}
	res, err := e.Enroll(context.Background(), "user-1-again", 1, again, audiodecode.CodecPCM16, 16000)
	if err != nil {
		t.Fatalf("second Enroll() error = %v", err)
	}
	if res.Incremental {
		t.Fatalf("expected re-enrolment of an existing class to take the full-retrain path")
	}
}

// TestEnrollDuplicateCredentialIsRejected checks that re-enrolling the
// same user surfaces the DuplicateCredential error kind.
func TestEnrollDuplicateCredentialIsRejected(t *testing.T) {
	cfg := fastConfig()
	dir := newStubDirectory()
	e := newEnroller(t, cfg, dir)
	audioDir := t.TempDir()

	paths := []string{
		sineWavePCM16File(t, audioDir, "d1.raw", 16000, 200),
		sineWavePCM16File(t, audioDir, "d2.raw", 16000, 205),
	}
	if _, err := e.Enroll(context.Background(), "user-1", 1, paths, audiodecode.CodecPCM16, 16000); err != nil {
		t.Fatalf("first Enroll() error = %v", err)
	}

	_, err := e.Enroll(context.Background(), "user-1", 1, paths, audiodecode.CodecPCM16, 16000)
	if !apperr.Is(err, apperr.KindDuplicateCredential) {
		t.Fatalf("expected DuplicateCredential on re-enrolment of the same user, got %v", err)
	}
}

// TestEnrollRejectsUnknownIdentifier checks that an identifier absent
// from the user directory surfaces IdentityRejected rather than
// DuplicateCredential.
func TestEnrollRejectsUnknownIdentifier(t *testing.T) {
	cfg := fastConfig()
	dir := newStubDirectory()
	dir.unknown["ghost"] = true
	e := newEnroller(t, cfg, dir)
	audioDir := t.TempDir()

	paths := []string{
		sineWavePCM16File(t, audioDir, "g1.raw", 16000, 200),
		sineWavePCM16File(t, audioDir, "g2.raw", 16000, 205),
	}
	_, err := e.Enroll(context.Background(), "ghost", 1, paths, audiodecode.CodecPCM16, 16000)
	if !apperr.Is(err, apperr.KindIdentityRejected) {
		t.Fatalf("expected IdentityRejected for unknown identifier, got %v", err)
	}
}

// TestEnrollRejectsTooFewRecordings checks the min_samples_per_speaker
// floor is enforced.
func TestEnrollRejectsTooFewRecordings(t *testing.T) {
	cfg := fastConfig()
	cfg.Dataset.MinSamplesPerSpeaker = 5
	dir := newStubDirectory()
	e := newEnroller(t, cfg, dir)
	audioDir := t.TempDir()

	paths := []string{sineWavePCM16File(t, audioDir, "few.raw", 16000, 200)}
	_, err := e.Enroll(context.Background(), "user-1", 1, paths, audiodecode.CodecPCM16, 16000)
	if !apperr.Is(err, apperr.KindInputMalformed) {
		t.Fatalf("expected InputMalformed, got %v", err)
	}
}
