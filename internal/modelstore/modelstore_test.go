package modelstore

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/example/voicebio/internal/svm"
)

func sampleModel() Model {
	return Model{
		Dimension: 3,
		Classes:   []int32{1, 2},
		Classifiers: map[int32]svm.Classifier{
			1: {ClassID: 1, Weights: []float64{0.1, 0.2, 0.3}, Bias: 0.5},
			2: {ClassID: 2, Weights: []float64{-0.1, -0.2, -0.3}, Bias: -0.5},
		},
	}
}

// TestSaveFullThenLoadRoundTrips checks that load(save(c)) == c
// element-wise.
func TestSaveFullThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)
	model := sampleModel()

	if err := s.SaveFull(model); err != nil {
		t.Fatalf("SaveFull() error = %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Dimension != model.Dimension {
		t.Fatalf("Dimension = %d, want %d", loaded.Dimension, model.Dimension)
	}
	for k, want := range model.Classifiers {
		got, ok := loaded.Classifiers[k]
		if !ok {
			t.Fatalf("missing classifier %d after round trip", k)
		}
		if got.Bias != want.Bias {
			t.Errorf("class %d: bias = %f, want %f", k, got.Bias, want.Bias)
		}
		for i, w := range want.Weights {
			if got.Weights[i] != w {
				t.Errorf("class %d: weight[%d] = %f, want %f", k, i, got.Weights[i], w)
			}
		}
	}
}

// TestAddClassThenRemoveClassKeepsManifestConsistent checks the
// manifest stays consistent with the classifier files on disk.
func TestAddClassThenRemoveClassKeepsManifestConsistent(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)
	model := sampleModel()

	if err := s.SaveFull(model); err != nil {
		t.Fatalf("SaveFull() error = %v", err)
	}

	added, err := s.AddClass(model, svm.Classifier{ClassID: 3, Weights: []float64{1, 1, 1}, Bias: 0})
	if err != nil {
		t.Fatalf("AddClass() error = %v", err)
	}
	assertManifestMatchesFiles(t, dir, added)

	removed, err := s.RemoveClass(added, 1)
	if err != nil {
		t.Fatalf("RemoveClass() error = %v", err)
	}
	assertManifestMatchesFiles(t, dir, removed)

	if _, ok := removed.Classifiers[1]; ok {
		t.Fatal("expected class 1 to be absent after RemoveClass")
	}
}

func assertManifestMatchesFiles(t *testing.T, dir string, m Model) {
	t.Helper()
	for _, k := range m.Classes {
		path := filepath.Join(dir, classFileName(k))
		if _, err := readClassifier(path, k); err != nil {
			t.Errorf("class %d listed in manifest but file unreadable: %v", k, err)
		}
	}
	if len(m.Classes) != len(m.Classifiers) {
		t.Errorf("Classes length %d != Classifiers map length %d", len(m.Classes), len(m.Classifiers))
	}
}

func classFileName(k int32) string {
	return "class_" + strconv.FormatInt(int64(k), 10) + ".bin"
}

func TestLegacyLoadRoundTrip(t *testing.T) {
	model := sampleModel()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(model.Classes)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(model.Dimension))
	for _, k := range model.Classes {
		c := model.Classifiers[k]
		buf = binary.LittleEndian.AppendUint32(buf, uint32(k))
		for _, w := range c.Weights {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(w))
		}
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(c.Bias))
	}
	path := filepath.Join(t.TempDir(), "legacy.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	loaded, err := LegacyLoad(path)
	if err != nil {
		t.Fatalf("LegacyLoad() error = %v", err)
	}
	if len(loaded.Classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(loaded.Classes))
	}
	for k, want := range model.Classifiers {
		got := loaded.Classifiers[k]
		if got.Bias != want.Bias || len(got.Weights) != len(want.Weights) {
			t.Fatalf("class %d: legacy classifier = %+v, want %+v", k, got, want)
		}
		for i, w := range want.Weights {
			if got.Weights[i] != w {
				t.Errorf("class %d: weight[%d] = %f, want %f", k, i, got.Weights[i], w)
			}
		}
	}
}
