// Package modelstore implements the on-disk, per-class binary
// classifier store plus JSON manifest, with atomic add/remove/
// save-full operations under a coarse directory lock. Every write
// uses a temp-file-then-rename discipline under an exclusive flock
// (github.com/gofrs/flock).
package modelstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/svm"
)

// Model is the live, immutable classifier set for one dimension. New
// snapshots replace old ones wholesale; nothing mutates a Model value
// in place once built.
type Model struct {
	Dimension   int
	Classes     []int32
	Classifiers map[int32]svm.Classifier
}

// manifest is the JSON structure of metadata.json — exact keys
// required by external readers.
type manifest struct {
	NumClasses int     `json:"num_classes"`
	Dimension  int      `json:"dimension"`
	Classes    []int32 `json:"classes"`
}

// Store mediates all mutation of the on-disk model directory at Dir,
// serialised by a directory-scoped advisory lock.
type Store struct {
	Dir  string
	lock *flock.Flock
}

// Open binds a Store to dir without touching the filesystem.
func Open(dir string) *Store {
	return &Store{Dir: dir, lock: flock.New(filepath.Join(dir, ".lock"))}
}

func (s *Store) classPath(k int32) string {
	return filepath.Join(s.Dir, fmt.Sprintf("class_%d.bin", k))
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.Dir, "metadata.json")
}

// Load reads the manifest, then every class_<k>.bin it names, and
// validates dimension consistency before returning the snapshot.
func (s *Store) Load() (Model, error) {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Model{}, apperr.Wrap(apperr.KindModelNotLoaded, err, "modelstore: manifest missing")
		}
		return Model{}, fmt.Errorf("modelstore: read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Model{}, apperr.Wrap(apperr.KindModelCorrupt, err, "modelstore: manifest is not valid JSON")
	}

	classifiers := make(map[int32]svm.Classifier, len(m.Classes))
	for _, k := range m.Classes {
		c, err := readClassifier(s.classPath(k), k)
		if err != nil {
			return Model{}, err
		}
		if len(c.Weights) != m.Dimension {
			return Model{}, apperr.New(apperr.KindModelCorrupt, "modelstore: classifier dimension mismatch",
				"class_id", k, "expected", m.Dimension, "actual", len(c.Weights))
		}
		classifiers[k] = c
	}
	if len(classifiers) != m.NumClasses {
		return Model{}, apperr.New(apperr.KindModelCorrupt, "modelstore: num_classes does not match classes length")
	}

	return Model{Dimension: m.Dimension, Classes: append([]int32(nil), m.Classes...), Classifiers: classifiers}, nil
}

// SaveFull writes every classifier file, then rewrites the manifest
// last, so a crash mid-write leaves the prior manifest (and therefore a
// consistent prior Model) intact.
func (s *Store) SaveFull(model Model) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("modelstore: create directory: %w", err)
	}
	return s.withLock(func() error {
		for _, k := range model.Classes {
			if err := writeClassifier(s.classPath(k), model.Classifiers[k]); err != nil {
				return err
			}
		}
		return s.writeManifest(model)
	})
}

// AddClass writes the new class's binary file, then rewrites the
// manifest to include it.
func (s *Store) AddClass(model Model, c svm.Classifier) (Model, error) {
	var next Model
	err := s.withLock(func() error {
		if len(c.Weights) != model.Dimension {
			return apperr.New(apperr.KindDimensionMismatch, "modelstore: new classifier dimension mismatch",
				"expected", model.Dimension, "actual", len(c.Weights))
		}
		if err := writeClassifier(s.classPath(c.ClassID), c); err != nil {
			return err
		}
		next = cloneModel(model)
		next.Classifiers[c.ClassID] = c
		next.Classes = append(next.Classes, c.ClassID)
		sort.Slice(next.Classes, func(i, j int) bool { return next.Classes[i] < next.Classes[j] })
		return s.writeManifest(next)
	})
	return next, err
}

// RemoveClass deletes the class's binary file, then rewrites the
// manifest without it.
func (s *Store) RemoveClass(model Model, k int32) (Model, error) {
	var next Model
	err := s.withLock(func() error {
		if err := os.Remove(s.classPath(k)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("modelstore: remove class file: %w", err)
		}
		next = cloneModel(model)
		delete(next.Classifiers, k)
		classes := next.Classes[:0]
		for _, id := range next.Classes {
			if id != k {
				classes = append(classes, id)
			}
		}
		next.Classes = classes
		return s.writeManifest(next)
	})
	return next, err
}

func cloneModel(m Model) Model {
	classifiers := make(map[int32]svm.Classifier, len(m.Classifiers))
	for k, v := range m.Classifiers {
		classifiers[k] = v
	}
	return Model{Dimension: m.Dimension, Classes: append([]int32(nil), m.Classes...), Classifiers: classifiers}
}

func (s *Store) writeManifest(m Model) error {
	payload := manifest{NumClasses: len(m.Classes), Dimension: m.Dimension, Classes: m.Classes}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("modelstore: marshal manifest: %w", err)
	}
	return writeAtomic(s.manifestPath(), data)
}

func (s *Store) withLock(fn func() error) error {
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("modelstore: acquire lock: %w", err)
	}
	if !locked {
		return apperr.New(apperr.KindExternalUnavailable, "modelstore: directory is locked by another writer")
	}
	defer s.lock.Unlock()
	return fn()
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("modelstore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("modelstore: rename temp file: %w", err)
	}
	return nil
}

// writeClassifier encodes dimension:u32 | weights:[f64;D] | bias:f64
// (12+8D bytes total) and writes it atomically.
func writeClassifier(path string, c svm.Classifier) error {
	buf := make([]byte, 4+8*len(c.Weights)+8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(c.Weights)))
	for i, w := range c.Weights {
		binary.LittleEndian.PutUint64(buf[4+8*i:12+8*i], math.Float64bits(w))
	}
	binary.LittleEndian.PutUint64(buf[len(buf)-8:], math.Float64bits(c.Bias))
	return writeAtomic(path, buf)
}

func readClassifier(path string, classID int32) (svm.Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return svm.Classifier{}, apperr.Wrap(apperr.KindModelCorrupt, err, "modelstore: read classifier file", "class_id", classID)
	}
	if len(data) < 12 {
		return svm.Classifier{}, apperr.New(apperr.KindModelCorrupt, "modelstore: classifier file too short", "class_id", classID)
	}

	dim := binary.LittleEndian.Uint32(data[0:4])
	expected := 4 + 8*int(dim) + 8
	if len(data) != expected {
		return svm.Classifier{}, apperr.New(apperr.KindModelCorrupt, "modelstore: classifier file size mismatch",
			"class_id", classID, "expected_bytes", expected, "actual_bytes", len(data))
	}

	weights := make([]float64, dim)
	for i := range weights {
		weights[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[4+8*i : 12+8*i]))
	}
	bias := math.Float64frombits(binary.LittleEndian.Uint64(data[len(data)-8:]))

	return svm.Classifier{ClassID: classID, Weights: weights, Bias: bias}, nil
}
