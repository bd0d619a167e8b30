// Package dataset implements the DatasetStore, an append-only binary
// file of feature-vector/label records. Locking discipline acquires an
// exclusive flock (github.com/gofrs/flock) around a mutation and
// releases on return; each record goes to the file in a single write
// call. Readers take no lock.
package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gofrs/flock"

	"github.com/example/voicebio/internal/apperr"
)

// Record is one labelled feature vector.
type Record struct {
	Features []float64
	Label    int32
}

// Store is an append-only binary dataset file at Path, guarded by an
// OS-level file lock for exclusive mutation.
type Store struct {
	path string
	lock *flock.Flock
}

// Open binds a Store to path without touching the filesystem; the file
// is created lazily on first Append.
func Open(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Append opens the dataset file in append mode and writes one record
// per (features[i], labels[i]) pair, each framed as
// len:u32 | bytes(len*f64) | label:i32 in one write call, holding an
// exclusive lock for the duration of the batch so no other writer
// interleaves with it. Load does not take the lock.
func (s *Store) Append(features [][]float64, labels []int32) error {
	if len(features) != len(labels) {
		return apperr.New(apperr.KindInputMalformed, "dataset: features/labels length mismatch")
	}

	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("dataset: acquire lock: %w", err)
	}
	if !locked {
		return apperr.New(apperr.KindExternalUnavailable, "dataset: store is locked by another writer")
	}
	defer s.lock.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("dataset: open for append: %w", err)
	}
	defer f.Close()

	for i, feat := range features {
		if err := writeRecord(f, feat, labels[i]); err != nil {
			return fmt.Errorf("dataset: write record %d: %w", i, err)
		}
	}
	return f.Sync()
}

func writeRecord(w io.Writer, feat []float64, label int32) error {
	buf := make([]byte, 4+8*len(feat)+4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(feat)))
	for i, x := range feat {
		binary.LittleEndian.PutUint64(buf[4+8*i:12+8*i], math.Float64bits(x))
	}
	binary.LittleEndian.PutUint32(buf[len(buf)-4:], uint32(label))
	_, err := w.Write(buf)
	return err
}

// Load reads every record in the file, inferring D from the first
// valid record and silently rejecting any record whose length differs.
func (s *Store) Load() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dataset: open for read: %w", err)
	}
	defer f.Close()

	var records []Record
	var dim uint32

	for {
		var length uint32
		if err := binary.Read(f, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("dataset: read length: %w", err)
		}

		feat := make([]float64, length)
		if err := binary.Read(f, binary.LittleEndian, feat); err != nil {
			return nil, fmt.Errorf("dataset: read features: %w", err)
		}

		var label int32
		if err := binary.Read(f, binary.LittleEndian, &label); err != nil {
			return nil, fmt.Errorf("dataset: read label: %w", err)
		}

		if dim == 0 {
			dim = length
		}
		if length != dim {
			continue
		}
		records = append(records, Record{Features: feat, Label: label})
	}
	return records, nil
}
