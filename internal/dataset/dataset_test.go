package dataset

import (
	"path/filepath"
	"testing"
)

func TestAppendAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := Open(filepath.Join(dir, "train.bin"))

	feats := [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	}
	labels := []int32{0, 1}

	if err := s.Append(feats, labels); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Label != labels[i] {
			t.Errorf("record %d: label = %d, want %d", i, r.Label, labels[i])
		}
		for j, v := range r.Features {
			if v != feats[i][j] {
				t.Errorf("record %d feature %d = %f, want %f", i, j, v, feats[i][j])
			}
		}
	}
}

func TestLoadRejectsMixedDimensions(t *testing.T) {
	dir := t.TempDir()
	s := Open(filepath.Join(dir, "train.bin"))

	if err := s.Append([][]float64{{1, 2, 3}}, []int32{0}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append([][]float64{{1, 2}}, []int32{1}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append([][]float64{{4, 5, 6}}, []int32{1}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected the mismatched-dimension record to be dropped, got %d records", len(records))
	}
}

func TestAppendRejectsLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	s := Open(filepath.Join(dir, "train.bin"))

	err := s.Append([][]float64{{1, 2}}, []int32{0, 1})
	if err == nil {
		t.Fatal("expected an error for mismatched features/labels length")
	}
}

func TestLoadOnMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := Open(filepath.Join(dir, "missing.bin"))

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if records != nil {
		t.Fatalf("expected nil records for a missing file, got %v", records)
	}
}
