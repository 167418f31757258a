package main

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

type snapshotFile struct {
	Stats map[string]struct {
		Count     int     `json:"count"`
		EMAEffect float64 `json:"ema_effect"`
	} `json:"stats"`
}

func readSnapshot(t *testing.T, path string) snapshotFile {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	return snap
}

func TestWeightsObserveFrequencyOnly(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ember.db")
	export := filepath.Join(t.TempDir(), "snap.json")

	execute(t, "weights", "--db", db, "--observe", "Remember Lily", "--export", export)

	s, ok := readSnapshot(t, export).Stats["Remember Lily"]
	if !ok {
		t.Fatal("observed phrase missing from snapshot")
	}
	if s.Count != 1 {
		t.Errorf("count = %d, want 1", s.Count)
	}
	if s.EMAEffect != 0 {
		t.Errorf("ema_effect = %v, want 0 for a frequency-only observation", s.EMAEffect)
	}
}

func TestWeightsObserveHalfPairRecordsNoEffect(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ember.db")
	export := filepath.Join(t.TempDir(), "snap.json")

	// Only the before side is given; no effect can be derived from it.
	execute(t, "weights", "--db", db, "--observe", "Remember Lily",
		"--xi-before", "0.5", "--export", export)

	s, ok := readSnapshot(t, export).Stats["Remember Lily"]
	if !ok {
		t.Fatal("observed phrase missing from snapshot")
	}
	if s.Count != 1 {
		t.Errorf("count = %d, want 1", s.Count)
	}
	if s.EMAEffect != 0 {
		t.Errorf("ema_effect = %v, want 0 for an unmatched before measurement", s.EMAEffect)
	}
}

func TestWeightsObserveCompletePair(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ember.db")
	export := filepath.Join(t.TempDir(), "snap.json")

	execute(t, "weights", "--db", db, "--observe", "Remember Lily",
		"--xi-before", "0.5", "--xi-after", "0.2", "--export", export)

	s, ok := readSnapshot(t, export).Stats["Remember Lily"]
	if !ok {
		t.Fatal("observed phrase missing from snapshot")
	}
	// effect 0.3 folded once with alpha 0.3
	if math.Abs(s.EMAEffect-0.09) > 1e-12 {
		t.Errorf("ema_effect = %v, want 0.09", s.EMAEffect)
	}
}
