package runio

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zackbrooks84/Ember/internal/endpoint"
)

func fp(v float64) *float64 { return &v }

func TestTurnCSVRoundTrip(t *testing.T) {
	rows := []TurnRow{
		{T: 0, Xi: nil, LVS: 1.0, Pt: fp(0.42), RunType: "identity", Provider: "hash"},
		{T: 1, Xi: fp(0.15), LVS: 0.97, Pt: fp(0.45), EwmaXi: fp(0.15), RunType: "identity", Provider: "hash"},
		{T: 2, Xi: fp(0.08), LVS: 0.99, Pt: fp(0.5), EwmaXi: fp(0.129), RunType: "identity", Provider: "hash"},
	}

	path := filepath.Join(t.TempDir(), "out", "identity.csv")
	if err := WriteTurnCSV(path, rows); err != nil {
		t.Fatalf("WriteTurnCSV: %v", err)
	}

	got, err := ReadTurnCSV(path)
	if err != nil {
		t.Fatalf("ReadTurnCSV: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("rows = %d, want %d", len(got), len(rows))
	}
	if got[0].Xi != nil {
		t.Errorf("row 0 xi = %v, want absent", *got[0].Xi)
	}
	if got[1].Xi == nil || *got[1].Xi != 0.15 {
		t.Errorf("row 1 xi = %v, want 0.15", got[1].Xi)
	}
	if got[2].RunType != "identity" || got[2].Provider != "hash" {
		t.Errorf("row 2 metadata = %q/%q", got[2].RunType, got[2].Provider)
	}
	if got[1].LVS != 0.97 {
		t.Errorf("row 1 lvs = %v, want 0.97", got[1].LVS)
	}
}

func TestReadTurnCSVBlankAtTZero(t *testing.T) {
	// Hand-written file with blank xi and Pt on the first turn and a
	// malformed xi cell later. Both must come back absent, not zero.
	raw := "t,xi,lvs,Pt,ewma_xi,run_type,provider\n" +
		"0,,1.0,,,null,hash\n" +
		"1,0.2,0.9,0.3,0.2,null,hash\n" +
		"2,oops,0.9,0.31,0.21,null,hash\n"
	path := filepath.Join(t.TempDir(), "arm.csv")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadTurnCSV(path)
	if err != nil {
		t.Fatalf("ReadTurnCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Xi != nil || rows[0].Pt != nil {
		t.Errorf("t=0 blanks not treated as absent: xi=%v Pt=%v", rows[0].Xi, rows[0].Pt)
	}
	if rows[2].Xi != nil {
		t.Errorf("malformed xi cell parsed to %v, want absent", *rows[2].Xi)
	}

	xi := XiSeries(rows)
	if len(xi) != 1 || xi[0] != 0.2 {
		t.Errorf("XiSeries = %v, want [0.2]", xi)
	}
	pt := PtSeries(rows)
	if len(pt) != 2 || pt[0] != 0.3 || pt[1] != 0.31 {
		t.Errorf("PtSeries = %v, want [0.3 0.31]", pt)
	}
}

func TestReadTurnCSVColumnOrderIndependent(t *testing.T) {
	raw := "provider,t,run_type,lvs,xi,Pt,ewma_xi\n" +
		"hash,5,identity,0.88,0.11,0.7,0.12\n"
	path := filepath.Join(t.TempDir(), "shuffled.csv")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadTurnCSV(path)
	if err != nil {
		t.Fatalf("ReadTurnCSV: %v", err)
	}
	r := rows[0]
	if r.T != 5 || r.Xi == nil || *r.Xi != 0.11 || r.LVS != 0.88 || r.Provider != "hash" {
		t.Errorf("row mismatch: %+v", r)
	}
}

func TestEvalSummaryFlat(t *testing.T) {
	s := EvalSummary{
		Result: endpoint.Result{
			E1IdentityMedianXiLast10:  0.02,
			E1NullMedianXiLast10:      0.12,
			MannWhitneyU:              90,
			MannWhitneyP:              0.001,
			CliffsDeltaNullVsIdentity: 1,
			PtTrendIdentity:           0.3,
			PtTrendNull:               math.NaN(),
			E1Pass:                    true,
		},
		Provenance: Provenance{Tlock: 14, K: 5, M: 5, EpsXi: 0.02, EpsLVS: 0.015},
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Result fields and provenance fields sit side by side, unnested.
	for _, key := range []string{
		"E1_identity_median_xi_last10", "mann_whitney_U", "E1_pass",
		"Tlock", "k", "m", "eps_xi", "eps_lvs",
	} {
		if _, ok := flat[key]; !ok {
			t.Errorf("missing top-level key %q in %s", key, data)
		}
	}
	if flat["Tlock"] != float64(14) {
		t.Errorf("Tlock = %v, want 14", flat["Tlock"])
	}
	if flat["Pt_trend_null"] != nil {
		t.Errorf("NaN trend = %v, want null", flat["Pt_trend_null"])
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "eval.json")
	if err := WriteJSON(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("output missing trailing newline")
	}
}
