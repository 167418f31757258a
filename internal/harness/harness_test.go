package harness

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/zackbrooks84/Ember/internal/embed"
	"github.com/zackbrooks84/Ember/internal/runio"
)

func TestRunArmShape(t *testing.T) {
	e := embed.NewHashProvider(32)
	lines := []string{
		"hello there", "the weather is nice", "I was thinking about the lake",
		"the lake was cold", "we swam anyway", "it was a good day",
	}

	res, err := RunArm(context.Background(), e, lines, "identity", "hash", DefaultParams())
	if err != nil {
		t.Fatalf("RunArm: %v", err)
	}
	if len(res.Rows) != len(lines) {
		t.Fatalf("rows = %d, want %d", len(res.Rows), len(lines))
	}
	if len(res.Xi) != len(lines)-1 {
		t.Fatalf("xi = %d, want %d", len(res.Xi), len(lines)-1)
	}
	if res.Rows[0].Xi != nil {
		t.Error("t=0 must have no xi")
	}
	if res.Rows[0].LVS != 1.0 {
		t.Errorf("t=0 lvs = %v, want 1", res.Rows[0].LVS)
	}
	for i, row := range res.Rows {
		if row.Pt == nil {
			t.Fatalf("t=%d missing Pt", i)
		}
		if math.Abs(*row.Pt) > 1.0000001 {
			t.Errorf("t=%d Pt = %v out of cosine range", i, *row.Pt)
		}
		if i > 0 && row.EwmaXi == nil {
			t.Errorf("t=%d missing ewma", i)
		}
	}
}

func TestRunArmDeterministic(t *testing.T) {
	e := embed.NewHashProvider(32)
	lines := strings.Split("a b c d e f g h", " ")

	a, err := RunArm(context.Background(), e, lines, "identity", "hash", DefaultParams())
	if err != nil {
		t.Fatalf("RunArm: %v", err)
	}
	b, err := RunArm(context.Background(), e, lines, "identity", "hash", DefaultParams())
	if err != nil {
		t.Fatalf("RunArm: %v", err)
	}
	for i := range a.Xi {
		if a.Xi[i] != b.Xi[i] {
			t.Fatalf("xi[%d] differs between identical runs: %v vs %v", i, a.Xi[i], b.Xi[i])
		}
	}
	if a.Tlock != b.Tlock {
		t.Fatalf("Tlock differs: %d vs %d", a.Tlock, b.Tlock)
	}
}

func TestRunArmRepeatedLineLocksImmediately(t *testing.T) {
	e := embed.NewHashProvider(32)
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "the same line every turn"
	}

	res, err := RunArm(context.Background(), e, lines, "identity", "hash", DefaultParams())
	if err != nil {
		t.Fatalf("RunArm: %v", err)
	}
	for i, x := range res.Xi {
		if x != 0 {
			t.Fatalf("xi[%d] = %v, want 0 for repeated line", i, x)
		}
	}
	if res.Tlock != 1 {
		t.Errorf("Tlock = %d, want 1", res.Tlock)
	}
}

func TestRunArmEmptyTranscript(t *testing.T) {
	e := embed.NewHashProvider(32)
	if _, err := RunArm(context.Background(), e, nil, "identity", "hash", DefaultParams()); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func rowsFrom(xi []float64, lvs []float64) []runio.TurnRow {
	rows := make([]runio.TurnRow, len(lvs))
	for i := range rows {
		rows[i] = runio.TurnRow{T: i, LVS: lvs[i]}
		if i > 0 {
			x := xi[i-1]
			rows[i].Xi = &x
		}
	}
	return rows
}

func TestTlock(t *testing.T) {
	p := Params{K: 3, M: 3, EpsXi: 0.05, EpsLVS: 0.02}
	ones := []float64{1, 1, 1, 1, 1, 1, 1, 1}

	tests := []struct {
		name string
		xi   []float64
		lvs  []float64
		want int
	}{
		{
			name: "settles after transient",
			xi:   []float64{0.3, 0.2, 0.01, 0.02, 0.01, 0.01, 0.01},
			lvs:  ones,
			want: 3,
		},
		{
			name: "never settles",
			xi:   []float64{0.3, 0.2, 0.3, 0.2, 0.3, 0.2, 0.3},
			lvs:  ones,
			want: -1,
		},
		{
			name: "xi settled but lvs unstable",
			xi:   []float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01},
			lvs:  []float64{1, 1, 0.9, 1, 0.9, 1, 0.9, 1},
			want: -1,
		},
		{
			name: "too short for windows",
			xi:   []float64{0.01},
			lvs:  []float64{1, 1},
			want: -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tlock(rowsFrom(tt.xi, tt.lvs), p); got != tt.want {
				t.Errorf("Tlock = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNullTranscript(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}

	kept := NullTranscript(lines, 3, 7)
	if len(kept) != 3 {
		t.Fatalf("stride 3 kept %d lines, want 3", len(kept))
	}
	// Survivors are exactly the stride-th lines, reordered.
	seen := map[string]bool{}
	for _, l := range kept {
		seen[l] = true
	}
	for _, want := range []string{"a", "d", "g"} {
		if !seen[want] {
			t.Errorf("line %q missing from null transcript", want)
		}
	}

	again := NullTranscript(lines, 3, 7)
	for i := range kept {
		if kept[i] != again[i] {
			t.Fatalf("same seed produced different order: %v vs %v", kept, again)
		}
	}

	all := NullTranscript(lines, 1, 7)
	if len(all) != len(lines) {
		t.Fatalf("stride 1 kept %d lines, want %d", len(all), len(lines))
	}
}

func TestRunPair(t *testing.T) {
	e := embed.NewHashProvider(32)
	lines := []string{
		"one", "two", "three", "four", "five", "six",
		"seven", "eight", "nine", "ten", "eleven", "twelve",
	}

	identity, null, err := RunPair(context.Background(), e, lines, "hash", 2, 7, DefaultParams())
	if err != nil {
		t.Fatalf("RunPair: %v", err)
	}
	if len(identity.Rows) != len(lines) {
		t.Errorf("identity rows = %d, want %d", len(identity.Rows), len(lines))
	}
	if len(null.Rows) != 6 {
		t.Errorf("null rows = %d, want 6", len(null.Rows))
	}
	if identity.Rows[0].RunType != "identity" || null.Rows[0].RunType != "null" {
		t.Errorf("run types = %q/%q", identity.Rows[0].RunType, null.Rows[0].RunType)
	}
}
