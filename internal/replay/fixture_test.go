package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zackbrooks84/Ember/internal/embed"
)

const sampleFixture = `{
  "description": "stable transcript settles",
  "transcript": [
    "hello", "how are you", "tell me about the garden",
    "the garden is green", "the garden is green", "the garden is green",
    "the garden is green", "the garden is green", "the garden is green",
    "the garden is green", "the garden is green", "the garden is green"
  ],
  "stride": 2,
  "seed": 7,
  "params": {"k": 3, "m": 3, "eps_xi": 0.05, "eps_lvs": 0.05},
  "expected": {"E1_pass": false, "E3_pass": false}
}`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture(writeFixture(t, sampleFixture))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if f.Description == "" || len(f.Transcript) != 12 {
		t.Fatalf("fixture mismatch: %+v", f)
	}
	p := f.HarnessParams()
	if p.K != 3 || p.EpsXi != 0.05 {
		t.Errorf("params = %+v", p)
	}
}

func TestLoadFixtureRejectsEmptyTranscript(t *testing.T) {
	if _, err := LoadFixture(writeFixture(t, `{"transcript": []}`)); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestHarnessParamsDefaults(t *testing.T) {
	var f Fixture
	p := f.HarnessParams()
	if p.K != 5 || p.M != 5 || p.EpsXi != 0.02 || p.EpsLVS != 0.015 {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestFixtureRun(t *testing.T) {
	f, err := LoadFixture(writeFixture(t, sampleFixture))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	out, err := f.Run(context.Background(), embed.NewHashProvider(32), "hash")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Identity.Rows) != 12 {
		t.Errorf("identity rows = %d, want 12", len(out.Identity.Rows))
	}
	if len(out.Null.Rows) != 6 {
		t.Errorf("null rows = %d, want 6", len(out.Null.Rows))
	}
	// The repeated tail drives drift to zero, so lock-in must be found.
	if out.Identity.Tlock < 0 {
		t.Error("identity arm should lock in")
	}

	again, err := f.Run(context.Background(), embed.NewHashProvider(32), "hash")
	if err != nil {
		t.Fatalf("Run again: %v", err)
	}
	if again.Result != out.Result {
		t.Error("fixture run not deterministic")
	}
}
