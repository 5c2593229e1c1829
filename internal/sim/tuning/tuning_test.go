package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Defaults(), got); diff != "" {
		t.Fatalf("configs/tuning.yaml drifted from Defaults (-want +got):\n%s", diff)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "development_mode: true\nspawn:\n  max_concurrent: 3\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.DevelopmentMode || got.Spawn.MaxConcurrent != 3 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Spawn.MinSize != 5 || got.Placement.MinRadius != 60 {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestDecode_SchemaRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown key", "spawn:\n  max_concurent: 3\n"},
		{"chance above one", "spawn:\n  chance: 1.5\n"},
		{"wrong type", "tick_ms: fast\n"},
		{"negative radius", "placement:\n  min_radius: -1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tu := Defaults()
			if err := Decode([]byte(tc.raw), &tu); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestValidate_Ranges(t *testing.T) {
	tu := Defaults()
	tu.Spawn.MinSize, tu.Spawn.MaxSize = 10, 5
	if err := tu.Validate(); err == nil || !strings.Contains(err.Error(), "size range") {
		t.Fatalf("expected size range error, got %v", err)
	}

	tu = Defaults()
	tu.Placement.MaxRadius = 10
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected radius error")
	}
}

func TestNormalize_FillsZeros(t *testing.T) {
	var tu Tuning
	tu.Normalize()
	if tu.TickMs != 250 || tu.Spawn.MaxConcurrent != 10 || tu.Tactics.CoordinateEveryTicks != 1 {
		t.Fatalf("unexpected normalize result: %+v", tu)
	}
}

func TestDurations(t *testing.T) {
	tu := Defaults()
	if tu.Spawn.WarningDelay() != 30*time.Second {
		t.Fatalf("warning delay: %v", tu.Spawn.WarningDelay())
	}
	if tu.Legion.TargetLoss() != time.Minute {
		t.Fatalf("target loss: %v", tu.Legion.TargetLoss())
	}
	if tu.TickInterval() != 250*time.Millisecond {
		t.Fatalf("tick: %v", tu.TickInterval())
	}
}
