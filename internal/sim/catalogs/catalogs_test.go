package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_AirIsZero(t *testing.T) {
	c := Default()
	if c.Palette[0] != "AIR" || c.ID("AIR") != 0 {
		t.Fatalf("AIR must be palette id 0, got palette %v", c.Palette)
	}
	if !c.Empty(0) {
		t.Fatalf("AIR should be empty")
	}
}

func TestDefault_Flags(t *testing.T) {
	c := Default()
	cases := []struct {
		name   string
		floor  bool
		empty  bool
		hazard bool
	}{
		{"STONE", true, false, false},
		{"GRASS", true, false, false},
		{"FENCE", false, false, false},
		{"WALL", false, false, false},
		{"CACTUS", false, false, true},
		{"MAGMA", false, false, true},
		{"LAVA", false, false, true},
		{"WATER", false, false, false},
	}
	for _, tc := range cases {
		id := c.ID(tc.name)
		if id == 0 {
			t.Fatalf("%s missing from palette", tc.name)
		}
		if got := c.Floor(id); got != tc.floor {
			t.Fatalf("%s floor=%v want %v", tc.name, got, tc.floor)
		}
		if got := c.Empty(id); got != tc.empty {
			t.Fatalf("%s empty=%v want %v", tc.name, got, tc.empty)
		}
		if got := c.Hazard(id); got != tc.hazard {
			t.Fatalf("%s hazard=%v want %v", tc.name, got, tc.hazard)
		}
	}
}

func TestLoad_FallsBackWhenMissing(t *testing.T) {
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DefsDigest != Default().DefsDigest {
		t.Fatalf("expected built-in catalog")
	}
}

func TestLoad_RejectsMissingAir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(`[{"id":"STONE","solid":true}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for catalog without AIR")
	}
}
