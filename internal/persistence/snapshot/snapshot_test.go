package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
	"legioncraft.ai/internal/sim/registry"
	"legioncraft.ai/internal/sim/world"
)

func sample(tick uint64) SnapshotV1 {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return SnapshotV1{
		Header: Header{Version: Version, Tick: tick, Seed: 9, SavedAt: at},
		Registry: registry.State{
			NextID:    3,
			Tick:      tick,
			StartedAt: at.Add(-time.Hour),
			NextEval:  at.Add(time.Minute),
			Counters:  registry.Counters{Created: 3, Retired: 1},
			Legions: []legion.Snapshot{{
				ID:            2,
				Target:        "player-1",
				Anchor:        host.Vec3i{X: 70, Y: 64, Z: 3},
				CreatedAt:     at.Add(-10 * time.Minute),
				RequestedSize: 8,
				Members: []legion.MemberRecord{
					{ID: "a", LastActive: at},
					{ID: "b", LastActive: at.Add(-time.Second)},
				},
				Leader:   "a",
				State:    legion.Pursuing,
				Tactic:   legion.Encirclement,
				Cohesion: 0.8,
				Morale:   0.6,
				PeakSize: 8,
			}},
			Warnings:  []registry.WarningRecord{{Actor: "player-2", PendingWarning: registry.PendingWarning{IssuedAt: at, Anchor: host.Vec3i{Y: 64}}}},
			Cooldowns: []registry.TimerRecord{{Actor: "player-3", At: at.Add(5 * time.Minute)}},
		},
		World: world.State{
			Tick:    tick,
			Spawned: 8,
			Actors:  []world.ActorRecord{{Ref: "player-1", Pos: host.Vec3i{Y: 64}, Health: 20}},
			Agents:  []world.AgentRecord{{ID: "a", Legion: 2, Leader: true, Pos: host.Vec3i{X: 69, Y: 64}, Health: 30, MaxHealth: 30}},
		},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := sample(1200)
	path := PathFor(dir, want.Header.Tick)
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temporary file left behind: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestLatestAndPrune(t *testing.T) {
	dir := t.TempDir()
	if _, err := Latest(dir); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("empty dir: %v", err)
	}
	for _, tick := range []uint64{1200, 30, 600} {
		if err := WriteSnapshot(PathFor(dir, tick), sample(tick)); err != nil {
			t.Fatalf("write %d: %v", tick, err)
		}
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	latest, err := Latest(dir)
	if err != nil || latest != PathFor(dir, 1200) {
		t.Fatalf("latest=%s err=%v", latest, err)
	}
	if err := Prune(dir, 2); err != nil {
		t.Fatalf("prune: %v", err)
	}
	paths, _ := List(dir)
	if len(paths) != 2 || paths[0] != PathFor(dir, 600) {
		t.Fatalf("after prune: %v", paths)
	}
}

func TestReadSnapshot_RejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	s := sample(5)
	s.Header.Version = 99
	path := PathFor(dir, 5)
	if err := WriteSnapshot(path, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
