package world

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
	"legioncraft.ai/internal/sim/legion/tactics"
	"legioncraft.ai/internal/sim/registry"
	"legioncraft.ai/internal/sim/tuning"
)

func testWorld(t *testing.T, seed int64) *World {
	t.Helper()
	cfg := ConfigFrom(tuning.Defaults().World)
	cfg.Seed = seed
	return New(cfg, nil, nil)
}

type eventLog struct{ events []host.Event }

func (l *eventLog) push(ev host.Event) bool {
	l.events = append(l.events, ev)
	return true
}

func (l *eventLog) has(k host.EventKind) bool {
	for _, ev := range l.events {
		if ev.Kind == k {
			return true
		}
	}
	return false
}

func TestNew_ActorsStartOnSafeGround(t *testing.T) {
	w := testWorld(t, 7)
	actors := w.PresentActors()
	if len(actors) != 3 {
		t.Fatalf("actors=%d want 3", len(actors))
	}
	for _, a := range actors {
		p, ok := w.ActorPosition(a)
		if !ok {
			t.Fatalf("%s has no position", a)
		}
		if !w.IsStandable(p) || w.IsHazard(p) {
			t.Fatalf("%s at unsafe %v", a, p)
		}
	}
}

func TestGroundSearch_ReturnsStandable(t *testing.T) {
	w := testWorld(t, 3)
	rng := rand.New(rand.NewSource(3))
	hits := 0
	for i := 0; i < 300; i++ {
		p := host.Vec3i{X: rng.Intn(400) - 200, Y: 64 + rng.Intn(21) - 10, Z: rng.Intn(400) - 200}
		q, ok := w.GroundSearch(p, 20)
		if !ok {
			continue
		}
		hits++
		if !w.IsStandable(q) {
			t.Fatalf("ground search from %v returned %v which is not standable", p, q)
		}
		if q.X != p.X || q.Z != p.Z {
			t.Fatalf("ground search left the column: %v -> %v", p, q)
		}
	}
	if hits == 0 {
		t.Fatalf("no ground found anywhere")
	}
}

func TestSpawnAgent_DeterministicIDs(t *testing.T) {
	a := testWorld(t, 11)
	b := testWorld(t, 11)
	p, _ := a.ActorPosition("player-1")

	ida, err := a.SpawnAgent(p, 1, true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	idb, _ := b.SpawnAgent(p, 1, true)
	if ida != idb {
		t.Fatalf("ids differ: %s vs %s", ida, idb)
	}
	if _, err := uuid.Parse(string(ida)); err != nil {
		t.Fatalf("id %q is not a uuid: %v", ida, err)
	}
	st, _ := a.AgentState(ida)
	if st.MaxHealth != leaderHealth {
		t.Fatalf("leader health=%v", st.MaxHealth)
	}
}

func TestSpawnAgent_RejectsAir(t *testing.T) {
	w := testWorld(t, 1)
	if _, err := w.SpawnAgent(host.Vec3i{X: 0, Y: 120, Z: 0}, 1, false); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestApplyDirective_KeepsExistingTarget(t *testing.T) {
	w := testWorld(t, 5)
	w.AddActor("other", host.Vec3i{X: 20, Z: 20})
	p, _ := w.ActorPosition("player-1")
	id, err := w.SpawnAgent(p, 1, false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	w.ApplyDirective(host.Directive{Agent: id, Target: "player-1"})
	w.ApplyDirective(host.Directive{Agent: id, Target: "other"})
	st, _ := w.AgentState(id)
	if st.Target != "player-1" {
		t.Fatalf("target=%s want player-1", st.Target)
	}

	w.RemoveActor("player-1")
	st, _ = w.AgentState(id)
	if st.Target != "" {
		t.Fatalf("target should clear when the actor leaves, got %s", st.Target)
	}
}

func TestApplyDirective_TacticSwitchDropsMoveHint(t *testing.T) {
	w := testWorld(t, 5)
	p, _ := w.ActorPosition("player-1")
	id, err := w.SpawnAgent(p, 1, true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	far := host.Vec3i{X: p.X + 30, Y: p.Y, Z: p.Z + 10}
	w.ApplyDirective(host.Directive{Agent: id, Target: "player-1", MoveTo: &far})
	if goal, _ := w.agentGoal(w.agents[id]); goal != far {
		t.Fatalf("goal=%v want the move hint %v", goal, far)
	}

	st, _ := w.AgentState(id)
	v := legion.Snapshot{ID: 1, Target: "player-1", Tactic: legion.Concentration, Leader: id}
	ds := tactics.New(tactics.DefaultParams()).Compute(v, []host.AgentState{st}, w)
	if len(ds) != 1 {
		t.Fatalf("directives=%d want 1", len(ds))
	}
	for _, d := range ds {
		w.ApplyDirective(d)
	}

	actor, _ := w.ActorPosition("player-1")
	if goal, ok := w.agentGoal(w.agents[id]); !ok || goal != actor {
		t.Fatalf("goal=%v want the target at %v", goal, actor)
	}
}

func TestFight_ReportsHitsAndDeath(t *testing.T) {
	w := testWorld(t, 9)
	w.cfg.HitChance = 1
	log := &eventLog{}
	w.SetEventSink(log.push)

	p, _ := w.ActorPosition("player-1")
	id, err := w.SpawnAgent(p, 4, false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	w.ApplyDirective(host.Directive{Agent: id, Target: "player-1"})

	w.Step()
	if len(log.events) < 2 || log.events[0].Kind != host.ActorAttacked || log.events[1].Kind != host.AgentHurt {
		t.Fatalf("first exchange: %+v", log.events)
	}
	if log.events[0].Legion != 4 || log.events[1].Value != 0.75 {
		t.Fatalf("event details: %+v", log.events[:2])
	}

	for i := 0; i < 40; i++ {
		if _, alive := w.AgentState(id); !alive {
			break
		}
		w.Step()
	}
	if _, alive := w.AgentState(id); alive {
		t.Fatalf("agent survived 40 ticks at 100%% hit chance")
	}
	if !log.has(host.AgentDied) {
		t.Fatalf("no death event")
	}
}

func TestReleasedAgentsBurnAtDaybreak(t *testing.T) {
	w := testWorld(t, 2)
	w.cfg.DayTicks = 4
	p, _ := w.ActorPosition("player-1")
	id, _ := w.SpawnAgent(p, 1, false)
	w.ReleaseAgent(id)

	w.Step() // tick 1, night
	if _, ok := w.AgentState(id); !ok {
		t.Fatalf("stray burned at night")
	}
	w.Step() // tick 2, day
	if _, ok := w.AgentState(id); ok {
		t.Fatalf("stray survived daybreak")
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	w := testWorld(t, 13)
	p, _ := w.ActorPosition("player-2")
	w.SpawnAgent(p, 2, true)
	for i := 0; i < 25; i++ {
		w.Step()
	}
	want := w.Export()

	other := testWorld(t, 13)
	other.Import(want)
	if diff := cmp.Diff(want, other.Export()); diff != "" {
		t.Fatalf("import mismatch (-want +got):\n%s", diff)
	}
}

func TestWorld_DrivesRegistry(t *testing.T) {
	tu := tuning.Defaults()
	tu.DevelopmentMode = true
	tu.Spawn.StartupGraceS = 0

	w := testWorld(t, 21)
	clock := host.NewManualClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	r := registry.New(registry.Config{
		Tuning:    tu,
		Host:      w,
		Clock:     clock,
		Rand:      rand.New(rand.NewSource(21)),
		AfterTick: func(registry.Status) { w.Step() },
	})
	w.SetEventSink(r.Enqueue)

	created := 0
	for _, a := range w.PresentActors() {
		if _, err := r.ForceSpawn(a, 6); err == nil {
			created++
		}
	}
	if created == 0 {
		t.Fatalf("no legion could be placed on seed 21")
	}

	for i := 0; i < 600; i++ {
		clock.Advance(250 * time.Millisecond)
		r.Tick()
	}
	st := r.Stats()
	if st.Violations != 0 {
		t.Fatalf("invariant violations: %d", st.Violations)
	}
	for _, v := range r.Legions() {
		if len(v.Members) > 0 && v.Leader == "" {
			t.Fatalf("legion %d has members but no leader", v.ID)
		}
		if v.Cohesion < 0 || v.Cohesion > 1 || v.Morale < 0 || v.Morale > 1 {
			t.Fatalf("legion %d out of bounds: cohesion=%v morale=%v", v.ID, v.Cohesion, v.Morale)
		}
	}
}
