package legion

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"legioncraft.ai/internal/sim/host"
)

var t0 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func memberID(i int) host.AgentID { return host.AgentID(fmt.Sprintf("m%02d", i)) }

func newLegion(n int) *Legion {
	l := New(1, "steve", host.Vec3i{}, t0, n)
	for i := 0; i < n; i++ {
		l.AddMember(memberID(i), t0)
	}
	return l
}

func restored(state State, n int, morale, cohesion float64) *Legion {
	s := Snapshot{
		ID:                1,
		Target:            "steve",
		State:             state,
		Morale:            morale,
		Cohesion:          cohesion,
		LastStateChangeAt: t0,
	}
	for i := 0; i < n; i++ {
		s.Members = append(s.Members, MemberRecord{ID: memberID(i), LastActive: t0})
	}
	return Restore(s)
}

func farTarget(now time.Time) Inputs {
	return Inputs{Now: now, TargetResolvable: true, TargetPos: host.Vec3i{X: 500, Y: 64, Z: 500}}
}

func TestAddMember_FirstLeadsAndDuplicatesRejected(t *testing.T) {
	l := New(7, "alex", host.Vec3i{}, t0, 5)
	if l.Leader() != "" {
		t.Fatalf("empty legion should have no leader")
	}
	if !l.AddMember("b", t0) || !l.AddMember("a", t0) {
		t.Fatalf("add failed")
	}
	if l.AddMember("a", t0) {
		t.Fatalf("duplicate add accepted")
	}
	if l.Leader() != "b" {
		t.Fatalf("leader = %q, want first member b", l.Leader())
	}
	if l.Size() != 2 || l.PeakSize() != 2 {
		t.Fatalf("size=%d peak=%d", l.Size(), l.PeakSize())
	}
}

func TestRemoveMember_LeaderSuccession(t *testing.T) {
	l := New(1, "alex", host.Vec3i{}, t0, 5)
	l.AddMember("lead", t0)
	l.AddMember("zz", t0.Add(1*time.Second))
	l.AddMember("yy", t0.Add(1*time.Second))
	l.AddMember("late", t0.Add(5*time.Second))

	l.RemoveMember("lead", true)
	// yy and zz tie on activity; the lower id wins.
	if l.Leader() != "yy" {
		t.Fatalf("leader = %q, want yy", l.Leader())
	}
	if l.Deaths() != 1 {
		t.Fatalf("deaths = %d", l.Deaths())
	}

	l.RemoveMember("yy", false)
	l.RemoveMember("zz", false)
	if l.Leader() != "late" {
		t.Fatalf("leader = %q, want late", l.Leader())
	}
	l.RemoveMember("late", false)
	if l.Leader() != "" || l.Size() != 0 {
		t.Fatalf("empty legion kept leader %q", l.Leader())
	}
	if l.Deaths() != 1 {
		t.Fatalf("departures must not count as deaths, got %d", l.Deaths())
	}
}

func TestUpdate_PrunesStaleMembers(t *testing.T) {
	p := DefaultParams()
	l := New(1, "alex", host.Vec3i{}, t0, 3)
	l.AddMember("a", t0)
	l.AddMember("b", t0.Add(time.Second))
	l.AddMember("c", t0.Add(2*time.Second))

	tr := l.Update(farTarget(t0.Add(p.Staleness+500*time.Millisecond)), p)
	if len(tr.Pruned) != 1 || tr.Pruned[0] != "a" {
		t.Fatalf("pruned = %v, want [a]", tr.Pruned)
	}
	if l.HasMember("a") || l.Leader() != "b" {
		t.Fatalf("leader = %q after pruning a", l.Leader())
	}
	if l.Deaths() != len(tr.Pruned) {
		t.Fatalf("deaths = %d, want %d pruned members counted", l.Deaths(), len(tr.Pruned))
	}
}

func TestUpdate_HappyPathToEngaging(t *testing.T) {
	p := DefaultParams()
	l := newLegion(6)
	now := t0

	now = now.Add(time.Second)
	if tr := l.Update(farTarget(now), p); tr.To != Massing {
		t.Fatalf("want massing, got %v", tr.To)
	}

	now = now.Add(time.Second)
	in := farTarget(now)
	in.Positions = map[host.AgentID]host.Vec3i{}
	for i := 0; i < 6; i++ {
		in.Positions[memberID(i)] = host.Vec3i{X: i, Y: 64}
	}
	if tr := l.Update(in, p); tr.To != Pursuing {
		t.Fatalf("want pursuing, got %v", tr.To)
	}

	now = now.Add(time.Second)
	in.Now = now
	in.TargetPos = host.Vec3i{X: 3, Y: 64, Z: 4}
	before := l.Morale()
	if tr := l.Update(in, p); tr.To != Engaging {
		t.Fatalf("want engaging, got %v", tr.To)
	}
	if l.Morale() <= before {
		t.Fatalf("entering engaging should raise morale: %v -> %v", before, l.Morale())
	}
}

func TestUpdate_MassingWaitsForCohesion(t *testing.T) {
	p := DefaultParams()
	l := restored(Massing, 4, 1, 1)
	in := farTarget(t0.Add(time.Second))
	in.Positions = map[host.AgentID]host.Vec3i{
		memberID(0): {X: 0, Y: 64},
		memberID(1): {X: 100, Y: 64},
		memberID(2): {X: -100, Y: 64},
		memberID(3): {X: 0, Y: 64, Z: 100},
	}
	if tr := l.Update(in, p); tr.To != Massing {
		t.Fatalf("scattered legion should keep massing, got %v", tr.To)
	}
}

func TestUpdate_ContactCountsAsEngagement(t *testing.T) {
	p := DefaultParams()
	l := restored(Pursuing, 6, 0.8, 0.8)
	l.RecordContact(t0)
	if tr := l.Update(farTarget(t0.Add(2*time.Second)), p); tr.To != Engaging {
		t.Fatalf("recent contact should engage, got %v", tr.To)
	}
	if tr := l.Update(farTarget(t0.Add(time.Minute)), p); tr.To != Pursuing {
		t.Fatalf("stale contact far from target should pursue, got %v", tr.To)
	}
}

func TestUpdate_EngagingBelowFloorRetreats(t *testing.T) {
	p := DefaultParams()
	l := restored(Engaging, 2, 0.9, 0.8)
	tr := l.Update(Inputs{Now: t0.Add(time.Second), TargetResolvable: true, TargetPos: host.Vec3i{}}, p)
	if tr.From != Engaging || tr.To != Retreating {
		t.Fatalf("got %v -> %v, want engaging -> retreating", tr.From, tr.To)
	}
	if l.Tactic() != Dispersal {
		t.Fatalf("retreating tactic = %v", l.Tactic())
	}
	if l.Morale() >= 0.9-p.RetreatPenalty+1e-9 {
		t.Fatalf("retreat penalty not applied: %v", l.Morale())
	}
}

func TestUpdate_LowMoraleRetreats(t *testing.T) {
	p := DefaultParams()
	l := restored(Engaging, 6, 0.15, 0.8)
	if tr := l.Update(farTarget(t0.Add(time.Second)), p); tr.To != Retreating {
		t.Fatalf("got %v, want retreating", tr.To)
	}
}

func TestUpdate_RetreatThenSearchThenPursue(t *testing.T) {
	p := DefaultParams()
	l := restored(Retreating, 6, 0.6, 0.8)
	if tr := l.Update(farTarget(t0.Add(p.Retreat-time.Second)), p); tr.To != Retreating {
		t.Fatalf("retreat ended early: %v", tr.To)
	}
	if tr := l.Update(farTarget(t0.Add(p.Retreat)), p); tr.To != Searching {
		t.Fatalf("got %v, want searching", tr.To)
	}
	if l.Tactic() != Reconnaissance {
		t.Fatalf("searching tactic = %v", l.Tactic())
	}
	if tr := l.Update(farTarget(t0.Add(p.Retreat+time.Second)), p); tr.To != Pursuing {
		t.Fatalf("got %v, want pursuing", tr.To)
	}
}

func TestUpdate_TargetLossLeadsToSearching(t *testing.T) {
	p := DefaultParams()
	l := restored(Pursuing, 6, 0.8, 0.8)
	lost := func(at time.Duration) Transition {
		return l.Update(Inputs{Now: t0.Add(at)}, p)
	}
	if tr := lost(time.Second); tr.To != Pursuing {
		t.Fatalf("first miss moved to %v", tr.To)
	}
	if tr := lost(time.Second + p.TargetLoss); tr.To != Pursuing {
		t.Fatalf("exactly at timeout moved to %v", tr.To)
	}
	if tr := lost(2*time.Second + p.TargetLoss); tr.To != Searching {
		t.Fatalf("got %v, want searching", tr.To)
	}
}

func TestUpdate_SearchTimeoutDisbands(t *testing.T) {
	p := DefaultParams()
	l := restored(Searching, 6, 0.8, 0.8)
	now := t0.Add(p.SearchTimeout + time.Second)
	for _, id := range l.Members() {
		l.Touch(id, now)
	}
	if tr := l.Update(Inputs{Now: now}, p); tr.To != Disbanding {
		t.Fatalf("got %v, want disbanding", tr.To)
	}
	if tr := l.Update(Inputs{Now: now.Add(time.Second)}, p); tr.To != Disbanded {
		t.Fatalf("got %v, want disbanded", tr.To)
	}
	if tr := l.Update(Inputs{Now: now.Add(2 * time.Second)}, p); tr.Changed() || tr.To != Disbanded {
		t.Fatalf("disbanded must be terminal, got %v", tr.To)
	}
}

func TestUpdate_BelowFloorTooLongDisbands(t *testing.T) {
	p := DefaultParams()
	l := restored(Pursuing, 2, 0.9, 0.9)
	for i := 1; i <= p.FloorUpdates; i++ {
		if tr := l.Update(farTarget(t0.Add(time.Duration(i)*time.Second)), p); tr.To != Pursuing {
			t.Fatalf("update %d moved to %v", i, tr.To)
		}
	}
	if tr := l.Update(farTarget(t0.Add(time.Minute)), p); tr.To != Disbanding {
		t.Fatalf("got %v, want disbanding", tr.To)
	}
}

func TestUpdate_FloorCounterResetsOnRecovery(t *testing.T) {
	p := DefaultParams()
	l := restored(Pursuing, 2, 0.9, 0.9)
	for i := 1; i <= 3; i++ {
		l.Update(farTarget(t0.Add(time.Duration(i)*time.Second)), p)
	}
	if l.ConsecutiveFailures() != 3 {
		t.Fatalf("failures = %d", l.ConsecutiveFailures())
	}
	l.AddMember("reinforcement", t0)
	l.Update(farTarget(t0.Add(10*time.Second)), p)
	if l.ConsecutiveFailures() != 0 {
		t.Fatalf("failures not reset: %d", l.ConsecutiveFailures())
	}
}

func TestUpdate_EmptyLegionDisbandsFromAnyState(t *testing.T) {
	p := DefaultParams()
	for _, s := range []State{Initializing, Massing, Pursuing, Engaging, Searching, Retreating} {
		l := restored(s, 0, 0.5, 0.5)
		if tr := l.Update(farTarget(t0.Add(time.Second)), p); tr.To != Disbanded {
			t.Fatalf("%v with no members -> %v", s, tr.To)
		}
	}
}

func TestUpdate_MassingThresholdClampedToSpawnedStrength(t *testing.T) {
	p := DefaultParams()
	l := newLegion(3)
	if tr := l.Update(farTarget(t0.Add(time.Second)), p); tr.To != Massing {
		t.Fatalf("3-member legion stuck in %v", tr.To)
	}
}

func TestDeriveTactic_Table(t *testing.T) {
	p := DefaultParams()
	cases := []struct {
		state    State
		n        int
		morale   float64
		cohesion float64
		want     Tactic
	}{
		{Retreating, 12, 0.9, 0.9, Dispersal},
		{Searching, 12, 0.1, 0.1, Reconnaissance},
		{Initializing, 3, 0.1, 0.1, Concentration},
		{Massing, 12, 0.9, 0.9, Concentration},
		{Engaging, 12, 0.25, 0.9, Guerrilla},
		{Engaging, 12, 0.9, 0.3, Encirclement},
		{Engaging, 6, 0.9, 0.3, Dispersal},
		{Engaging, 6, 0.4, 0.9, DefensiveFormation},
		{Engaging, 6, 0.9, 0.9, Concentration},
		{Pursuing, 9, 0.9, 0.9, Encirclement},
		{Pursuing, 4, 0.9, 0.9, ResourceSharing},
		{Pursuing, 6, 0.9, 0.9, Concentration},
		{Pursuing, 6, 0.9, 0.4, Dispersal},
	}
	for _, tc := range cases {
		l := restored(tc.state, tc.n, tc.morale, tc.cohesion)
		if got := l.deriveTactic(p); got != tc.want {
			t.Fatalf("%v n=%d morale=%v cohesion=%v: got %v want %v", tc.state, tc.n, tc.morale, tc.cohesion, got, tc.want)
		}
	}
}

// runScript drives a legion through a pseudo-random but seeded sequence of
// membership changes and updates.
func runScript(seed int64, check func(step int, l *Legion, tr Transition)) *Legion {
	p := DefaultParams()
	rng := rand.New(rand.NewSource(seed))
	l := newLegion(8)
	now := t0
	next := 8
	for step := 0; step < 400; step++ {
		now = now.Add(time.Duration(rng.Intn(20000)) * time.Millisecond)
		switch rng.Intn(6) {
		case 0:
			if rng.Float64() < 0.3 {
				l.AddMember(memberID(next), now)
				next++
			}
		case 1:
			if ids := l.Members(); len(ids) > 0 {
				l.RemoveMember(ids[rng.Intn(len(ids))], rng.Intn(2) == 0)
			}
		case 2:
			for _, id := range l.Members() {
				if rng.Float64() < 0.8 {
					l.Touch(id, now)
				}
			}
		case 3:
			l.RecordContact(now)
		}
		in := Inputs{
			Now:              now,
			TargetResolvable: rng.Float64() < 0.7,
			TargetPos:        host.Vec3i{X: rng.Intn(40), Y: 64, Z: rng.Intn(40)},
			Positions:        map[host.AgentID]host.Vec3i{},
		}
		for _, id := range l.Members() {
			in.Positions[id] = host.Vec3i{X: rng.Intn(40), Y: 64, Z: rng.Intn(40)}
		}
		tr := l.Update(in, p)
		if check != nil {
			check(step, l, tr)
		}
	}
	return l
}

func TestUpdate_InvariantsHoldUnderRandomScripts(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		runScript(seed, func(step int, l *Legion, tr Transition) {
			if err := l.Check(); err != nil {
				t.Fatalf("seed %d step %d: %v", seed, step, err)
			}
			if tr.Changed() && !CanTransition(tr.From, tr.To) {
				t.Fatalf("seed %d step %d: illegal transition %v -> %v", seed, step, tr.From, tr.To)
			}
			if (l.Leader() == "") != (l.Size() == 0) {
				t.Fatalf("seed %d step %d: leader %q with %d members", seed, step, l.Leader(), l.Size())
			}
		})
	}
}

func TestUpdate_Deterministic(t *testing.T) {
	a := runScript(99, nil).Snapshot()
	b := runScript(99, nil).Snapshot()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same script diverged (-a +b):\n%s", diff)
	}
}

func TestSnapshot_RestoreHealsLeader(t *testing.T) {
	s := newLegion(3).Snapshot()
	s.Leader = "ghost"
	s.Morale = 3
	l := Restore(s)
	if err := l.Check(); err != nil {
		t.Fatalf("restore did not heal: %v", err)
	}
	if l.Leader() != memberID(0) {
		t.Fatalf("leader = %q", l.Leader())
	}
	if diff := cmp.Diff(newLegion(3).Snapshot().Members, l.Snapshot().Members); diff != "" {
		t.Fatalf("members changed:\n%s", diff)
	}
}

func TestCanTransition(t *testing.T) {
	if CanTransition(Disbanded, Pursuing) || CanTransition(Disbanded, Disbanded) {
		t.Fatalf("disbanded must be terminal")
	}
	if CanTransition(Massing, Engaging) {
		t.Fatalf("massing cannot jump to engaging")
	}
	if !CanTransition(Massing, Disbanding) || !CanTransition(Searching, Disbanded) {
		t.Fatalf("disband edges missing")
	}
}
