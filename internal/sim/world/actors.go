package world

import (
	"fmt"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/world/logic/movement"
)

var headings = [...]host.Vec3i{
	{X: 1}, {X: -1}, {Z: 1}, {Z: -1},
	{X: 1, Z: 1}, {X: -1, Z: 1}, {X: 1, Z: -1}, {X: -1, Z: -1},
}

// AddActor places a named actor on safe ground near pos. It reports false
// when the name is taken or no ground was found.
func (w *World) AddActor(ref host.ActorRef, pos host.Vec3i) bool {
	if _, ok := w.actors[ref]; ok || ref == "" {
		return false
	}
	p, ok := w.surface(pos.X, pos.Z)
	if !ok {
		return false
	}
	w.actors[ref] = &actor{ref: ref, pos: p, health: actorHealth, heading: headings[w.rng.Intn(len(headings))]}
	return true
}

// RemoveActor takes an actor out of the world. Agents chasing it lose their
// target.
func (w *World) RemoveActor(ref host.ActorRef) {
	if _, ok := w.actors[ref]; !ok {
		return
	}
	delete(w.actors, ref)
	for _, a := range w.agents {
		if a.target == ref {
			a.target = ""
		}
	}
}

func (w *World) spawnActor(near host.Vec3i) {
	w.actorSeq++
	ref := host.ActorRef(fmt.Sprintf("player-%d", w.actorSeq))
	if !w.AddActor(ref, near) {
		w.log.Warn("no ground for actor", zap.String("actor", string(ref)), zap.Stringer("near", near))
	}
}

func (w *World) respawnActors() {
	kept := w.respawns[:0]
	for _, at := range w.respawns {
		if w.tick >= at {
			w.spawnActor(host.Vec3i{X: w.rng.Intn(97) - 48, Z: w.rng.Intn(97) - 48})
			continue
		}
		kept = append(kept, at)
	}
	w.respawns = kept
}

// walkActors moves every actor one block every other tick, turning now and
// then or when blocked.
func (w *World) walkActors() {
	if w.tick%2 != 0 {
		return
	}
	for _, a := range w.sortedActors() {
		if w.rng.Intn(16) == 0 {
			a.heading = headings[w.rng.Intn(len(headings))]
		}
		goal := a.pos.Add(host.Vec3i{X: a.heading.X * 8, Z: a.heading.Z * 8})
		if !w.stepToward(&a.pos, goal) {
			a.heading = headings[w.rng.Intn(len(headings))]
		}
	}
}

// stepToward moves pos one block toward goal, detouring around obstacles.
func (w *World) stepToward(pos *host.Vec3i, goal host.Vec3i) bool {
	from := *pos
	next, ok := movement.NextStep(
		movement.Pos{X: from.X, Z: from.Z},
		movement.Pos{X: goal.X, Z: goal.Z},
		6,
		func(p movement.Pos) bool {
			_, ok := w.walkable(from, p.X, p.Z)
			return ok
		},
	)
	if !ok {
		return false
	}
	q, ok := w.walkable(from, next.X, next.Z)
	if !ok {
		return false
	}
	*pos = q
	return true
}
