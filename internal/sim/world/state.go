package world

import (
	"math/rand"
	"sort"

	"legioncraft.ai/internal/sim/host"
)

type ActorRecord struct {
	Ref    host.ActorRef `json:"ref"`
	Pos    host.Vec3i    `json:"pos"`
	Health int           `json:"health"`
}

type AgentRecord struct {
	ID        host.AgentID  `json:"id"`
	Legion    int           `json:"legion,omitempty"`
	Leader    bool          `json:"leader,omitempty"`
	Pos       host.Vec3i    `json:"pos"`
	Health    float64       `json:"health"`
	MaxHealth float64       `json:"max_health"`
	Target    host.ActorRef `json:"target,omitempty"`
	Released  bool          `json:"released,omitempty"`
}

// State is the part of the world that terrain generation cannot rebuild.
type State struct {
	Tick     uint64        `json:"tick"`
	Spawned  uint64        `json:"spawned"`
	ActorSeq int           `json:"actor_seq"`
	Actors   []ActorRecord `json:"actors"`
	Agents   []AgentRecord `json:"agents"`
	Respawns []uint64      `json:"respawns,omitempty"`
}

func (w *World) Export() State {
	s := State{Tick: w.tick, Spawned: w.spawned, ActorSeq: w.actorSeq}
	for _, a := range w.sortedActors() {
		s.Actors = append(s.Actors, ActorRecord{Ref: a.ref, Pos: a.pos, Health: a.health})
	}
	for _, a := range w.sortedAgents() {
		s.Agents = append(s.Agents, AgentRecord{
			ID:        a.id,
			Legion:    a.legion,
			Leader:    a.leader,
			Pos:       a.pos,
			Health:    a.health,
			MaxHealth: a.maxHealth,
			Target:    a.target,
			Released:  a.released,
		})
	}
	s.Respawns = append(s.Respawns, w.respawns...)
	sort.Slice(s.Respawns, func(i, j int) bool { return s.Respawns[i] < s.Respawns[j] })
	return s
}

// Import replaces actors and agents. The random source is reseeded from the
// seed and tick, so a resumed world is deterministic but does not replay the
// exact rolls of the original run.
func (w *World) Import(s State) {
	w.tick = s.Tick
	w.spawned = s.Spawned
	w.actorSeq = s.ActorSeq
	w.rng = rand.New(rand.NewSource(w.cfg.Seed ^ int64(s.Tick)))
	w.actors = map[host.ActorRef]*actor{}
	w.agents = map[host.AgentID]*agent{}
	for _, r := range s.Actors {
		w.actors[r.Ref] = &actor{ref: r.Ref, pos: r.Pos, health: r.Health, heading: headings[0]}
	}
	for _, r := range s.Agents {
		w.agents[r.ID] = &agent{
			id:        r.ID,
			legion:    r.Legion,
			leader:    r.Leader,
			pos:       r.Pos,
			health:    r.Health,
			maxHealth: r.MaxHealth,
			target:    r.Target,
			released:  r.Released,
		}
	}
	w.respawns = append([]uint64(nil), s.Respawns...)
}
