package world

import (
	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
)

// fight trades blows between agents and the actors they are next to. Every
// outcome is reported through the event sink.
func (w *World) fight() {
	for _, a := range w.sortedAgents() {
		if a.released || a.target == "" {
			continue
		}
		t, ok := w.actors[a.target]
		if !ok || t.pos.Dist(a.pos) > hitRange {
			continue
		}
		if w.rng.Float64() < w.cfg.HitChance {
			w.hitActor(a, t)
		}
		if _, alive := w.agents[a.id]; !alive {
			continue
		}
		if _, present := w.actors[t.ref]; present && w.rng.Float64() < w.cfg.HitChance {
			w.hitAgent(t, a)
		}
	}
}

func (w *World) hitActor(a *agent, t *actor) {
	if ok, _ := t.hits.Allow(w.tick, immunityTicks, 1); !ok {
		return
	}
	t.health -= agentDamage
	w.emit(host.Event{Kind: host.ActorAttacked, Agent: a.id, Legion: a.legion, Actor: t.ref})
	if t.health > 0 {
		return
	}
	w.emit(host.Event{Kind: host.ActorKilled, Agent: a.id, Legion: a.legion, Actor: t.ref})
	w.log.Info("actor killed", zap.String("actor", string(t.ref)), zap.Int("legion", a.legion))
	w.RemoveActor(t.ref)
	w.respawns = append(w.respawns, w.tick+uint64(w.cfg.RespawnTicks))
}

func (w *World) hitAgent(t *actor, a *agent) {
	a.health -= actorDamage
	if a.health > 0 {
		w.emit(host.Event{Kind: host.AgentHurt, Agent: a.id, Legion: a.legion, Actor: t.ref, Value: a.health / a.maxHealth})
		return
	}
	delete(w.agents, a.id)
	w.emit(host.Event{Kind: host.AgentDied, Agent: a.id, Legion: a.legion, Actor: t.ref})
}
