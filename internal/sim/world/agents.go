package world

import (
	"errors"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
)

var ErrBlocked = errors.New("spawn position is not standable")

func (w *World) SpawnAgent(pos host.Vec3i, legionID int, isLeader bool) (host.AgentID, error) {
	if !w.IsStandable(pos) {
		return "", ErrBlocked
	}
	hp := float64(agentHealth)
	if isLeader {
		hp = leaderHealth
	}
	id := w.nextAgentID()
	w.agents[id] = &agent{
		id:        id,
		legion:    legionID,
		leader:    isLeader,
		pos:       pos,
		health:    hp,
		maxHealth: hp,
	}
	return id, nil
}

func (w *World) DespawnAgent(id host.AgentID) { delete(w.agents, id) }

func (w *World) AgentState(id host.AgentID) (host.AgentState, bool) {
	a, ok := w.agents[id]
	if !ok {
		return host.AgentState{}, false
	}
	return host.AgentState{
		ID:        a.id,
		Pos:       a.pos,
		Health:    a.health,
		MaxHealth: a.maxHealth,
		Target:    a.target,
	}, true
}

func (w *World) ApplyDirective(d host.Directive) {
	a, ok := w.agents[d.Agent]
	if !ok || a.released {
		return
	}
	if d.Target != "" && a.target == "" {
		if _, present := w.actors[d.Target]; present {
			a.target = d.Target
		}
	}
	if d.MoveTo != nil {
		m := *d.MoveTo
		a.moveTo = &m
	} else {
		a.moveTo = nil
	}
}

// ReleaseAgent turns a legion member into a stray. Strays idle until
// daybreak burns them.
func (w *World) ReleaseAgent(id host.AgentID) {
	a, ok := w.agents[id]
	if !ok {
		return
	}
	a.released = true
	a.legion = 0
	a.target = ""
	a.moveTo = nil
}

// moveAgents steps every bound agent toward its move hint, or its target
// when it has no hint.
func (w *World) moveAgents() {
	for _, a := range w.sortedAgents() {
		if a.released {
			continue
		}
		goal, ok := w.agentGoal(a)
		if !ok || goal.DistXZ(a.pos) < 1 {
			continue
		}
		w.stepToward(&a.pos, goal)
	}
}

func (w *World) agentGoal(a *agent) (host.Vec3i, bool) {
	if a.moveTo != nil {
		return *a.moveTo, true
	}
	if t, ok := w.actors[a.target]; ok {
		return t.pos, true
	}
	return host.Vec3i{}, false
}

func (w *World) burnReleased() {
	for _, a := range w.sortedAgents() {
		if !a.released {
			continue
		}
		delete(w.agents, a.id)
		w.log.Debug("stray burned at daybreak", zap.String("agent", string(a.id)))
	}
}
