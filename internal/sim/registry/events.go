package registry

import (
	"time"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
)

// drain applies the events queued before this tick started. Events that
// arrive while draining wait for the next tick.
func (r *Registry) drain(now time.Time) {
	n := len(r.events)
	for i := 0; i < n; i++ {
		select {
		case ev := <-r.events:
			r.apply(ev, now)
		default:
			return
		}
	}
}

func (r *Registry) apply(ev host.Event, now time.Time) {
	if ev.Kind == host.AgentJoined {
		r.join(ev.Agent, ev.Legion, now)
		return
	}
	l := r.legionOf(ev.Agent)
	if l == nil {
		return
	}
	switch ev.Kind {
	case host.AgentLeft, host.AgentDied:
		l.RemoveMember(ev.Agent, ev.Kind == host.AgentDied)
		delete(r.index, ev.Agent)
	case host.AgentHurt:
		l.Touch(ev.Agent, now)
	case host.ActorAttacked:
		l.Touch(ev.Agent, now)
		l.RecordContact(now)
	case host.ActorKilled:
		l.Touch(ev.Agent, now)
		l.RecordKill()
	}
}

func (r *Registry) join(agent host.AgentID, legionID int, now time.Time) {
	if agent == "" {
		return
	}
	if cur, ok := r.index[agent]; ok {
		if cur != legionID {
			r.log.Debug("agent already in another legion", zap.String("agent", string(agent)), zap.Int("legion", cur))
		}
		return
	}
	l, ok := r.legions[legionID]
	if !ok || l.State() == legion.Disbanding || l.State() == legion.Disbanded {
		return
	}
	if l.AddMember(agent, now) {
		r.index[agent] = legionID
	}
}

// legionOf resolves the member index, repairing dangling entries.
func (r *Registry) legionOf(agent host.AgentID) *legion.Legion {
	id, ok := r.index[agent]
	if !ok {
		return nil
	}
	l, ok := r.legions[id]
	if !ok {
		delete(r.index, agent)
		r.violation(&InvariantError{Legion: id, Detail: "member index points at missing legion for " + string(agent)})
		return nil
	}
	if !l.HasMember(agent) {
		delete(r.index, agent)
		r.violation(&InvariantError{Legion: id, Detail: "member index entry without membership for " + string(agent)})
		return nil
	}
	return l
}
