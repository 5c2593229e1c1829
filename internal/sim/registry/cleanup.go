package registry

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
)

// Cleanup runs one retirement pass outside the tick pipeline and reports how
// many legions were retired. A second call with nothing changed retires none.
func (r *Registry) Cleanup() int {
	now, ok := r.now()
	if !ok {
		return 0
	}
	return r.cleanup(now)
}

func (r *Registry) cleanup(now time.Time) int {
	if len(r.legions) == 0 {
		return 0
	}
	present, _, ok := r.presentActors()
	if !ok {
		return 0
	}
	retired := 0
	for _, id := range r.sortedIDs() {
		if born, ok := r.bornTick[id]; ok && born == r.tick {
			continue
		}
		l := r.legions[id]
		reason := r.retireReason(l, present, now)
		if reason == "" {
			continue
		}
		r.retire(l, reason, now)
		retired++
	}
	return retired
}

func (r *Registry) retireReason(l *legion.Legion, present map[host.ActorRef]bool, now time.Time) string {
	switch {
	case l.State() == legion.Disbanded:
		return "disbanded"
	case !present[l.Target]:
		return "target_gone"
	case l.Size() == 0 && now.Sub(l.CreatedAt) > r.set.EmptyGrace:
		return "empty"
	}
	pos, ok := r.actorPosition(l.Target)
	if !ok || pos.Dist(l.Anchor) <= r.set.MaxTargetDistance {
		delete(r.farSince, l.ID)
		return ""
	}
	since, tracked := r.farSince[l.ID]
	if !tracked {
		r.farSince[l.ID] = now
		return ""
	}
	if now.Sub(since) > r.set.DistanceGrace {
		return "target_far"
	}
	return ""
}

// retire removes a legion and every index entry pointing at it in one step,
// handing surviving agents back to the host.
func (r *Registry) retire(l *legion.Legion, reason string, now time.Time) {
	members := l.Members()
	for _, m := range members {
		delete(r.index, m)
	}
	for _, m := range members {
		r.releaseAgent(m)
	}
	delete(r.legions, l.ID)
	delete(r.farSince, l.ID)
	delete(r.bornTick, l.ID)
	r.counters.Retired++
	r.log.Info("legion retired",
		zap.Int("legion", l.ID),
		zap.String("reason", reason),
		zap.Int("kills", l.Kills()),
		zap.Int("deaths", l.Deaths()),
	)
	r.record(LifecycleEvent{
		Kind:   LegionRetired,
		At:     now,
		Legion: l.ID,
		Actor:  l.Target,
		Reason: reason,
		Size:   len(members),
		Kills:  l.Kills(),
		Deaths: l.Deaths(),
	})
}

// verify checks the member index against the legions and repairs whatever
// disagrees.
func (r *Registry) verify() {
	for agent, id := range r.index {
		l, ok := r.legions[id]
		switch {
		case !ok:
			delete(r.index, agent)
			r.violation(&InvariantError{Legion: id, Detail: fmt.Sprintf("index entry %s points at missing legion", agent)})
		case !l.HasMember(agent):
			delete(r.index, agent)
			r.violation(&InvariantError{Legion: id, Detail: fmt.Sprintf("index entry %s is not a member", agent)})
		}
	}
	for _, id := range r.sortedIDs() {
		l := r.legions[id]
		for _, m := range l.Members() {
			cur, ok := r.index[m]
			if ok && cur == id {
				continue
			}
			if ok {
				// Two legions claim the agent; the indexed one keeps it.
				l.RemoveMember(m, false)
				r.violation(&InvariantError{Legion: id, Detail: fmt.Sprintf("member %s is indexed under legion %d", m, cur)})
				continue
			}
			r.index[m] = id
			r.violation(&InvariantError{Legion: id, Detail: fmt.Sprintf("member %s was not indexed", m)})
		}
		if err := l.Check(); err != nil {
			l.Heal()
			r.violation(&InvariantError{Legion: id, Detail: err.Error()})
		}
	}
}
