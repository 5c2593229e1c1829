package registry

import (
	"time"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
)

// advance updates every live legion and runs coordination for those whose
// cadence is due. A legion whose inputs cannot be read is skipped this tick.
func (r *Registry) advance(now time.Time) {
	for _, id := range r.sortedIDs() {
		l := r.legions[id]
		if l.State() == legion.Disbanded {
			continue
		}

		var (
			in   = legion.Inputs{Now: now, Positions: map[host.AgentID]host.Vec3i{}}
			live []host.AgentState
		)
		members := l.Members()
		ok := r.guard("legion_inputs", func() {
			in.TargetPos, in.TargetResolvable = r.host.ActorPosition(l.Target)
			for _, m := range members {
				st, alive := r.host.AgentState(m)
				if !alive {
					continue
				}
				st.ID = m
				live = append(live, st)
				in.Positions[m] = st.Pos
			}
		})
		if !ok {
			continue
		}

		tr := l.Update(in, r.set.Legion)
		for _, gone := range tr.Pruned {
			delete(r.index, gone)
			r.releaseAgent(gone)
		}
		if tr.Changed() {
			r.log.Debug("legion state changed",
				zap.Int("legion", id),
				zap.Stringer("from", tr.From),
				zap.Stringer("to", tr.To),
				zap.Int("size", l.Size()),
			)
			r.record(LifecycleEvent{
				Kind:   StateChanged,
				At:     now,
				Legion: id,
				Actor:  l.Target,
				From:   tr.From.String(),
				To:     tr.To.String(),
				Size:   l.Size(),
			})
		}

		if r.coordinationDue(id) && l.State() != legion.Disbanding && l.State() != legion.Disbanded {
			r.coordinate(l, live)
		}
	}
}

// coordinationDue staggers legions so they do not all coordinate on the
// same tick.
func (r *Registry) coordinationDue(id int) bool {
	every := uint64(max(r.set.CoordinateEvery, 1))
	return (r.tick+uint64(id))%every == 0
}

func (r *Registry) coordinate(l *legion.Legion, live []host.AgentState) {
	v := l.Snapshot()
	var (
		members    []host.AgentState
		leaderLive bool
	)
	for _, st := range live {
		if !l.HasMember(st.ID) {
			continue
		}
		members = append(members, st)
		if st.ID == v.Leader {
			leaderLive = true
		}
	}
	if len(members) == 0 {
		return
	}

	var directives []host.Directive
	if leaderLive {
		if !r.guard("tactics", func() { directives = r.coord.Compute(v, members, r.host) }) {
			return
		}
	} else {
		for _, st := range members {
			directives = append(directives, r.coord.ComputeSelf(v, st))
		}
	}
	for _, d := range directives {
		d := d
		r.guard("apply_directive", func() { r.host.ApplyDirective(d) })
	}
}
