package registry

import (
	"time"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
	"legioncraft.ai/internal/sim/legion/placement"
)

// create places and spawns a legion of the requested size around anchor.
// The legion becomes visible only when at least half its members spawned;
// otherwise every spawned member is despawned again.
func (r *Registry) create(target host.ActorRef, anchor host.Vec3i, size int, now time.Time) (int, error) {
	var (
		spot  host.Vec3i
		found bool
	)
	if !r.guard("placement", func() { spot, found = placement.Find(r.host, r.rng, anchor, r.set.Placement) }) || !found {
		r.counters.PlacementFailed++
		r.log.Info("legion placement failed", zap.String("actor", string(target)), zap.Stringer("anchor", anchor))
		r.record(LifecycleEvent{Kind: PlacementFailed, At: now, Actor: target, Pos: posPtr(anchor), Requested: size})
		return 0, ErrNoPlacement
	}

	r.nextID++
	id := r.nextID
	l := legion.New(id, target, spot, now, size)

	var spawned []host.AgentID
	for i := 0; i < size; i++ {
		pos := spot
		if i > 0 {
			var ok bool
			if !r.guard("scatter", func() { pos, ok = placement.Scatter(r.host, r.rng, spot, r.set.Scatter, r.set.Placement) }) || !ok {
				continue
			}
		}
		var (
			agent host.AgentID
			err   error
		)
		leader := l.Size() == 0
		if !r.guard("spawn_agent", func() { agent, err = r.host.SpawnAgent(pos, id, leader) }) {
			continue
		}
		if err != nil {
			r.log.Debug("agent spawn failed", zap.Int("legion", id), zap.Error(err))
			continue
		}
		if agent == "" {
			continue
		}
		if _, taken := r.index[agent]; taken || l.HasMember(agent) {
			r.log.Warn("host reused an agent id", zap.String("agent", string(agent)), zap.Int("legion", id))
			continue
		}
		l.AddMember(agent, now)
		spawned = append(spawned, agent)
	}

	if len(spawned) < (size+1)/2 {
		for _, a := range spawned {
			r.despawnAgent(a)
		}
		r.counters.Aborted++
		r.log.Info("legion spawn aborted",
			zap.Int("legion", id),
			zap.Int("requested", size),
			zap.Int("spawned", len(spawned)),
		)
		r.record(LifecycleEvent{
			Kind:      SpawnAborted,
			At:        now,
			Legion:    id,
			Actor:     target,
			Pos:       posPtr(spot),
			Requested: size,
			Size:      len(spawned),
		})
		return 0, ErrUnderStrength
	}

	r.legions[id] = l
	for _, a := range spawned {
		r.index[a] = id
	}
	r.bornTick[id] = r.tick
	r.counters.Created++
	r.guard("notify_spotted", func() { r.notify.LegionSpotted(target, spot) })
	r.log.Info("legion created",
		zap.Int("legion", id),
		zap.String("actor", string(target)),
		zap.Stringer("pos", spot),
		zap.Int("size", l.Size()),
	)
	r.record(LifecycleEvent{
		Kind:      LegionCreated,
		At:        now,
		Legion:    id,
		Actor:     target,
		Pos:       posPtr(spot),
		Requested: size,
		Size:      l.Size(),
	})
	return id, nil
}
