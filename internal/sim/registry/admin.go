package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
)

type Stats struct {
	Legions         int `json:"legions"`
	Members         int `json:"members"`
	PendingWarnings int `json:"pending_warnings"`
	Cooldowns       int `json:"cooldowns"`

	Counters
	EventsDropped uint64 `json:"events_dropped"`
}

// Status is the per-tick picture handed to readers outside the tick loop.
type Status struct {
	Tick    uint64            `json:"tick"`
	At      int64             `json:"at_unix_ms"`
	Stats   Stats             `json:"stats"`
	Legions []legion.Snapshot `json:"legions"`
}

type adminReq struct {
	fn   func()
	done chan struct{}
}

// call runs fn on the tick goroutine and waits for it. It fails if ctx ends
// before the loop picks the request up.
func (r *Registry) call(ctx context.Context, fn func()) error {
	req := adminReq{fn: fn, done: make(chan struct{})}
	select {
	case r.admin <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForceSpawn creates a legion against actor immediately, skipping the
// cooldown, the roll and the warning. The concurrency cap still applies, and
// an actor already hunted is refused. A pending warning for the actor is
// consumed by the spawn. size <= 0 rolls a size.
func (r *Registry) ForceSpawn(actor host.ActorRef, size int) (int, error) {
	now, ok := r.now()
	if !ok {
		return 0, ErrActorUnresolvable
	}
	if len(r.legions) >= r.set.MaxConcurrent {
		return 0, ErrAtCapacity
	}
	if r.targeted()[actor] {
		return 0, ErrNotEligible
	}
	present, _, ok := r.presentActors()
	if !ok || !present[actor] {
		return 0, ErrActorUnresolvable
	}
	pos, ok := r.actorPosition(actor)
	if !ok {
		return 0, ErrActorUnresolvable
	}
	if size <= 0 {
		size = r.rollSize()
	}
	r.log.Info("forced legion spawn", zap.String("actor", string(actor)), zap.Int("size", size))
	id, err := r.create(actor, pos, size, now)
	if err != nil {
		return id, err
	}
	if _, ok := r.warnings[actor]; ok {
		delete(r.warnings, actor)
		r.log.Debug("pending warning fulfilled by forced spawn", zap.String("actor", string(actor)), zap.Int("legion", id))
	}
	return id, nil
}

// Clear retires every legion, despawning its agents, and forgets all
// pending warnings and cooldowns. Legion ids keep increasing afterwards.
func (r *Registry) Clear() int {
	now, _ := r.now()
	despawned := 0
	for _, id := range r.sortedIDs() {
		l := r.legions[id]
		members := l.Members()
		for _, m := range members {
			delete(r.index, m)
			r.despawnAgent(m)
		}
		despawned += len(members)
		delete(r.legions, id)
		r.counters.Retired++
		r.record(LifecycleEvent{
			Kind:   LegionRetired,
			At:     now,
			Legion: id,
			Actor:  l.Target,
			Reason: "cleared",
			Size:   len(members),
			Kills:  l.Kills(),
			Deaths: l.Deaths(),
		})
	}
	for k := range r.index {
		delete(r.index, k)
	}
	r.warnings = map[host.ActorRef]PendingWarning{}
	r.cooldowns = map[host.ActorRef]time.Time{}
	r.farSince = map[int]time.Time{}
	r.bornTick = map[int]uint64{}
	r.log.Info("registry cleared", zap.Int("despawned", despawned))
	return despawned
}

func (r *Registry) Stats() Stats {
	s := Stats{
		Legions:         len(r.legions),
		Members:         len(r.index),
		PendingWarnings: len(r.warnings),
		Cooldowns:       len(r.cooldowns),
		Counters:        r.counters,
		EventsDropped:   r.eventsDropped.Load(),
	}
	return s
}

func (r *Registry) Status() Status {
	return Status{
		Tick:    r.tick,
		At:      r.lastNow.UnixMilli(),
		Stats:   r.Stats(),
		Legions: r.Legions(),
	}
}

func (r *Registry) Legion(id int) (legion.Snapshot, bool) {
	l, ok := r.legions[id]
	if !ok {
		return legion.Snapshot{}, false
	}
	return l.Snapshot(), true
}

func (r *Registry) LegionOf(agent host.AgentID) (legion.Snapshot, bool) {
	l := r.legionOf(agent)
	if l == nil {
		return legion.Snapshot{}, false
	}
	return l.Snapshot(), true
}

// Legions returns detached views ordered by id.
func (r *Registry) Legions() []legion.Snapshot {
	out := make([]legion.Snapshot, 0, len(r.legions))
	for _, id := range r.sortedIDs() {
		out = append(out, r.legions[id].Snapshot())
	}
	return out
}

// The Request variants are safe to call from any goroutine while Run is
// active.

func (r *Registry) RequestSpawn(ctx context.Context, actor host.ActorRef, size int) (id int, err error) {
	if cerr := r.call(ctx, func() { id, err = r.ForceSpawn(actor, size) }); cerr != nil {
		return 0, cerr
	}
	return id, err
}

func (r *Registry) RequestClear(ctx context.Context) (n int, err error) {
	err = r.call(ctx, func() { n = r.Clear() })
	return n, err
}

func (r *Registry) RequestStatus(ctx context.Context) (st Status, err error) {
	err = r.call(ctx, func() { st = r.Status() })
	return st, err
}

func (r *Registry) RequestExport(ctx context.Context) (s State, err error) {
	err = r.call(ctx, func() { s = r.Export() })
	return s, err
}
