package registry

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
)

// schedule is the gate that may issue one new pending warning per firing.
func (r *Registry) schedule(now time.Time) {
	for a, until := range r.cooldowns {
		if !now.Before(until) {
			delete(r.cooldowns, a)
		}
	}
	if now.Sub(r.startedAt) < r.set.StartupGrace {
		return
	}
	if len(r.legions)+len(r.warnings) >= r.set.MaxConcurrent {
		return
	}
	if r.nextEval.IsZero() {
		r.nextEval = now.Add(r.rollInterval())
		return
	}
	if now.Before(r.nextEval) {
		return
	}
	r.nextEval = now.Add(r.rollInterval())

	if !r.nightAllows() {
		return
	}
	eligible := r.eligibleActors(now)
	if len(eligible) == 0 {
		return
	}
	pick := eligible[r.rng.Intn(len(eligible))]
	if r.rng.Float64() >= r.set.SpawnChance {
		return
	}
	pos, ok := r.actorPosition(pick)
	if !ok {
		return
	}
	r.warnings[pick] = PendingWarning{IssuedAt: now, Anchor: pos}
	r.counters.WarningsIssued++
	r.guard("notify_warn", func() { r.notify.Warn(pick, pos) })
	r.log.Info("legion warning issued", zap.String("actor", string(pick)), zap.Stringer("pos", pos))
	r.record(LifecycleEvent{Kind: WarningIssued, At: now, Actor: pick, Pos: posPtr(pos)})
}

func (r *Registry) rollInterval() time.Duration {
	span := r.set.IntervalMax - r.set.IntervalMin
	if span <= 0 {
		return r.set.IntervalMin
	}
	return r.set.IntervalMin + time.Duration(r.rng.Float64()*float64(span))
}

func (r *Registry) nightAllows() bool {
	if !r.set.NightOnly || r.set.Development {
		return true
	}
	dc, ok := r.host.(host.DayCycle)
	if !ok {
		return true
	}
	night := false
	if !r.guard("is_night", func() { night = dc.IsNight() }) {
		return false
	}
	return night
}

// eligibleActors lists present actors, sorted, that are not already hunted,
// cooling down or warned.
func (r *Registry) eligibleActors(now time.Time) []host.ActorRef {
	_, present, ok := r.presentActors()
	if !ok {
		return nil
	}
	targeted := r.targeted()
	out := present[:0:0]
	for _, a := range present {
		if targeted[a] {
			continue
		}
		if until, ok := r.cooldowns[a]; ok && now.Before(until) {
			continue
		}
		if _, ok := r.warnings[a]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

// targeted is the set of actors hunted by a legion that still has members.
func (r *Registry) targeted() map[host.ActorRef]bool {
	out := map[host.ActorRef]bool{}
	for _, l := range r.legions {
		if l.Size() > 0 {
			out[l.Target] = true
		}
	}
	return out
}

// escalate turns due warnings into spawn attempts, anchored where the actor
// is now.
func (r *Registry) escalate(now time.Time) {
	if len(r.warnings) == 0 {
		return
	}
	actors := make([]host.ActorRef, 0, len(r.warnings))
	for a, w := range r.warnings {
		if now.Sub(w.IssuedAt) >= r.set.WarningDelay {
			actors = append(actors, a)
		}
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i] < actors[j] })

	for _, a := range actors {
		delete(r.warnings, a)
		if err := r.escalateOne(a, now); err != nil {
			r.counters.WarningsDropped++
			r.log.Debug("legion warning dropped", zap.String("actor", string(a)), zap.Error(err))
			r.record(LifecycleEvent{Kind: WarningDropped, At: now, Actor: a, Reason: reasonOf(err)})
		}
	}
}

func (r *Registry) escalateOne(a host.ActorRef, now time.Time) error {
	present, _, ok := r.presentActors()
	if !ok || !present[a] {
		return ErrActorUnresolvable
	}
	pos, ok := r.actorPosition(a)
	if !ok {
		return ErrActorUnresolvable
	}
	if len(r.legions) >= r.set.MaxConcurrent {
		return ErrAtCapacity
	}
	if !r.nightAllows() {
		return ErrDaytime
	}
	if _, err := r.create(a, pos, r.rollSize(), now); err != nil {
		return err
	}
	r.cooldowns[a] = now.Add(r.set.Cooldown)
	return nil
}

func (r *Registry) rollSize() int {
	if r.set.MaxSize <= r.set.MinSize {
		return r.set.MinSize
	}
	return r.set.MinSize + r.rng.Intn(r.set.MaxSize-r.set.MinSize+1)
}

func reasonOf(err error) string {
	switch err {
	case ErrActorUnresolvable:
		return "actor_unresolvable"
	case ErrAtCapacity:
		return "at_capacity"
	case ErrDaytime:
		return "daytime"
	case ErrNoPlacement:
		return "no_placement"
	case ErrUnderStrength:
		return "under_strength"
	case ErrNotEligible:
		return "not_eligible"
	default:
		return "collaborator_failed"
	}
}
