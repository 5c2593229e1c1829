package registry

import (
	"sort"
	"time"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
)

type WarningRecord struct {
	Actor host.ActorRef `json:"actor"`
	PendingWarning
}

type TimerRecord struct {
	Actor host.ActorRef `json:"actor,omitempty"`
	// Legion is set for distance-grace timers.
	Legion int       `json:"legion,omitempty"`
	At     time.Time `json:"at"`
}

// State is everything needed to resume a registry. Slices are sorted so two
// exports of the same registry are identical.
type State struct {
	NextID    int       `json:"next_id"`
	Tick      uint64    `json:"tick"`
	StartedAt time.Time `json:"started_at"`
	NextEval  time.Time `json:"next_eval"`
	Counters  Counters  `json:"counters"`

	Legions   []legion.Snapshot `json:"legions"`
	Warnings  []WarningRecord   `json:"warnings"`
	Cooldowns []TimerRecord     `json:"cooldowns"`
	FarSince  []TimerRecord     `json:"far_since"`
}

func (r *Registry) Export() State {
	s := State{
		NextID:    r.nextID,
		Tick:      r.tick,
		StartedAt: r.startedAt,
		NextEval:  r.nextEval,
		Counters:  r.counters,
		Legions:   r.Legions(),
	}
	for a, w := range r.warnings {
		s.Warnings = append(s.Warnings, WarningRecord{Actor: a, PendingWarning: w})
	}
	sort.Slice(s.Warnings, func(i, j int) bool { return s.Warnings[i].Actor < s.Warnings[j].Actor })
	for a, at := range r.cooldowns {
		s.Cooldowns = append(s.Cooldowns, TimerRecord{Actor: a, At: at})
	}
	sort.Slice(s.Cooldowns, func(i, j int) bool { return s.Cooldowns[i].Actor < s.Cooldowns[j].Actor })
	for id, at := range r.farSince {
		s.FarSince = append(s.FarSince, TimerRecord{Legion: id, At: at})
	}
	sort.Slice(s.FarSince, func(i, j int) bool { return s.FarSince[i].Legion < s.FarSince[j].Legion })
	return s
}

// Import replaces the registry's contents with s. Agents claimed by more
// than one legion stay with the lowest legion id; the member index is
// rebuilt from the legions.
func (r *Registry) Import(s State) {
	r.legions = map[int]*legion.Legion{}
	r.index = map[host.AgentID]int{}
	r.warnings = map[host.ActorRef]PendingWarning{}
	r.cooldowns = map[host.ActorRef]time.Time{}
	r.farSince = map[int]time.Time{}
	r.bornTick = map[int]uint64{}

	r.tick = s.Tick
	r.counters = s.Counters
	if !s.StartedAt.IsZero() {
		r.startedAt = s.StartedAt
	}
	r.nextEval = s.NextEval
	if s.StartedAt.After(r.lastNow) {
		r.lastNow = s.StartedAt
	}

	views := append([]legion.Snapshot(nil), s.Legions...)
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	maxID := s.NextID
	for _, v := range views {
		if _, dup := r.legions[v.ID]; dup || v.ID <= 0 {
			continue
		}
		l := legion.Restore(v)
		for _, m := range l.Members() {
			if _, taken := r.index[m]; taken {
				l.RemoveMember(m, false)
				continue
			}
			r.index[m] = l.ID
		}
		r.legions[l.ID] = l
		if l.ID > maxID {
			maxID = l.ID
		}
	}
	r.nextID = maxID

	for _, w := range s.Warnings {
		r.warnings[w.Actor] = w.PendingWarning
	}
	for _, c := range s.Cooldowns {
		r.cooldowns[c.Actor] = c.At
	}
	for _, f := range s.FarSince {
		if _, ok := r.legions[f.Legion]; ok {
			r.farSince[f.Legion] = f.At
		}
	}
}
