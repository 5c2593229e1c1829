// Package legion holds the per-legion state: membership, leader, the
// lifecycle state machine and the derived cohesion, morale and tactic.
package legion

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/world/logic/mathx"
)

type Legion struct {
	ID            int
	Target        host.ActorRef
	Anchor        host.Vec3i
	CreatedAt     time.Time
	RequestedSize int

	// members maps each member to its last activity; its key set is the
	// member set.
	members map[host.AgentID]time.Time
	leader  host.AgentID

	state    State
	tactic   Tactic
	cohesion float64
	morale   float64

	// consecutiveFailures counts updates spent below the floor.
	consecutiveFailures int
	kills               int
	deaths              int
	peak                int

	lastStateChangeAt time.Time
	targetLostAt      time.Time
	lastContactAt     time.Time
}

func New(id int, target host.ActorRef, anchor host.Vec3i, now time.Time, requested int) *Legion {
	return &Legion{
		ID:                id,
		Target:            target,
		Anchor:            anchor,
		CreatedAt:         now,
		RequestedSize:     requested,
		members:           map[host.AgentID]time.Time{},
		state:             Initializing,
		tactic:            Concentration,
		cohesion:          1,
		morale:            1,
		lastStateChangeAt: now,
	}
}

func (l *Legion) State() State                 { return l.state }
func (l *Legion) Tactic() Tactic               { return l.tactic }
func (l *Legion) Cohesion() float64            { return l.cohesion }
func (l *Legion) Morale() float64              { return l.morale }
func (l *Legion) Leader() host.AgentID         { return l.leader }
func (l *Legion) Size() int                    { return len(l.members) }
func (l *Legion) Kills() int                   { return l.kills }
func (l *Legion) Deaths() int                  { return l.deaths }
func (l *Legion) PeakSize() int                { return l.peak }
func (l *Legion) ConsecutiveFailures() int     { return l.consecutiveFailures }
func (l *Legion) LastStateChangeAt() time.Time { return l.lastStateChangeAt }

func (l *Legion) HasMember(id host.AgentID) bool {
	_, ok := l.members[id]
	return ok
}

// Members returns member ids in ascending order.
func (l *Legion) Members() []host.AgentID {
	out := make([]host.AgentID, 0, len(l.members))
	for id := range l.members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddMember admits id. The first member of an empty legion leads it.
func (l *Legion) AddMember(id host.AgentID, now time.Time) bool {
	if id == "" || l.state == Disbanded {
		return false
	}
	if _, ok := l.members[id]; ok {
		return false
	}
	l.members[id] = now
	if l.leader == "" {
		l.leader = id
	}
	if len(l.members) > l.peak {
		l.peak = len(l.members)
	}
	return true
}

// RemoveMember drops id; died also counts it as a loss.
func (l *Legion) RemoveMember(id host.AgentID, died bool) bool {
	if _, ok := l.members[id]; !ok {
		return false
	}
	delete(l.members, id)
	if died {
		l.deaths++
	}
	if l.leader == id {
		l.electLeader()
	}
	return true
}

// Touch refreshes a member's last activity.
func (l *Legion) Touch(id host.AgentID, now time.Time) {
	if _, ok := l.members[id]; ok {
		l.members[id] = now
	}
}

func (l *Legion) RecordKill() { l.kills++ }

func (l *Legion) RecordContact(now time.Time) { l.lastContactAt = now }

// electLeader picks the member with the earliest activity, lowest id on ties.
func (l *Legion) electLeader() {
	l.leader = ""
	var best time.Time
	for id, at := range l.members {
		if l.leader == "" || at.Before(best) || (at.Equal(best) && id < l.leader) {
			l.leader, best = id, at
		}
	}
}

// ErrInvariant wraps every violation reported by Check.
var ErrInvariant = errors.New("legion invariant violated")

// Check reports the first broken invariant.
func (l *Legion) Check() error {
	switch {
	case len(l.members) == 0 && l.leader != "":
		return fmt.Errorf("%w: legion %d has leader %s but no members", ErrInvariant, l.ID, l.leader)
	case len(l.members) > 0 && l.leader == "":
		return fmt.Errorf("%w: legion %d has %d members but no leader", ErrInvariant, l.ID, len(l.members))
	case l.leader != "" && !l.HasMember(l.leader):
		return fmt.Errorf("%w: legion %d leader %s is not a member", ErrInvariant, l.ID, l.leader)
	case l.cohesion < 0 || l.cohesion > 1:
		return fmt.Errorf("%w: legion %d cohesion %v", ErrInvariant, l.ID, l.cohesion)
	case l.morale < 0 || l.morale > 1:
		return fmt.Errorf("%w: legion %d morale %v", ErrInvariant, l.ID, l.morale)
	}
	return nil
}

// Heal repairs whatever Check would report.
func (l *Legion) Heal() {
	if l.leader == "" || !l.HasMember(l.leader) {
		l.electLeader()
	}
	l.cohesion = mathx.Clamp01(l.cohesion)
	l.morale = mathx.Clamp01(l.morale)
}
