package legion

import (
	"time"

	"legioncraft.ai/internal/sim/host"
)

type MemberRecord struct {
	ID         host.AgentID `json:"id"`
	LastActive time.Time    `json:"last_active"`
}

// Snapshot is a detached copy of a legion. It is what readers outside the
// tick loop see, and what registry snapshots persist.
type Snapshot struct {
	ID            int           `json:"id"`
	Target        host.ActorRef `json:"target"`
	Anchor        host.Vec3i    `json:"anchor"`
	CreatedAt     time.Time     `json:"created_at"`
	RequestedSize int           `json:"requested_size"`

	Members []MemberRecord `json:"members"`
	Leader  host.AgentID   `json:"leader,omitempty"`

	State    State   `json:"state"`
	Tactic   Tactic  `json:"tactic"`
	Cohesion float64 `json:"cohesion"`
	Morale   float64 `json:"morale"`

	ConsecutiveFailures int `json:"consecutive_failures"`
	Kills               int `json:"kills"`
	Deaths              int `json:"deaths"`
	PeakSize            int `json:"peak_size"`

	LastStateChangeAt time.Time `json:"last_state_change_at"`
	TargetLostAt      time.Time `json:"target_lost_at,omitempty"`
	LastContactAt     time.Time `json:"last_contact_at,omitempty"`
}

func (s Snapshot) MemberIDs() []host.AgentID {
	out := make([]host.AgentID, len(s.Members))
	for i, m := range s.Members {
		out[i] = m.ID
	}
	return out
}

func (l *Legion) Snapshot() Snapshot {
	s := Snapshot{
		ID:                  l.ID,
		Target:              l.Target,
		Anchor:              l.Anchor,
		CreatedAt:           l.CreatedAt,
		RequestedSize:       l.RequestedSize,
		Leader:              l.leader,
		State:               l.state,
		Tactic:              l.tactic,
		Cohesion:            l.cohesion,
		Morale:              l.morale,
		ConsecutiveFailures: l.consecutiveFailures,
		Kills:               l.kills,
		Deaths:              l.deaths,
		PeakSize:            l.peak,
		LastStateChangeAt:   l.lastStateChangeAt,
		TargetLostAt:        l.targetLostAt,
		LastContactAt:       l.lastContactAt,
	}
	ids := l.Members()
	s.Members = make([]MemberRecord, len(ids))
	for i, id := range ids {
		s.Members[i] = MemberRecord{ID: id, LastActive: l.members[id]}
	}
	return s
}

// Restore rebuilds a legion from a snapshot and heals anything inconsistent.
func Restore(s Snapshot) *Legion {
	l := &Legion{
		ID:                  s.ID,
		Target:              s.Target,
		Anchor:              s.Anchor,
		CreatedAt:           s.CreatedAt,
		RequestedSize:       s.RequestedSize,
		members:             make(map[host.AgentID]time.Time, len(s.Members)),
		leader:              s.Leader,
		state:               s.State,
		tactic:              s.Tactic,
		cohesion:            s.Cohesion,
		morale:              s.Morale,
		consecutiveFailures: s.ConsecutiveFailures,
		kills:               s.Kills,
		deaths:              s.Deaths,
		peak:                s.PeakSize,
		lastStateChangeAt:   s.LastStateChangeAt,
		targetLostAt:        s.TargetLostAt,
		lastContactAt:       s.LastContactAt,
	}
	for _, m := range s.Members {
		if m.ID != "" {
			l.members[m.ID] = m.LastActive
		}
	}
	if len(l.members) > l.peak {
		l.peak = len(l.members)
	}
	l.Heal()
	return l
}
