package legion

import (
	"time"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/world/logic/mathx"
)

// Inputs is what one update observes about the world. Positions only holds
// members the host could resolve this tick.
type Inputs struct {
	Now              time.Time
	TargetPos        host.Vec3i
	TargetResolvable bool
	Positions        map[host.AgentID]host.Vec3i
}

type Transition struct {
	From, To State
	// Pruned are members dropped for staleness during this update.
	Pruned []host.AgentID
}

func (t Transition) Changed() bool { return t.From != t.To }

// Update advances the legion by one step. It never fails: an unresolvable
// target simply takes the target-lost branches.
func (l *Legion) Update(in Inputs, p Params) Transition {
	tr := Transition{From: l.state, To: l.state}
	if l.state == Disbanded {
		return tr
	}

	tr.Pruned = l.pruneStale(in.Now, p.Staleness)

	if in.TargetResolvable {
		l.targetLostAt = time.Time{}
	} else if l.targetLostAt.IsZero() {
		l.targetLostAt = in.Now
	}

	next := l.next(in, p)
	if next != l.state {
		l.enter(next, in.Now, p)
	}
	tr.To = l.state

	l.drift(p)
	l.tactic = l.deriveTactic(p)
	return tr
}

func (l *Legion) pruneStale(now time.Time, staleness time.Duration) []host.AgentID {
	if staleness <= 0 {
		return nil
	}
	var pruned []host.AgentID
	for _, id := range l.Members() {
		if now.Sub(l.members[id]) > staleness {
			pruned = append(pruned, id)
		}
	}
	for _, id := range pruned {
		l.RemoveMember(id, true)
	}
	return pruned
}

func (l *Legion) next(in Inputs, p Params) State {
	n := len(l.members)
	if n == 0 || l.state == Disbanding {
		return Disbanded
	}

	if l.state != Initializing && n < p.Floor {
		l.consecutiveFailures++
	} else {
		l.consecutiveFailures = 0
	}
	if l.consecutiveFailures > p.FloorUpdates {
		return Disbanding
	}

	sinceChange := in.Now.Sub(l.lastStateChangeAt)
	switch l.state {
	case Initializing:
		if n >= l.massingThreshold(p) {
			return Massing
		}
	case Massing:
		if l.massed(in, p) {
			return Pursuing
		}
	case Pursuing:
		if l.engaged(in, p) {
			return Engaging
		}
		if l.targetLost(in.Now, p) {
			return Searching
		}
	case Engaging:
		if l.morale < p.RetreatMorale || n < p.Floor {
			return Retreating
		}
		if !l.engaged(in, p) {
			if in.TargetResolvable {
				return Pursuing
			}
			return Searching
		}
	case Searching:
		if in.TargetResolvable {
			return Pursuing
		}
		if sinceChange > p.SearchTimeout {
			return Disbanding
		}
	case Retreating:
		if sinceChange >= p.Retreat {
			return Searching
		}
	}
	return l.state
}

func (l *Legion) enter(s State, now time.Time, p Params) {
	switch s {
	case Engaging:
		l.morale = mathx.Clamp01(l.morale + p.EngageBonus)
	case Retreating:
		l.morale = mathx.Clamp01(max(p.MoraleFloor, l.morale-p.RetreatPenalty))
	}
	if s == Disbanded {
		l.consecutiveFailures = 0
	}
	l.state = s
	l.lastStateChangeAt = now
}

// massingThreshold never exceeds the strength the legion was spawned with.
func (l *Legion) massingThreshold(p Params) int {
	t := p.MassingThreshold
	if l.peak > 0 && l.peak < t {
		t = l.peak
	}
	return max(t, 1)
}

func (l *Legion) massed(in Inputs, p Params) bool {
	pos := l.memberPositions(in)
	if len(pos) == 0 {
		return len(l.members) >= l.massingThreshold(p)
	}
	c := centroid(pos)
	near := 0
	for _, v := range pos {
		if v.Dist(c) <= p.CohesionRadius {
			near++
		}
	}
	return float64(near) >= p.MassedFraction*float64(len(pos))
}

func (l *Legion) engaged(in Inputs, p Params) bool {
	if !in.TargetResolvable {
		return false
	}
	if !l.lastContactAt.IsZero() && in.Now.Sub(l.lastContactAt) <= p.ContactWindow {
		return true
	}
	for _, v := range l.memberPositions(in) {
		if v.Dist(in.TargetPos) <= p.EngageRadius {
			return true
		}
	}
	return false
}

func (l *Legion) targetLost(now time.Time, p Params) bool {
	return !l.targetLostAt.IsZero() && now.Sub(l.targetLostAt) > p.TargetLoss
}

func (l *Legion) memberPositions(in Inputs) []host.Vec3i {
	if len(in.Positions) == 0 {
		return nil
	}
	out := make([]host.Vec3i, 0, len(l.members))
	for _, id := range l.Members() {
		if v, ok := in.Positions[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (l *Legion) drift(p Params) {
	n := len(l.members)
	switch {
	case n >= p.CohesionLargeSize:
		l.cohesion = min(1, l.cohesion+p.CohesionGain)
	case n <= p.CohesionSmallSize:
		l.cohesion = max(p.CohesionFloor, l.cohesion-p.CohesionLoss)
	}
	decay := p.MoraleDecay
	if n < p.SmallSize {
		decay *= 2
	}
	l.morale = max(p.MoraleFloor, l.morale-decay)

	l.cohesion = mathx.Clamp01(l.cohesion)
	l.morale = mathx.Clamp01(l.morale)
}

func (l *Legion) deriveTactic(p Params) Tactic {
	n := len(l.members)
	switch {
	case l.state == Disbanding || l.state == Disbanded:
		return l.tactic
	case l.state == Retreating:
		return Dispersal
	case l.state == Searching:
		return Reconnaissance
	case l.state == Initializing || l.state == Massing:
		return Concentration
	case l.morale < p.GuerrillaMorale:
		return Guerrilla
	case l.state == Engaging && n >= p.EncircleEngagingSize:
		return Encirclement
	case l.cohesion < p.DisperseCohesion:
		return Dispersal
	case l.state == Engaging && l.morale < p.DefensiveMorale:
		return DefensiveFormation
	case l.state == Pursuing && n >= p.EncirclePursuitSize:
		return Encirclement
	case l.state == Pursuing && n < p.SmallSize:
		return ResourceSharing
	default:
		return Concentration
	}
}

func centroid(pos []host.Vec3i) host.Vec3i {
	var sx, sy, sz int
	for _, v := range pos {
		sx += v.X
		sy += v.Y
		sz += v.Z
	}
	n := len(pos)
	return host.Vec3i{X: divRound(sx, n), Y: divRound(sy, n), Z: divRound(sz, n)}
}

// Centroid is the rounded mean position, or false when pos is empty.
func Centroid(pos []host.Vec3i) (host.Vec3i, bool) {
	if len(pos) == 0 {
		return host.Vec3i{}, false
	}
	return centroid(pos), true
}

func divRound(a, n int) int {
	if a >= 0 {
		return (a + n/2) / n
	}
	return -((-a + n/2) / n)
}
