// Package tactics turns a legion's current tactic into per-member
// directives. Each tactic is a pure function of the legion snapshot and its
// live members.
package tactics

import (
	"math"
	"sort"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
)

type Params struct {
	DispersalRadius float64
	// WoundedFraction sends members below it to the centre of a defensive ring.
	WoundedFraction float64
	// CriticalHealth marks members that need the leader's help.
	CriticalHealth  float64
	DefensiveExpand float64
	ScoutMax        int
	ScoutDistance   float64
}

func DefaultParams() Params {
	return Params{
		DispersalRadius: 24,
		WoundedFraction: 0.3,
		CriticalHealth:  0.3,
		DefensiveExpand: 1.5,
		ScoutMax:        2,
		ScoutDistance:   16,
	}
}

// ring is the fixed set of encirclement offsets around a target.
var ring = [...]host.Vec3i{
	{X: 2}, {X: -2}, {Z: 2}, {Z: -2},
	{X: 2, Z: 2}, {X: -2, Z: 2}, {X: 2, Z: -2}, {X: -2, Z: -2},
}

// frame is what every tactic function sees.
type frame struct {
	v       legion.Snapshot
	members []host.AgentState
	q       host.WorldQuery
	p       Params

	leader  *host.AgentState
	shared  host.ActorRef
	center  host.Vec3i
	hasCtr  bool
	targets map[host.AgentID]bool
}

type tacticFunc func(f *frame) []host.Directive

type Coordinator struct {
	p     Params
	table map[legion.Tactic]tacticFunc
}

func New(p Params) *Coordinator {
	return &Coordinator{
		p: p,
		table: map[legion.Tactic]tacticFunc{
			legion.Concentration:      concentration,
			legion.Encirclement:       encirclement,
			legion.Dispersal:          dispersal,
			legion.DefensiveFormation: defensive,
			legion.Reconnaissance:     reconnaissance,
			legion.ResourceSharing:    resourceSharing,
			legion.Guerrilla:          guerrilla,
		},
	}
}

// Compute is the leader's whole-legion pass. members must be the legion's
// live members; every member gets exactly one directive, in member order.
// A directive never replaces a target a member already holds, and a member
// the tactic does not position gets a nil MoveTo so its old hint is dropped.
func (c *Coordinator) Compute(v legion.Snapshot, members []host.AgentState, q host.WorldQuery) []host.Directive {
	if len(members) == 0 {
		return nil
	}
	members = append([]host.AgentState(nil), members...)
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	f := &frame{v: v, members: members, q: q, p: c.p, targets: map[host.AgentID]bool{}}
	pos := make([]host.Vec3i, 0, len(members))
	for i := range members {
		m := &members[i]
		if m.ID == v.Leader {
			f.leader = m
		}
		if m.Target != "" {
			f.targets[m.ID] = true
		}
		pos = append(pos, m.Pos)
	}
	f.center, f.hasCtr = legion.Centroid(pos)
	f.shared = v.Target
	if f.leader != nil && f.leader.Target != "" {
		f.shared = f.leader.Target
	}

	fn, ok := c.table[v.Tactic]
	if !ok {
		fn = concentration
	}
	return f.finish(fn(f))
}

// ComputeSelf is the per-member pass used when no leader coordinates: the
// member only picks up the legion target if it has none, and drops any
// position hint left from the last leader pass.
func (c *Coordinator) ComputeSelf(v legion.Snapshot, self host.AgentState) host.Directive {
	d := host.Directive{Agent: self.ID}
	if self.Target == "" {
		d.Target = v.Target
	}
	return d
}

// finish strips target overrides and merges the tactic's output into one
// directive per member.
func (f *frame) finish(in []host.Directive) []host.Directive {
	byID := make(map[host.AgentID]int, len(f.members))
	out := make([]host.Directive, len(f.members))
	for i, m := range f.members {
		byID[m.ID] = i
		out[i].Agent = m.ID
	}
	for _, d := range in {
		i, ok := byID[d.Agent]
		if !ok {
			continue
		}
		if d.Target != "" && !f.targets[d.Agent] {
			out[i].Target = d.Target
		}
		if d.MoveTo != nil {
			out[i].MoveTo = d.MoveTo
		}
	}
	return out
}

func (f *frame) adopt() []host.Directive {
	if f.shared == "" {
		return nil
	}
	out := make([]host.Directive, 0, len(f.members))
	for _, m := range f.members {
		out = append(out, host.Directive{Agent: m.ID, Target: f.shared})
	}
	return out
}

// rally is the leader's position, or the centroid without a live leader.
func (f *frame) rally() host.Vec3i {
	if f.leader != nil {
		return f.leader.Pos
	}
	return f.center
}

func move(p host.Vec3i) *host.Vec3i { return &p }

func concentration(f *frame) []host.Directive { return f.adopt() }

func encirclement(f *frame) []host.Directive {
	out := f.adopt()
	tpos, ok := f.q.ActorPosition(f.shared)
	if !ok {
		return out
	}
	for i, m := range f.members {
		if i >= len(ring) {
			break
		}
		out = append(out, host.Directive{Agent: m.ID, MoveTo: move(tpos.Add(ring[i]))})
	}
	return out
}

func dispersal(f *frame) []host.Directive {
	actors := f.q.ActorsNear(f.rally(), f.p.DispersalRadius)
	if len(actors) == 0 {
		return f.adopt()
	}
	actors = append([]host.ActorRef(nil), actors...)
	sort.Slice(actors, func(i, j int) bool { return actors[i] < actors[j] })

	load := make(map[host.ActorRef]int, len(actors))
	for _, m := range f.members {
		if m.Target != "" {
			load[m.Target]++
		}
	}
	var out []host.Directive
	for _, m := range f.members {
		if m.Target != "" {
			continue
		}
		best := actors[0]
		for _, a := range actors[1:] {
			if load[a] < load[best] {
				best = a
			}
		}
		load[best]++
		out = append(out, host.Directive{Agent: m.ID, Target: best})
	}
	return out
}

func defensive(f *frame) []host.Directive {
	out := f.adopt()
	if !f.hasCtr {
		return out
	}
	c := f.center
	for _, m := range f.members {
		dst := c
		if m.HealthFraction() >= f.p.WoundedFraction {
			dst = host.Vec3i{
				X: c.X + int(math.Round(float64(m.Pos.X-c.X)*f.p.DefensiveExpand)),
				Y: m.Pos.Y,
				Z: c.Z + int(math.Round(float64(m.Pos.Z-c.Z)*f.p.DefensiveExpand)),
			}
		}
		out = append(out, host.Directive{Agent: m.ID, MoveTo: move(dst)})
	}
	return out
}

func reconnaissance(f *frame) []host.Directive {
	out := f.adopt()
	scouts := min(f.p.ScoutMax, len(f.members)/3)
	if scouts <= 0 {
		return out
	}
	origin := f.rally()
	n := 0
	for _, m := range f.members {
		if n == scouts {
			break
		}
		if f.leader != nil && m.ID == f.leader.ID {
			continue
		}
		a := 2 * math.Pi * float64(n) / float64(scouts)
		dst := host.Vec3i{
			X: origin.X + int(math.Round(math.Cos(a)*f.p.ScoutDistance)),
			Y: origin.Y,
			Z: origin.Z + int(math.Round(math.Sin(a)*f.p.ScoutDistance)),
		}
		out = append(out, host.Directive{Agent: m.ID, MoveTo: move(dst)})
		n++
	}
	return out
}

func resourceSharing(f *frame) []host.Directive {
	out := f.adopt()
	if f.leader == nil {
		return out
	}
	for _, m := range f.members {
		if m.ID == f.leader.ID {
			continue
		}
		if m.Target == "" || m.HealthFraction() < f.p.CriticalHealth {
			out = append(out, host.Directive{Agent: m.ID, MoveTo: move(f.leader.Pos)})
		}
	}
	return out
}

func guerrilla(f *frame) []host.Directive {
	out := f.adopt()
	fallback := f.rally()
	for _, m := range f.members {
		if f.leader != nil && m.ID == f.leader.ID {
			continue
		}
		if m.HealthFraction() < f.p.CriticalHealth {
			out = append(out, host.Directive{Agent: m.ID, MoveTo: move(fallback)})
		}
	}
	return out
}
