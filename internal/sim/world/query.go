package world

import (
	"sort"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/world/logic/mathx"
)

func (w *World) block(p host.Vec3i) uint16 { return w.chunks.GetBlock(p.X, p.Y, p.Z) }

// IsStandable: two free blocks for the body on top of a full floor block.
func (w *World) IsStandable(p host.Vec3i) bool {
	if p.Y < 1 || p.Y+1 >= w.cfg.Height {
		return false
	}
	return w.blocks.Empty(w.block(p)) &&
		w.blocks.Empty(w.block(host.Vec3i{X: p.X, Y: p.Y + 1, Z: p.Z})) &&
		w.blocks.Floor(w.block(host.Vec3i{X: p.X, Y: p.Y - 1, Z: p.Z}))
}

// IsHazard reports damaging blocks at the feet, underneath or directly beside.
func (w *World) IsHazard(p host.Vec3i) bool {
	around := [...]host.Vec3i{
		p,
		{X: p.X, Y: p.Y - 1, Z: p.Z},
		{X: p.X + 1, Y: p.Y, Z: p.Z},
		{X: p.X - 1, Y: p.Y, Z: p.Z},
		{X: p.X, Y: p.Y, Z: p.Z + 1},
		{X: p.X, Y: p.Y, Z: p.Z - 1},
	}
	for _, q := range around {
		if w.blocks.Hazard(w.block(q)) {
			return true
		}
	}
	return false
}

// GroundSearch looks down from p first, then up, for a standable block.
func (w *World) GroundSearch(p host.Vec3i, maxRange int) (host.Vec3i, bool) {
	for dy := 0; dy <= maxRange; dy++ {
		q := host.Vec3i{X: p.X, Y: p.Y - dy, Z: p.Z}
		if w.IsStandable(q) {
			return q, true
		}
	}
	for dy := 1; dy <= maxRange; dy++ {
		q := host.Vec3i{X: p.X, Y: p.Y + dy, Z: p.Z}
		if w.IsStandable(q) {
			return q, true
		}
	}
	return host.Vec3i{}, false
}

func (w *World) ActorsNear(p host.Vec3i, radius float64) []host.ActorRef {
	var out []host.ActorRef
	for ref, a := range w.actors {
		if a.pos.Dist(p) <= radius {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (w *World) ActorPosition(ref host.ActorRef) (host.Vec3i, bool) {
	a, ok := w.actors[ref]
	if !ok {
		return host.Vec3i{}, false
	}
	return a.pos, true
}

func (w *World) PresentActors() []host.ActorRef {
	out := make([]host.ActorRef, 0, len(w.actors))
	for _, a := range w.sortedActors() {
		out = append(out, a.ref)
	}
	return out
}

// surface finds safe ground near (x, z), spiralling outwards.
func (w *World) surface(x, z int) (host.Vec3i, bool) {
	for r := 0; r <= 16; r++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if max(mathx.AbsInt(dx), mathx.AbsInt(dz)) != r {
					continue
				}
				top := w.chunks.TopSolid(x+dx, z+dz)
				p := host.Vec3i{X: x + dx, Y: top + 1, Z: z + dz}
				if w.IsStandable(p) && !w.IsHazard(p) {
					return p, true
				}
			}
		}
	}
	return host.Vec3i{}, false
}

// walkable reports where a walker at from ends up when stepping onto column
// (x, z): at most one block up or two down, never onto a hazard.
func (w *World) walkable(from host.Vec3i, x, z int) (host.Vec3i, bool) {
	for _, dy := range [...]int{0, 1, -1, -2} {
		q := host.Vec3i{X: x, Y: from.Y + dy, Z: z}
		if w.IsStandable(q) {
			if w.IsHazard(q) {
				return host.Vec3i{}, false
			}
			return q, true
		}
	}
	return host.Vec3i{}, false
}
