// Package placement finds safe ground for a legion to appear on.
package placement

import (
	"math"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/world/logic/mathx"
)

type Params struct {
	MinRadius   float64
	MaxRadius   float64
	MaxAttempts int
	// HeightWindow bounds the random starting height around the anchor.
	HeightWindow int
	// GroundSearch is how far the vertical search may move a candidate.
	GroundSearch   int
	MaxHeightDelta int
	NeighbourMin   int
	NeighbourMaxDY int
}

func DefaultParams() Params {
	return Params{
		MinRadius:      60,
		MaxRadius:      80,
		MaxAttempts:    80,
		HeightWindow:   10,
		GroundSearch:   20,
		MaxHeightDelta: 15,
		NeighbourMin:   5,
		NeighbourMaxDY: 3,
	}
}

// Find samples the annulus [MinRadius, MaxRadius] around anchor and returns
// the first candidate that is standable, hazard free, not too far above or
// below the anchor and surrounded by enough standable ground. It gives up
// after MaxAttempts.
func Find(q host.WorldQuery, rng host.RandomSource, anchor host.Vec3i, p Params) (host.Vec3i, bool) {
	for i := 0; i < p.MaxAttempts; i++ {
		theta := rng.Float64() * 2 * math.Pi
		d := p.MinRadius + rng.Float64()*(p.MaxRadius-p.MinRadius)
		start := host.Vec3i{
			X: anchor.X + int(math.Round(math.Cos(theta)*d)),
			Y: anchor.Y + rng.Intn(2*p.HeightWindow+1) - p.HeightWindow,
			Z: anchor.Z + int(math.Round(math.Sin(theta)*d)),
		}
		pos, ok := Settle(q, start, p.GroundSearch)
		if !ok {
			continue
		}
		if mathx.AbsInt(pos.Y-anchor.Y) > p.MaxHeightDelta {
			continue
		}
		if pos.DistXZ(anchor) < p.MinRadius {
			continue
		}
		if !neighbourhoodOK(q, pos, p) {
			continue
		}
		return pos, true
	}
	return host.Vec3i{}, false
}

// Settle runs the host's ground search from p and re-checks the result, so a
// sloppy host cannot hand back an unsafe position.
func Settle(q host.WorldQuery, p host.Vec3i, searchRange int) (host.Vec3i, bool) {
	pos, ok := q.GroundSearch(p, searchRange)
	if !ok {
		return host.Vec3i{}, false
	}
	if !q.IsStandable(pos) || q.IsHazard(pos) {
		return host.Vec3i{}, false
	}
	return pos, true
}

func neighbourhoodOK(q host.WorldQuery, pos host.Vec3i, p Params) bool {
	good := 0
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			n, ok := Settle(q, host.Vec3i{X: pos.X + dx, Y: pos.Y, Z: pos.Z + dz}, p.NeighbourMaxDY)
			if ok && mathx.AbsInt(n.Y-pos.Y) <= p.NeighbourMaxDY {
				good++
			}
		}
	}
	return good >= p.NeighbourMin
}

// Scatter drops one member near center, within spread blocks on each
// horizontal axis. It falls back to center itself when no offset settles.
func Scatter(q host.WorldQuery, rng host.RandomSource, center host.Vec3i, spread int, p Params) (host.Vec3i, bool) {
	if spread > 0 {
		for i := 0; i < 8; i++ {
			c := host.Vec3i{
				X: center.X + rng.Intn(2*spread+1) - spread,
				Y: center.Y,
				Z: center.Z + rng.Intn(2*spread+1) - spread,
			}
			pos, ok := Settle(q, c, p.NeighbourMaxDY*2)
			if ok && mathx.AbsInt(pos.Y-center.Y) <= p.NeighbourMaxDY*2 {
				return pos, true
			}
		}
	}
	return Settle(q, center, 0)
}
