package store

import (
	"legioncraft.ai/internal/sim/world/logic/mathx"
	genpkg "legioncraft.ai/internal/sim/world/terrain/gen"
)

func (s *ChunkStore) GenerateChunk(ch *Chunk) {
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			s.generateColumn(ch, x, z)
		}
	}
}

func (s *ChunkStore) generateColumn(ch *Chunk, lx, lz int) {
	g := s.Gen
	b := g.Blocks
	wx := ch.CX*16 + lx
	wz := ch.CZ*16 + lz
	top := ch.Height - 1

	biome := genpkg.BiomeAt(g.Seed, wx, wz, g.BiomeRegionSize)
	surface := genpkg.SurfaceY(g.Seed, wx, wz, g.BaseY, g.Relief)
	if biome == genpkg.Badlands {
		surface += genpkg.Roughness(g.Seed, wx, wz)
	}
	surface = mathx.ClampInt(surface, 1, top-6)

	set := func(y int, id uint16) {
		if y >= 0 && y <= top {
			ch.Set(lx, y, lz, id)
		}
	}

	set(0, b.Bedrock)
	for y := 1; y <= surface; y++ {
		switch {
		case y <= surface-3:
			set(y, b.Stone)
		case biome == genpkg.Desert:
			set(y, b.Sand)
		case biome == genpkg.Badlands:
			set(y, b.Gravel)
		case y == surface:
			set(y, b.Grass)
		default:
			set(y, b.Dirt)
		}
	}

	sea := g.SeaLevel()
	if surface < sea {
		for y := surface + 1; y <= sea; y++ {
			set(y, b.Water)
		}
		return
	}

	scale := g.HazardProbScalePermille
	switch {
	case biome == genpkg.Badlands && genpkg.InCluster(g.Seed+101, wx, wz, 40, 3, genpkg.ScalePermille(500, scale)):
		set(surface, b.Lava)
		return
	case genpkg.InCluster(g.Seed+102, wx, wz, 64, 2, genpkg.ScalePermille(250, scale)):
		set(surface, b.Magma)
		return
	}

	switch biome {
	case genpkg.Desert:
		if genpkg.Sprinkle(g.Seed+201, wx, wz, 20) {
			set(surface+1, b.Cactus)
			set(surface+2, b.Cactus)
		}
	case genpkg.Forest:
		if genpkg.Sprinkle(g.Seed+202, wx, wz, 15) {
			for y := surface + 1; y <= surface+4; y++ {
				set(y, b.Log)
			}
			set(surface+5, b.Leaves)
		}
	case genpkg.Plains:
		if onFenceLine(g.Seed+301, wx, wz, 96, 6) {
			set(surface+1, b.Fence)
		}
	case genpkg.Badlands:
		if onFenceLine(g.Seed+302, wx, wz, 80, 5) {
			set(surface+1, b.Wall)
			set(surface+2, b.Wall)
		}
	}
}

// onFenceLine draws square pens: the grid lines every 8 blocks inside a cluster.
func onFenceLine(seed int64, x, z, grid, radius int) bool {
	if mathx.Mod(x, 8) != 0 && mathx.Mod(z, 8) != 0 {
		return false
	}
	return genpkg.InCluster(seed, x, z, grid, radius, 300)
}
