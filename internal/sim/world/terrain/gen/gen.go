package gen

import "legioncraft.ai/internal/sim/world/logic/mathx"

type Biome uint8

const (
	Plains Biome = iota
	Forest
	Desert
	Badlands
)

func (b Biome) String() string {
	switch b {
	case Forest:
		return "FOREST"
	case Desert:
		return "DESERT"
	case Badlands:
		return "BADLANDS"
	default:
		return "PLAINS"
	}
}

func BiomeAt(seed int64, x, z, regionSize int) Biome {
	if regionSize <= 0 {
		regionSize = 1
	}
	h := mathx.Hash2(seed, mathx.FloorDiv(x, regionSize), mathx.FloorDiv(z, regionSize))
	switch h % 8 {
	case 0, 1, 2:
		return Plains
	case 3, 4:
		return Forest
	case 5, 6:
		return Desert
	default:
		return Badlands
	}
}

// SurfaceY is the y of the topmost solid block in column (x,z).
func SurfaceY(seed int64, x, z, baseY, relief int) int {
	coarse := mathx.ValueNoise2(seed+11, x, z, 48)
	fine := mathx.ValueNoise2(seed+12, x, z, 12)
	n := coarse*0.75 + fine*0.25
	return baseY + int(float64(relief)*(2*n-1))
}

// Roughness adds a badlands step pattern on top of SurfaceY.
func Roughness(seed int64, x, z int) int {
	return int(mathx.Hash2(seed+13, mathx.FloorDiv(x, 3), mathx.FloorDiv(z, 3)) % 7)
}

func ScalePermille(base uint64, scalePermille int) uint64 {
	if scalePermille <= 0 {
		scalePermille = 1000
	}
	scaled := (base*uint64(scalePermille) + 500) / 1000
	if scaled > 1000 {
		return 1000
	}
	return scaled
}

// InCluster reports whether (x,z) falls inside a disc of the given radius
// centred somewhere in one of the 3x3 neighbouring grid cells. Each cell
// hosts a disc with probability probPermille/1000.
func InCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx, cgz := gx+dx, gz+dz
			h := mathx.Hash2(seed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}
			cx := cgx*grid + int((h>>10)%uint64(grid))
			cz := cgz*grid + int((h>>20)%uint64(grid))
			ddx, ddz := x-cx, z-cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}

// Sprinkle rolls a per-column chance in permille.
func Sprinkle(seed int64, x, z, permille int) bool {
	return int(mathx.Hash2(seed, x, z)%1000) < mathx.ClampInt(permille, 0, 1000)
}
