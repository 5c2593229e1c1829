package mathx

import "math"

// FloorDiv rounds toward negative infinity. b must be > 0.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// Mod is always in [0,b). b must be > 0.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

func Hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9))
}

// Unit2 maps Hash2 to [0,1).
func Unit2(seed int64, x, z int) float64 {
	return float64(Hash2(seed, x, z)>>11) / float64(uint64(1)<<53)
}

// ValueNoise2 is bilinear value noise over a lattice of the given cell size,
// smoothed with a cubic fade. Result is in [0,1).
func ValueNoise2(seed int64, x, z, cell int) float64 {
	if cell <= 1 {
		return Unit2(seed, x, z)
	}
	gx, gz := FloorDiv(x, cell), FloorDiv(z, cell)
	fx := fade(float64(Mod(x, cell)) / float64(cell))
	fz := fade(float64(Mod(z, cell)) / float64(cell))

	a := Unit2(seed, gx, gz)
	b := Unit2(seed, gx+1, gz)
	c := Unit2(seed, gx, gz+1)
	d := Unit2(seed, gx+1, gz+1)
	top := a + (b-a)*fx
	bot := c + (d-c)*fx
	return top + (bot-top)*fz
}

func fade(t float64) float64 { return t * t * (3 - 2*t) }
