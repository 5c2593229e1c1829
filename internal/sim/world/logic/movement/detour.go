// Package movement picks the next block a walker should step onto.
package movement

type Pos struct {
	X int
	Z int
}

func manhattan(a, b Pos) int { return abs(a.X-b.X) + abs(a.Z-b.Z) }

// Fixed neighbour order keeps walks reproducible.
var dirs = [4]Pos{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}

// NextStep returns the neighbour of start to move onto when heading for goal.
// It steps along the axis with the larger gap; when that block is not
// passable it searches up to maxDepth steps for the reachable block closest
// to goal and takes the first step of that route.
func NextStep(start, goal Pos, maxDepth int, passable func(Pos) bool) (Pos, bool) {
	if start == goal {
		return start, false
	}
	dx, dz := goal.X-start.X, goal.Z-start.Z
	np := start
	if abs(dx) >= abs(dz) {
		np.X += sign(dx)
	} else {
		np.Z += sign(dz)
	}
	if passable(np) {
		return np, true
	}
	return detour(start, goal, maxDepth, passable)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func detour(start, goal Pos, maxDepth int, passable func(Pos) bool) (Pos, bool) {
	if maxDepth <= 0 {
		return Pos{}, false
	}
	type item struct {
		p     Pos
		depth int
		first Pos
	}
	startDist := manhattan(start, goal)
	seen := map[Pos]bool{start: true}
	queue := make([]item, 0, 64)
	for _, d := range dirs {
		np := Pos{X: start.X + d.X, Z: start.Z + d.Z}
		if !passable(np) {
			continue
		}
		seen[np] = true
		queue = append(queue, item{p: np, depth: 1, first: np})
	}

	var (
		best      item
		bestDist  = startDist
		foundBest bool
	)
	for head := 0; head < len(queue); head++ {
		it := queue[head]
		if d := manhattan(it.p, goal); d < bestDist || (foundBest && d == bestDist && it.depth < best.depth) {
			best, bestDist, foundBest = it, d, true
		}
		if it.depth >= maxDepth {
			continue
		}
		for _, d := range dirs {
			np := Pos{X: it.p.X + d.X, Z: it.p.Z + d.Z}
			if seen[np] || !passable(np) {
				continue
			}
			seen[np] = true
			queue = append(queue, item{p: np, depth: it.depth + 1, first: it.first})
		}
	}
	if !foundBest {
		return Pos{}, false
	}
	return best.first, true
}
