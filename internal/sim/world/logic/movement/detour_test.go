package movement

import "testing"

func TestNextStep_DirectWhenOpen(t *testing.T) {
	open := func(Pos) bool { return true }
	got, ok := NextStep(Pos{X: 0, Z: 0}, Pos{X: 5, Z: 0}, 8, open)
	if !ok || got != (Pos{X: 1, Z: 0}) {
		t.Fatalf("got %v ok=%v", got, ok)
	}
	if _, ok := NextStep(Pos{X: 2, Z: 2}, Pos{X: 2, Z: 2}, 8, open); ok {
		t.Fatalf("no step expected at the goal")
	}
}

func TestNextStep_DetoursAroundWall(t *testing.T) {
	// Wall at x=1 for z in [-2,2].
	passable := func(p Pos) bool {
		return !(p.X == 1 && p.Z >= -2 && p.Z <= 2)
	}
	start := Pos{X: 0, Z: 0}
	goal := Pos{X: 4, Z: 0}
	p := start
	for i := 0; i < 20 && p != goal; i++ {
		next, ok := NextStep(p, goal, 8, passable)
		if !ok {
			t.Fatalf("stuck at %v", p)
		}
		if !passable(next) {
			t.Fatalf("stepped into wall at %v", next)
		}
		p = next
	}
	if p != goal {
		t.Fatalf("did not reach goal, ended at %v", p)
	}
}

func TestNextStep_Boxed(t *testing.T) {
	closed := func(p Pos) bool { return p == (Pos{}) }
	if _, ok := NextStep(Pos{}, Pos{X: 3}, 8, closed); ok {
		t.Fatalf("boxed walker should not move")
	}
}
