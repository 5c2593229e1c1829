package registry

import (
	"errors"
	"fmt"
)

// Expected outcomes. None of these are retried within the tick that
// produced them.
var (
	ErrAtCapacity        = errors.New("legion capacity reached")
	ErrNoPlacement       = errors.New("no valid placement found")
	ErrUnderStrength     = errors.New("fewer than half the requested members spawned")
	ErrActorUnresolvable = errors.New("actor not present or not resolvable")
	ErrNotEligible       = errors.New("actor not eligible")
	ErrDaytime           = errors.New("legions only form at night")
)

// InvariantError reports registry bookkeeping that should be impossible.
type InvariantError struct {
	Legion int
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("registry invariant violated (legion %d): %s", e.Legion, e.Detail)
}
