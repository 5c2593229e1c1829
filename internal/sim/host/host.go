// Package host defines the narrow contracts the legion engine consumes from
// the surrounding game: world queries, agent spawning and control, events,
// time, randomness and notifications.
package host

import (
	"fmt"
	"math"
	"sync"
	"time"
)

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

// DistXZ is the horizontal euclidean distance.
func (v Vec3i) DistXZ(o Vec3i) float64 {
	dx := float64(v.X - o.X)
	dz := float64(v.Z - o.Z)
	return math.Sqrt(dx*dx + dz*dz)
}

func (v Vec3i) Dist(o Vec3i) float64 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	dz := float64(v.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// ActorRef is an opaque handle to a targetable actor. It may stop resolving
// at any time.
type ActorRef string

// AgentID identifies a spawned legion member.
type AgentID string

type AgentState struct {
	ID        AgentID
	Pos       Vec3i
	Health    float64
	MaxHealth float64
	Target    ActorRef
}

// HealthFraction is Health/MaxHealth, or 1 when MaxHealth is unknown.
func (s AgentState) HealthFraction() float64 {
	if s.MaxHealth <= 0 {
		return 1
	}
	return s.Health / s.MaxHealth
}

// Directive is one coordination instruction for one agent. Target is only
// set when the agent had none; MoveTo is a hint re-issued every cycle, and a
// nil MoveTo clears the agent's previous hint.
type Directive struct {
	Agent  AgentID
	Target ActorRef
	MoveTo *Vec3i
}

type WorldQuery interface {
	IsStandable(p Vec3i) bool
	IsHazard(p Vec3i) bool
	// GroundSearch returns the nearest standable position in the column of p,
	// looking down first and then up, within maxRange blocks.
	GroundSearch(p Vec3i, maxRange int) (Vec3i, bool)
	ActorsNear(p Vec3i, radius float64) []ActorRef
	ActorPosition(a ActorRef) (Vec3i, bool)
}

type ActorDirectory interface {
	PresentActors() []ActorRef
}

type ActorFactory interface {
	SpawnAgent(pos Vec3i, legionID int, isLeader bool) (AgentID, error)
	DespawnAgent(id AgentID)
}

type AgentController interface {
	AgentState(id AgentID) (AgentState, bool)
	ApplyDirective(d Directive)
	// ReleaseAgent hands an agent back to its default behaviour.
	ReleaseAgent(id AgentID)
}

// DayCycle is optionally implemented by hosts that have nights.
type DayCycle interface {
	IsNight() bool
}

type NotificationSink interface {
	Warn(actor ActorRef, pos Vec3i)
	LegionSpotted(actor ActorRef, pos Vec3i)
}

// Host bundles every collaborator the registry needs.
type Host interface {
	WorldQuery
	ActorDirectory
	ActorFactory
	AgentController
}

type Clock interface {
	Now() time.Time
}

type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type NopSink struct{}

func (NopSink) Warn(ActorRef, Vec3i)          {}
func (NopSink) LegionSpotted(ActorRef, Vec3i) {}
