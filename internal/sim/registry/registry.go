// Package registry owns every live legion: it schedules new ones, advances
// them each tick, coordinates their members and retires them.
//
// All mutation happens on the goroutine that calls Tick (or Run). Host
// events reach it through Events and are applied at the start of the next
// tick.
package registry

import (
	"context"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
	"legioncraft.ai/internal/sim/legion/tactics"
	"legioncraft.ai/internal/sim/tuning"
)

type Config struct {
	Tuning tuning.Tuning
	Host   host.Host
	Notify host.NotificationSink
	Clock  host.Clock
	Rand   host.RandomSource
	Logger *zap.Logger

	Recorders []Recorder
	// Strict panics on invariant violations instead of repairing them.
	Strict      bool
	EventBuffer int
	// AfterTick runs on the tick goroutine after every tick.
	AfterTick func(Status)
}

// PendingWarning is the notice an actor gets before a legion forms.
type PendingWarning struct {
	IssuedAt time.Time  `json:"issued_at"`
	Anchor   host.Vec3i `json:"anchor"`
}

type Counters struct {
	Created         uint64 `json:"created"`
	Aborted         uint64 `json:"aborted"`
	PlacementFailed uint64 `json:"placement_failed"`
	Retired         uint64 `json:"retired"`
	WarningsIssued  uint64 `json:"warnings_issued"`
	WarningsDropped uint64 `json:"warnings_dropped"`
	Violations      uint64 `json:"violations"`
}

type Registry struct {
	cfg    Config
	set    Settings
	log    *zap.Logger
	host   host.Host
	notify host.NotificationSink
	clock  host.Clock
	rng    host.RandomSource
	coord  *tactics.Coordinator
	strict bool

	legions   map[int]*legion.Legion
	index     map[host.AgentID]int
	warnings  map[host.ActorRef]PendingWarning
	cooldowns map[host.ActorRef]time.Time
	farSince  map[int]time.Time
	bornTick  map[int]uint64

	nextID    int
	tick      uint64
	startedAt time.Time
	nextEval  time.Time
	lastNow   time.Time
	counters  Counters

	events        chan host.Event
	admin         chan adminReq
	eventsDropped atomic.Uint64
}

func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = host.SystemClock{}
	}
	if cfg.Notify == nil {
		cfg.Notify = host.NopSink{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 4096
	}
	set := SettingsFrom(cfg.Tuning)
	r := &Registry{
		cfg:       cfg,
		set:       set,
		log:       cfg.Logger.Named("registry"),
		host:      cfg.Host,
		notify:    cfg.Notify,
		clock:     cfg.Clock,
		rng:       cfg.Rand,
		coord:     tactics.New(set.Tactics),
		strict:    cfg.Strict || set.Development,
		legions:   map[int]*legion.Legion{},
		index:     map[host.AgentID]int{},
		warnings:  map[host.ActorRef]PendingWarning{},
		cooldowns: map[host.ActorRef]time.Time{},
		farSince:  map[int]time.Time{},
		bornTick:  map[int]uint64{},
		events:    make(chan host.Event, cfg.EventBuffer),
		admin:     make(chan adminReq, 16),
	}
	r.startedAt = r.clock.Now()
	r.lastNow = r.startedAt
	return r
}

func (r *Registry) Settings() Settings { return r.set }

// Events is the ingestion queue for host notifications.
func (r *Registry) Events() chan<- host.Event { return r.events }

// Enqueue offers an event without blocking. Events are dropped when the
// queue is full.
func (r *Registry) Enqueue(ev host.Event) bool {
	select {
	case r.events <- ev:
		return true
	default:
		r.eventsDropped.Add(1)
		return false
	}
}

func (r *Registry) CurrentTick() uint64 { return r.tick }

// Run ticks until ctx is cancelled, serving admin requests in between.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.set.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-r.admin:
			req.fn()
			close(req.done)
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick runs one pass: drain events, advance legions, escalate warnings,
// schedule, clean up, verify.
func (r *Registry) Tick() {
	r.tick++
	now, ok := r.now()
	if !ok {
		return
	}
	r.drain(now)
	r.advance(now)
	r.escalate(now)
	r.schedule(now)
	r.cleanup(now)
	r.verify()
	if r.cfg.AfterTick != nil {
		r.cfg.AfterTick(r.Status())
	}
}

func (r *Registry) now() (time.Time, bool) {
	var now time.Time
	if !r.guard("clock", func() { now = r.clock.Now() }) {
		return time.Time{}, false
	}
	// Keep time monotonic even if the host clock steps back.
	if now.Before(r.lastNow) {
		now = r.lastNow
	}
	r.lastNow = now
	return now, true
}

// guard runs a collaborator call and reports whether it completed.
func (r *Registry) guard(op string, fn func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("collaborator failed", zap.String("op", op), zap.Any("panic", p))
			ok = false
		}
	}()
	fn()
	return true
}

func (r *Registry) violation(err *InvariantError) {
	r.counters.Violations++
	if r.strict {
		panic(err)
	}
	r.log.Error("invariant violation repaired", zap.Int("legion", err.Legion), zap.String("detail", err.Detail))
}

func (r *Registry) sortedIDs() []int {
	ids := make([]int, 0, len(r.legions))
	for id := range r.legions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Registry) presentActors() (map[host.ActorRef]bool, []host.ActorRef, bool) {
	var list []host.ActorRef
	if !r.guard("present_actors", func() { list = r.host.PresentActors() }) {
		return nil, nil, false
	}
	list = append([]host.ActorRef(nil), list...)
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	set := make(map[host.ActorRef]bool, len(list))
	for _, a := range list {
		set[a] = true
	}
	return set, list, true
}

func (r *Registry) actorPosition(a host.ActorRef) (host.Vec3i, bool) {
	var (
		pos host.Vec3i
		ok  bool
	)
	if !r.guard("actor_position", func() { pos, ok = r.host.ActorPosition(a) }) {
		return host.Vec3i{}, false
	}
	return pos, ok
}

func (r *Registry) releaseAgent(id host.AgentID) {
	r.guard("release_agent", func() { r.host.ReleaseAgent(id) })
}

func (r *Registry) despawnAgent(id host.AgentID) {
	r.guard("despawn_agent", func() { r.host.DespawnAgent(id) })
}
