package registry

import (
	"time"

	"go.uber.org/zap"

	"legioncraft.ai/internal/sim/host"
)

type EventKind string

const (
	WarningIssued   EventKind = "warning_issued"
	WarningDropped  EventKind = "warning_dropped"
	LegionCreated   EventKind = "legion_created"
	SpawnAborted    EventKind = "spawn_aborted"
	PlacementFailed EventKind = "placement_failed"
	StateChanged    EventKind = "state_changed"
	LegionRetired   EventKind = "legion_retired"
)

// LifecycleEvent is one entry of the legion audit trail.
type LifecycleEvent struct {
	Kind   EventKind     `json:"kind"`
	Tick   uint64        `json:"tick"`
	At     time.Time     `json:"at"`
	Legion int           `json:"legion,omitempty"`
	Actor  host.ActorRef `json:"actor,omitempty"`
	Pos    *host.Vec3i   `json:"pos,omitempty"`

	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`

	Requested int `json:"requested,omitempty"`
	Size      int `json:"size,omitempty"`
	Kills     int `json:"kills,omitempty"`
	Deaths    int `json:"deaths,omitempty"`
}

type Recorder interface {
	RecordLifecycle(ev LifecycleEvent) error
}

func (r *Registry) record(ev LifecycleEvent) {
	ev.Tick = r.tick
	if ev.At.IsZero() {
		ev.At = r.lastNow
	}
	for _, rec := range r.cfg.Recorders {
		if rec == nil {
			continue
		}
		if err := rec.RecordLifecycle(ev); err != nil {
			r.log.Warn("lifecycle recorder failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}
}

func posPtr(p host.Vec3i) *host.Vec3i { return &p }
