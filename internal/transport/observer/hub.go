// Package observer streams legion notifications and registry status to
// websocket observers and serves the local admin endpoints.
package observer

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"legioncraft.ai/internal/observerproto"
	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
	"legioncraft.ai/internal/sim/registry"
)

type client struct {
	id          uint64
	actors      map[string]bool
	statusEvery uint64

	// notes carries WARN/LEGION_SPOTTED frames; status keeps only the
	// newest STATUS frame.
	notes  chan []byte
	status chan []byte
}

func (c *client) wants(actor string) bool {
	return len(c.actors) == 0 || c.actors[actor]
}

// Hub fans notifications out to subscribed observers. It implements
// host.NotificationSink and never blocks the caller: frames for slow clients
// are dropped.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[uint64]*client
	nextID  uint64

	dropped atomic.Uint64
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{log: logger.Named("observer"), clients: map[uint64]*client{}}
}

// Dropped counts frames discarded because a client fell behind.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe(sub observerproto.SubscribeMsg) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := &client{
		id:     h.nextID,
		notes:  make(chan []byte, 64),
		status: make(chan []byte, 1),
	}
	applySubscribe(c, sub)
	h.clients[c.id] = c
	return c
}

func (h *Hub) update(id uint64, sub observerproto.SubscribeMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		applySubscribe(c, sub)
	}
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func applySubscribe(c *client, sub observerproto.SubscribeMsg) {
	c.actors = nil
	if len(sub.Actors) > 0 {
		c.actors = make(map[string]bool, len(sub.Actors))
		for _, a := range sub.Actors {
			c.actors[a] = true
		}
	}
	every := sub.StatusEveryTicks
	if every < 0 {
		every = 0
	}
	c.statusEvery = uint64(every)
}

func (h *Hub) Warn(actor host.ActorRef, pos host.Vec3i) {
	h.notify(observerproto.WarnMsg{
		Type:            observerproto.TypeWarn,
		ProtocolVersion: observerproto.Version,
		Actor:           string(actor),
		Pos:             [3]int{pos.X, pos.Y, pos.Z},
	}, string(actor))
}

func (h *Hub) LegionSpotted(actor host.ActorRef, pos host.Vec3i) {
	h.notify(observerproto.SpottedMsg{
		Type:            observerproto.TypeSpotted,
		ProtocolVersion: observerproto.Version,
		Actor:           string(actor),
		Pos:             [3]int{pos.X, pos.Y, pos.Z},
	}, string(actor))
}

func (h *Hub) notify(msg any, actor string) {
	var b []byte
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if !c.wants(actor) {
			continue
		}
		if b == nil {
			var err error
			if b, err = json.Marshal(msg); err != nil {
				h.log.Warn("encode notification", zap.Error(err))
				return
			}
		}
		select {
		case c.notes <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Publish offers st to every client whose status cadence matches st.Tick.
// It runs on the tick goroutine.
func (h *Hub) Publish(st registry.Status) {
	var b []byte
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if c.statusEvery == 0 || st.Tick%c.statusEvery != 0 {
			continue
		}
		if b == nil {
			var err error
			if b, err = json.Marshal(StatusMsg(st)); err != nil {
				h.log.Warn("encode status", zap.Error(err))
				return
			}
		}
		if !sendLatest(c.status, b) {
			h.dropped.Add(1)
		}
	}
}

// sendLatest replaces a queued frame with b. It reports whether nothing was
// discarded.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return false
}

func StatusMsg(st registry.Status) observerproto.StatusMsg {
	return observerproto.StatusMsg{
		Type:            observerproto.TypeStatus,
		ProtocolVersion: observerproto.Version,
		Tick:            st.Tick,
		AtUnixMs:        st.At,
		Stats:           Counts(st.Stats),
		Legions:         Views(st.Legions),
	}
}

func Counts(s registry.Stats) observerproto.StatusCounts {
	return observerproto.StatusCounts{
		Legions:         s.Legions,
		Members:         s.Members,
		PendingWarnings: s.PendingWarnings,
		Cooldowns:       s.Cooldowns,
		Created:         s.Created,
		Retired:         s.Retired,
		Aborted:         s.Aborted,
		Violations:      s.Violations,
	}
}

func Views(ls []legion.Snapshot) []observerproto.LegionView {
	out := make([]observerproto.LegionView, 0, len(ls))
	for _, l := range ls {
		out = append(out, observerproto.LegionView{
			ID:       l.ID,
			Target:   string(l.Target),
			Anchor:   [3]int{l.Anchor.X, l.Anchor.Y, l.Anchor.Z},
			State:    l.State.String(),
			Tactic:   l.Tactic.String(),
			Size:     len(l.Members),
			PeakSize: l.PeakSize,
			Leader:   string(l.Leader),
			Cohesion: l.Cohesion,
			Morale:   l.Morale,
			Kills:    l.Kills,
			Deaths:   l.Deaths,
		})
	}
	return out
}
