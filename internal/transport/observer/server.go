package observer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"legioncraft.ai/internal/observerproto"
	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/registry"
)

// Admin is the part of the registry the HTTP endpoints drive. Every call is
// served on the tick goroutine.
type Admin interface {
	RequestSpawn(ctx context.Context, actor host.ActorRef, size int) (int, error)
	RequestClear(ctx context.Context) (int, error)
	RequestStatus(ctx context.Context) (registry.Status, error)
}

type Server struct {
	hub   *Hub
	admin Admin
	log   *zap.Logger

	upgrader websocket.Upgrader
	// AllowRemote disables the loopback check. Tests and trusted networks only.
	AllowRemote bool
}

func NewServer(hub *Hub, admin Admin, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub:   hub,
		admin: admin,
		log:   logger.Named("observer"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the observer stream and the admin endpoints on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/observer/ws", s.WSHandler())
	mux.HandleFunc("/admin/v1/legions", s.LegionsHandler())
	mux.HandleFunc("/admin/v1/legions/spawn", s.SpawnHandler())
	mux.HandleFunc("/admin/v1/legions/clear", s.ClearHandler())
}

func (s *Server) allowed(rw http.ResponseWriter, r *http.Request) bool {
	if s.AllowRemote || isLoopbackRemote(r.RemoteAddr) {
		return true
	}
	http.Error(rw, "forbidden", http.StatusForbidden)
	return false
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(rw, r) {
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		c := s.hub.subscribe(sub)
		defer s.hub.unsubscribe(c.id)
		s.log.Debug("observer subscribed", zap.Uint64("session", c.id), zap.Strings("actors", sub.Actors))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b = <-c.notes:
				case b = <-c.status:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := parseSubscribe(msg); ok {
				s.hub.update(c.id, sub)
			}
		}

		cancel()
		<-writeErr
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	return sub, true
}

func (s *Server) LegionsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st, err := s.admin.RequestStatus(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, observerproto.LegionsResponse{
			ProtocolVersion: observerproto.Version,
			Tick:            st.Tick,
			Stats:           Counts(st.Stats),
			Legions:         Views(st.Legions),
		})
	}
}

func (s *Server) SpawnHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		var req observerproto.SpawnRequest
		if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 4096)).Decode(&req); err != nil || strings.TrimSpace(req.Actor) == "" {
			writeJSON(rw, http.StatusBadRequest, observerproto.SpawnResponse{Error: "body must be {\"actor\": ..., \"size\": n}"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		id, err := s.admin.RequestSpawn(ctx, host.ActorRef(req.Actor), req.Size)
		if err != nil {
			writeJSON(rw, spawnStatus(err), observerproto.SpawnResponse{Error: err.Error()})
			return
		}
		s.log.Info("legion spawned by admin", zap.String("actor", req.Actor), zap.Int("legion", id))
		writeJSON(rw, http.StatusOK, observerproto.SpawnResponse{OK: true, Legion: id})
	}
}

func spawnStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrActorUnresolvable):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrAtCapacity):
		return http.StatusTooManyRequests
	case errors.Is(err, registry.ErrNoPlacement), errors.Is(err, registry.ErrUnderStrength), errors.Is(err, registry.ErrNotEligible):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) ClearHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		n, err := s.admin.RequestClear(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		s.log.Info("legions cleared by admin", zap.Int("despawned", n))
		writeJSON(rw, http.StatusOK, observerproto.ClearResponse{OK: true, Despawned: n})
	}
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
