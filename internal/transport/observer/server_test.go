package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"legioncraft.ai/internal/observerproto"
	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/legion"
	"legioncraft.ai/internal/sim/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAdmin struct {
	status  registry.Status
	spawned []host.ActorRef
	cleared int
}

func (f *fakeAdmin) RequestSpawn(ctx context.Context, actor host.ActorRef, size int) (int, error) {
	if actor == "ghost" {
		return 0, registry.ErrActorUnresolvable
	}
	if len(f.spawned) >= 1 {
		return 0, registry.ErrAtCapacity
	}
	f.spawned = append(f.spawned, actor)
	return 7, nil
}

func (f *fakeAdmin) RequestClear(ctx context.Context) (int, error) {
	f.cleared++
	return 12, nil
}

func (f *fakeAdmin) RequestStatus(ctx context.Context) (registry.Status, error) {
	return f.status, nil
}

func sampleStatus(tick uint64) registry.Status {
	return registry.Status{
		Tick:  tick,
		At:    1767304800000,
		Stats: registry.Stats{Legions: 1, Members: 2, Counters: registry.Counters{Created: 3, Retired: 2}},
		Legions: []legion.Snapshot{{
			ID:       3,
			Target:   "p1",
			Anchor:   host.Vec3i{X: 10, Y: 64, Z: -4},
			Members:  []legion.MemberRecord{{ID: "a"}, {ID: "b"}},
			Leader:   "a",
			State:    legion.Pursuing,
			Tactic:   legion.Encirclement,
			PeakSize: 6,
			Morale:   0.5,
		}},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub, *fakeAdmin) {
	t.Helper()
	hub := NewHub(nil)
	admin := &fakeAdmin{status: sampleStatus(40)}
	mux := http.NewServeMux()
	NewServer(hub, admin, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hub, admin
}

func TestLegionsHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/admin/v1/legions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var got observerproto.LegionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := observerproto.LegionsResponse{
		ProtocolVersion: observerproto.Version,
		Tick:            40,
		Stats:           observerproto.StatusCounts{Legions: 1, Members: 2, Created: 3, Retired: 2},
		Legions: []observerproto.LegionView{{
			ID: 3, Target: "p1", Anchor: [3]int{10, 64, -4},
			State: "pursuing", Tactic: "encirclement", Size: 2, PeakSize: 6, Leader: "a", Morale: 0.5,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("legions (-want +got):\n%s", diff)
	}
}

func TestSpawnAndClearHandlers(t *testing.T) {
	srv, _, admin := newTestServer(t)
	post := func(path, body string) (int, map[string]any) {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		defer resp.Body.Close()
		var m map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&m)
		return resp.StatusCode, m
	}

	if code, m := post("/admin/v1/legions/spawn", `{"actor":"p1","size":6}`); code != http.StatusOK || m["legion"] != float64(7) {
		t.Fatalf("spawn: %d %v", code, m)
	}
	if code, _ := post("/admin/v1/legions/spawn", `{"actor":"p2"}`); code != http.StatusTooManyRequests {
		t.Fatalf("spawn at capacity: %d", code)
	}
	if code, _ := post("/admin/v1/legions/spawn", `{"actor":"ghost"}`); code != http.StatusNotFound {
		t.Fatalf("spawn unknown actor: %d", code)
	}
	if code, _ := post("/admin/v1/legions/spawn", `{}`); code != http.StatusBadRequest {
		t.Fatalf("spawn without actor: %d", code)
	}
	if code, m := post("/admin/v1/legions/clear", ``); code != http.StatusOK || m["despawned"] != float64(12) {
		t.Fatalf("clear: %d %v", code, m)
	}
	if len(admin.spawned) != 1 || admin.cleared != 1 {
		t.Fatalf("admin calls: %+v", admin)
	}

	resp, err := http.Get(srv.URL + "/admin/v1/legions/clear")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET clear: %d", resp.StatusCode)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.4:5000":  false,
		"garbage":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}

func TestSpawnStatus(t *testing.T) {
	for err, want := range map[error]int{
		registry.ErrActorUnresolvable: http.StatusNotFound,
		registry.ErrAtCapacity:        http.StatusTooManyRequests,
		registry.ErrNoPlacement:       http.StatusConflict,
		registry.ErrNotEligible:       http.StatusConflict,
		context.DeadlineExceeded:      http.StatusServiceUnavailable,
	} {
		if got := spawnStatus(err); got != want {
			t.Fatalf("%v: status %d want %d", err, got, want)
		}
	}
}

func dial(t *testing.T, srv *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients=%d want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readType(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return head.Type, b
}

func TestObserverStream_FiltersByActor(t *testing.T) {
	srv, hub, _ := newTestServer(t)
	conn := dial(t, srv, observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Actors:          []string{"p1"},
	})
	waitClients(t, hub, 1)

	hub.Warn("p2", host.Vec3i{X: 1})
	hub.Warn("p1", host.Vec3i{X: 5, Y: 64, Z: 6})
	hub.LegionSpotted("p1", host.Vec3i{X: 7, Y: 64, Z: 8})
	// Cadence 0: no status frames.
	hub.Publish(sampleStatus(10))

	typ, b := readType(t, conn)
	var warn observerproto.WarnMsg
	_ = json.Unmarshal(b, &warn)
	if typ != observerproto.TypeWarn || warn.Actor != "p1" || warn.Pos != [3]int{5, 64, 6} {
		t.Fatalf("first frame: %s", b)
	}
	typ, b = readType(t, conn)
	if typ != observerproto.TypeSpotted {
		t.Fatalf("second frame: %s", b)
	}

	conn.Close()
	waitClients(t, hub, 0)
}

func TestObserverStream_StatusCadence(t *testing.T) {
	srv, hub, _ := newTestServer(t)
	conn := dial(t, srv, observerproto.SubscribeMsg{
		Type:             observerproto.TypeSubscribe,
		ProtocolVersion:  observerproto.Version,
		StatusEveryTicks: 5,
	})
	waitClients(t, hub, 1)

	hub.Publish(sampleStatus(3))
	hub.Publish(sampleStatus(5))

	typ, b := readType(t, conn)
	var st observerproto.StatusMsg
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if typ != observerproto.TypeStatus || st.Tick != 5 || len(st.Legions) != 1 || st.Legions[0].Size != 2 {
		t.Fatalf("status frame: %s", b)
	}

	conn.Close()
	waitClients(t, hub, 0)
}

func TestObserverStream_RejectsBadHandshake(t *testing.T) {
	srv, hub, _ := newTestServer(t)
	conn := dial(t, srv, observerproto.SubscribeMsg{Type: "HELLO", ProtocolVersion: observerproto.Version})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if err == nil || !asCloseError(err, &ce) || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
	if hub.Clients() != 0 {
		t.Fatalf("rejected client was registered")
	}
}

func asCloseError(err error, out **websocket.CloseError) bool {
	ce, ok := err.(*websocket.CloseError)
	if ok {
		*out = ce
	}
	return ok
}

func TestSendLatest_KeepsNewest(t *testing.T) {
	ch := make(chan []byte, 1)
	if !sendLatest(ch, []byte("a")) {
		t.Fatalf("first send reported a drop")
	}
	if sendLatest(ch, []byte("b")) {
		t.Fatalf("second send should replace the queued frame")
	}
	if got := string(<-ch); got != "b" {
		t.Fatalf("got %q", got)
	}
}
