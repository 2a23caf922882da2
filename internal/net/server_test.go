package net

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/config"
	"github.com/rtsgo/server/internal/core/event"
	"github.com/rtsgo/server/internal/sim"
	"github.com/rtsgo/server/internal/snapshot"
	"go.uber.org/zap/zaptest"
)

type fakeSim struct {
	mu   sync.Mutex
	cmds []command.Command
	err  error
	snap snapshot.Snapshot
}

func (f *fakeSim) Submit(_ context.Context, cmd command.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *fakeSim) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSim) Snapshot() snapshot.Snapshot { return f.snap }

func (f *fakeSim) Stats() sim.Stats {
	return sim.Stats{Ticks: 42, LastWork: time.Millisecond, Overruns: 1, Units: len(f.snap.Units)}
}

func (f *fakeSim) submitted() []command.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Command(nil), f.cmds...)
}

type testEnv struct {
	srv  *Server
	sim  *fakeSim
	http *httptest.Server
}

func newTestEnv(t *testing.T, guard AdminGuard) *testEnv {
	t.Helper()
	cfg := config.Defaults().Network
	cfg.SubmitTimeout = config.Duration{Duration: time.Second}
	fs := &fakeSim{snap: snapshot.Snapshot{Tick: 3, Units: map[string]snapshot.Unit{
		"u1": {Position: [2]float32{5, 0}, Destination: [2]float32{10, 0}, ID: "u1"},
	}}}
	srv := NewServer(cfg, fs, NewMemoryClients(), guard, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().CloseAll()
		ts.Close()
	})
	return &testEnv{srv: srv, sim: fs, http: ts}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// register returns the path of the WebSocket URL handed out by /register.
func (e *testEnv) register(t *testing.T, userID int) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/register", `{"user_id":`+strconv.Itoa(userID)+`}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	var rr RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(rr.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u.Path, "/ws/") {
		t.Fatalf("register url = %q", rr.URL)
	}
	return u.Path
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	want := e.srv.Hub().Len() + 1
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(e.http.URL, "http")+path, nil)
	if err != nil {
		t.Fatalf("dial %s: %v (resp %v)", path, err, resp)
	}
	t.Cleanup(func() { conn.Close() })
	deadline := time.Now().Add(5 * time.Second)
	for e.srv.Hub().Len() < want {
		if time.Now().After(deadline) {
			t.Fatal("session never joined the hub")
		}
		time.Sleep(time.Millisecond)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	if resp := e.do(t, http.MethodGet, "/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestGame_ReturnsSnapshotUnits(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	resp := e.do(t, http.MethodGet, "/game", "", nil)
	var units map[string]snapshot.Unit
	if err := json.NewDecoder(resp.Body).Decode(&units); err != nil {
		t.Fatal(err)
	}
	if units["u1"] != e.sim.snap.Units["u1"] {
		t.Fatalf("units = %+v", units)
	}
}

func TestStats(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	resp := e.do(t, http.MethodGet, "/stats", "", nil)
	var st map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st["ticks"] != float64(42) || st["sessions"] != float64(0) {
		t.Fatalf("stats = %v", st)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	resp := e.do(t, http.MethodOptions, "/register", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestReset(t *testing.T) {
	hash, err := HashKey("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	guard, err := NewAdminGuard(hash)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEnv(t, guard)

	if resp := e.do(t, http.MethodGet, "/reset", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", resp.StatusCode)
	}
	bad := http.Header{AdminKeyHeader: {"wrong"}}
	if resp := e.do(t, http.MethodPost, "/reset", "", bad); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key: status = %d", resp.StatusCode)
	}
	if n := len(e.sim.submitted()); n != 0 {
		t.Fatalf("unauthorized reset submitted %d commands", n)
	}

	good := http.Header{AdminKeyHeader: {"s3cret"}}
	if resp := e.do(t, http.MethodPost, "/reset", "", good); resp.StatusCode != http.StatusOK {
		t.Fatalf("good key: status = %d", resp.StatusCode)
	}
	cmds := e.sim.submitted()
	if len(cmds) != 1 || cmds[0] != command.ResetWorld() {
		t.Fatalf("submitted = %v", cmds)
	}
}

func TestReset_QueueFull(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	e.sim.setErr(command.ErrQueueFull)
	if resp := e.do(t, http.MethodGet, "/reset", "", nil); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	e.sim.setErr(command.ErrQueueClosed)
	if resp := e.do(t, http.MethodGet, "/reset", "", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRegister_BadBody(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	if resp := e.do(t, http.MethodPost, "/register", "{", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestUnregister(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	path := e.register(t, 1)
	id := strings.TrimPrefix(path, "/ws/")

	if resp := e.do(t, http.MethodDelete, "/register/"+id, "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("first delete: status = %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodDelete, "/register/"+id, "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: status = %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodDelete, "/register/not-a-uuid", "", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", resp.StatusCode)
	}
}

func TestWebSocket_UnknownClientRejected(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(e.http.URL, "http")+"/ws/6f1c0f9e-8a55-4a43-9a8e-9d3a2b7c1e00", nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("err = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestWebSocket_CreateUnitBroadcast(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	a := e.dial(t, e.register(t, 1))
	b := e.dial(t, e.register(t, 2))

	send(t, a, `{"CreateUnit":{"position":[10.0,15.0]}}`)
	for _, conn := range []*websocket.Conn{a, b} {
		env := readFrame(t, conn)
		if env.Kind != KindCreateUnit {
			t.Fatalf("kind = %q", env.Kind)
		}
		var u snapshot.Unit
		if err := json.Unmarshal(env.Body, &u); err != nil {
			t.Fatal(err)
		}
		if u.Position != [2]float32{10, 15} || u.Destination != u.Position || len(u.ID) != 36 {
			t.Fatalf("unit = %+v", u)
		}
	}
	cmds := e.sim.submitted()
	if len(cmds) != 1 || cmds[0].Kind != command.KindCreateUnit || cmds[0].X != 10 || cmds[0].Y != 15 {
		t.Fatalf("submitted = %v", cmds)
	}
}

func TestWebSocket_SetDestinationEchoed(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	a := e.dial(t, e.register(t, 1))
	b := e.dial(t, e.register(t, 2))

	send(t, a, `{"SetUnitDestination":{"destination":[3,4],"id":"u1"}}`)
	env := readFrame(t, b)
	if env.Kind != KindSetUnitDestination {
		t.Fatalf("kind = %q", env.Kind)
	}
	cmds := e.sim.submitted()
	if len(cmds) != 1 || cmds[0] != command.SetDestination("u1", 3, 4) {
		t.Fatalf("submitted = %v", cmds)
	}
}

func TestWebSocket_ErrorsGoToSenderOnly(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	a := e.dial(t, e.register(t, 1))
	b := e.dial(t, e.register(t, 2))

	send(t, a, "ping")
	send(t, a, "not json")
	env := readFrame(t, a)
	if env.Kind != KindErrorResponse {
		t.Fatalf("kind = %q, want ErrorResponse", env.Kind)
	}
	var er ErrorResponse
	if err := json.Unmarshal(env.Body, &er); err != nil || !strings.Contains(er.Message, "error parsing message") {
		t.Fatalf("error body = %s (%v)", env.Body, err)
	}

	// b sees the next broadcast, not a's error.
	send(t, a, `{"CreateUnit":{"position":[0,0],"id":"named"}}`)
	if env := readFrame(t, b); env.Kind != KindCreateUnit {
		t.Fatalf("b got %q first", env.Kind)
	}
}

func TestWebSocket_SubmitFailureReported(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	e.sim.setErr(command.ErrQueueFull)
	a := e.dial(t, e.register(t, 1))
	send(t, a, `{"SetUnitDestination":{"destination":[3,4],"id":"u1"}}`)
	if env := readFrame(t, a); env.Kind != KindErrorResponse {
		t.Fatalf("kind = %q", env.Kind)
	}
}

func TestSubscribe_ForwardsEvents(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	bus := event.NewBus()
	e.srv.Subscribe(bus)
	a := e.dial(t, e.register(t, 1))

	event.Emit(bus, event.UnitArrived{UnitID: "u1", X: 10, Y: 0, Tick: 2})
	event.Emit(bus, event.WorldReset{Tick: 3})
	event.Emit(bus, event.UnitRejected{UnitID: "u1", Reason: event.RejectDuplicateID, X: 9, Y: 9})
	bus.SwapBuffers()
	bus.DispatchAll()

	got := map[string]json.RawMessage{}
	for range 3 {
		env := readFrame(t, a)
		got[env.Kind] = env.Body
	}
	if got[KindUnitArrived] == nil || got[KindWorldReset] == nil || got[KindUnitRejected] == nil {
		t.Fatalf("received %v", got)
	}
	var rej UnitRejectedNotice
	if err := json.Unmarshal(got[KindUnitRejected], &rej); err != nil {
		t.Fatal(err)
	}
	if rej != (UnitRejectedNotice{ID: "u1", Reason: "duplicate_id", Position: [2]float32{9, 9}}) {
		t.Fatalf("rejection = %+v", rej)
	}
}

// newLoopEnv serves a running simulation loop instead of the fake.
func newLoopEnv(t *testing.T) (*testEnv, *sim.Loop) {
	t.Helper()
	simCfg := config.Defaults().Simulation
	simCfg.TickInterval = config.Duration{Duration: 5 * time.Millisecond}
	log := zaptest.NewLogger(t)
	loop, err := sim.NewLoop(simCfg, nil, 1, log)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(config.Defaults().Network, loop, NewMemoryClients(), AdminGuard{}, log)
	srv.Subscribe(loop.Engine().Bus())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().CloseAll()
		ts.Close()
		cancel()
		<-done
	})
	return &testEnv{srv: srv, http: ts}, loop
}

func TestWebSocket_DuplicateCreateIsRetracted(t *testing.T) {
	e, loop := newLoopEnv(t)
	a := e.dial(t, e.register(t, 1))
	b := e.dial(t, e.register(t, 2))

	send(t, a, `{"CreateUnit":{"position":[0,0],"id":"a"}}`)
	for _, conn := range []*websocket.Conn{a, b} {
		if env := readFrame(t, conn); env.Kind != KindCreateUnit {
			t.Fatalf("kind = %q", env.Kind)
		}
	}

	send(t, a, `{"CreateUnit":{"position":[9,9],"id":"a"}}`)
	for _, conn := range []*websocket.Conn{a, b} {
		// The retraction may overtake the echo, both must arrive.
		got := map[string]json.RawMessage{}
		for range 2 {
			env := readFrame(t, conn)
			got[env.Kind] = env.Body
		}
		if got[KindCreateUnit] == nil || got[KindUnitRejected] == nil {
			t.Fatalf("received %v", got)
		}
		var rej UnitRejectedNotice
		if err := json.Unmarshal(got[KindUnitRejected], &rej); err != nil {
			t.Fatal(err)
		}
		if rej.ID != "a" || rej.Reason != "duplicate_id" || rej.Position != [2]float32{9, 9} {
			t.Fatalf("rejection = %+v", rej)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if u, ok := loop.Snapshot().Units["a"]; ok {
			if u.Position != [2]float32{0, 0} {
				t.Fatalf("unit a at %v, want the first position", u.Position)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("unit a never appeared in the snapshot")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestUnregister_ClosesLiveSession(t *testing.T) {
	e := newTestEnv(t, AdminGuard{})
	path := e.register(t, 1)
	a := e.dial(t, path)

	e.do(t, http.MethodDelete, "/register/"+strings.TrimPrefix(path, "/ws/"), "", nil)
	_ = a.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := a.ReadMessage(); err == nil {
		t.Fatal("session still open after unregister")
	}
}
