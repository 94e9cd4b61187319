package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"zonegrid.ai/internal/observerproto"
	"zonegrid.ai/internal/sim/encoding"
	"zonegrid.ai/internal/sim/world"
)

func testPublished(t *testing.T, seed int64, gen int) *Published {
	t.Helper()
	p := world.DefaultParams()
	w, err := world.Generate(context.Background(), world.Request{
		ID:     "w_obs",
		Seed:   seed,
		Length: 5,
		Width:  6,
		Catalog: []world.ZoneType{
			{ID: 1, Name: "PLAINS", Priority: 1},
			{ID: 2, Name: "FOREST", Priority: 1},
		},
		Filler: world.Library{1: 2, 2: 2},
		Params: p,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return &Published{World: w, Generation: gen, Params: p}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)
	return s, hs
}

func TestBootstrap(t *testing.T) {
	s, hs := newTestServer(t)

	resp, err := http.Get(hs.URL + "/admin/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503 before publish", resp.StatusCode)
	}

	pub := testPublished(t, 3, 1)
	pub.Params.GrowthJitter = 0.3
	s.Publish(pub)

	resp, err = http.Get(hs.URL + "/admin/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.WorldID != "w_obs" || b.Generation != 1 || b.Digest != pub.World.Digest {
		t.Fatalf("bootstrap mismatch: %+v", b)
	}
	if b.WorldParams.Length != 5 || b.WorldParams.Width != 6 || b.WorldParams.Seed != 3 || b.WorldParams.GrowthJitter != 0.3 {
		t.Fatalf("params mismatch: %+v", b.WorldParams)
	}
	if len(b.RolePalette) != 5 || b.RolePalette[world.RoleFiller] != "FILLER" {
		t.Fatalf("role palette=%v", b.RolePalette)
	}
}

func TestPublishDropsOlderGeneration(t *testing.T) {
	s := NewServer(nil)
	ch := make(chan *Published, 1)
	s.subs["sub"] = ch

	gen1 := testPublished(t, 1, 1)
	gen2 := testPublished(t, 2, 2)
	gen3 := testPublished(t, 3, 3)

	cases := []struct {
		name string
		pub  *Published
		ok   bool
		want *Published
	}{
		{"first", gen1, true, gen1},
		{"newer", gen3, true, gen3},
		{"older after newer", gen2, false, gen3},
		{"same generation again", gen3, true, gen3},
	}
	for _, tc := range cases {
		if got := s.Publish(tc.pub); got != tc.ok {
			t.Fatalf("%s: Publish=%v want %v", tc.name, got, tc.ok)
		}
		if s.Current() != tc.want {
			t.Fatalf("%s: serving gen=%d want %d", tc.name, s.Current().Generation, tc.want.Generation)
		}
		var pending *Published
		select {
		case pending = <-ch:
		default:
		}
		switch {
		case tc.ok && pending != tc.pub:
			t.Fatalf("%s: subscriber not notified", tc.name)
		case !tc.ok && pending != nil:
			t.Fatalf("%s: subscriber got stale gen=%d", tc.name, pending.Generation)
		}
	}
}

func TestBootstrapRejectsRemote(t *testing.T) {
	s := NewServer(nil)
	s.Publish(testPublished(t, 1, 1))

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/observer/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d want 403", rec.Code)
	}
}

func readMsg(t *testing.T, conn *websocket.Conn, v any) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		t.Fatalf("decode type: %v", err)
	}
	if v != nil {
		if err := json.Unmarshal(msg, v); err != nil {
			t.Fatalf("decode %s: %v", head.Type, err)
		}
	}
	return head.Type
}

// readWorld consumes one WORLD..DONE stream and rebuilds the zone layers.
func readWorld(t *testing.T, conn *websocket.Conn) (observerproto.WorldMsg, []uint16, []uint16, []int) {
	t.Helper()
	var wm observerproto.WorldMsg
	if typ := readMsg(t, conn, &wm); typ != "WORLD" {
		t.Fatalf("first message %s, want WORLD", typ)
	}
	var zones, roles []uint16
	var variants []int
	for {
		var rm observerproto.RowsMsg
		typ := readMsg(t, conn, &rm)
		if typ == "DONE" {
			break
		}
		if typ != "ROWS" {
			t.Fatalf("unexpected %s", typ)
		}
		if rm.Row0*wm.Width != len(zones) {
			t.Fatalf("row0=%d out of order", rm.Row0)
		}
		z, err := encoding.DecodeRLE(rm.Zones, rm.Rows*wm.Width)
		if err != nil {
			t.Fatalf("zones: %v", err)
		}
		r, err := encoding.DecodeRLE(rm.Roles, rm.Rows*wm.Width)
		if err != nil {
			t.Fatalf("roles: %v", err)
		}
		zones = append(zones, z...)
		roles = append(roles, r...)
		variants = append(variants, rm.Variants...)
	}
	return wm, zones, roles, variants
}

func TestWSStreamsWorldAndRegenerations(t *testing.T) {
	s, hs := newTestServer(t)
	first := testPublished(t, 11, 1)
	s.Publish(first)

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, RowsPerMsg: 2, Variants: true}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	wm, zones, roles, variants := readWorld(t, conn)
	w := first.World
	if wm.Generation != 1 || wm.Digest != w.Digest {
		t.Fatalf("world msg mismatch: %+v", wm)
	}
	if len(zones) != len(w.Zones) || len(variants) != len(w.Zones) {
		t.Fatalf("zones=%d variants=%d want %d", len(zones), len(variants), len(w.Zones))
	}
	for i, z := range w.Zones {
		if wm.ZonePalette[zones[i]-1] != z.ZoneType || world.Role(roles[i]) != z.Role || variants[i] != z.Variant {
			t.Fatalf("cell %d mismatch", i)
		}
	}

	// Wait until the handler has registered before publishing again.
	deadline := time.Now().Add(2 * time.Second)
	for s.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	second := testPublished(t, 12, 2)
	s.Publish(second)

	wm, zones, _, _ = readWorld(t, conn)
	if wm.Generation != 2 || wm.Digest != second.World.Digest {
		t.Fatalf("regeneration not streamed: %+v", wm)
	}
	if len(zones) != len(second.World.Zones) {
		t.Fatalf("zones=%d", len(zones))
	}
}

func TestWSRejectsBadHandshake(t *testing.T) {
	_, hs := newTestServer(t)
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}
