package http_test

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	router "github.com/dkeye/huddle/internal/adapters/http"
	"github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/protocol"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode:       "release",
		StaticPath: t.TempDir(),
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		Secret:     "test-secret",
	}
	reg := app.NewRegistry()
	relay := app.NewRelay(reg)
	ctl := signal.NewController(relay, cfg.ReadLimit, cfg.PingPeriod)

	srv := httptest.NewServer(router.SetupRouter(cfg, reg, ctl))
	t.Cleanup(srv.Close)
	return srv
}

func dialSignal(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func join(t *testing.T, conn *websocket.Conn, room, name string) {
	t.Helper()
	send(t, conn, protocol.Event{Type: protocol.EventJoinRoom, Room: room, Name: name})
}

func send(t *testing.T, conn *websocket.Conn, ev protocol.Event) {
	t.Helper()
	if err := conn.WriteJSON(ev); err != nil {
		t.Fatalf("write %s: %v", ev.Type, err)
	}
}

// expect reads events until one of the wanted type arrives; traffic
// from other senders may interleave in any order.
func expect(t *testing.T, conn *websocket.Conn, typ protocol.EventType) protocol.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var ev protocol.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if ev.Type == typ {
			return ev
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := nethttp.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSignalingEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	alice := dialSignal(t, srv)
	join(t, alice, "r1", "alice")
	roster := expect(t, alice, protocol.EventExistingUsers)
	if len(roster.Users) != 0 {
		t.Fatalf("first joiner roster = %v", roster.Users)
	}

	bob := dialSignal(t, srv)
	join(t, bob, "r1", "bob")
	roster = expect(t, bob, protocol.EventExistingUsers)
	if len(roster.Users) != 1 || roster.Users[0] != "alice" {
		t.Fatalf("bob roster = %v", roster.Users)
	}
	if ev := expect(t, alice, protocol.EventUserConnected); ev.From != "bob" {
		t.Fatalf("user-connected from %q", ev.From)
	}

	// Chat relays with the sender stamped and a server timestamp.
	send(t, bob, protocol.Event{Type: protocol.EventSendMessage, Text: "hi"})
	msg := expect(t, alice, protocol.EventReceiveMessage)
	if msg.From != "bob" || msg.Text != "hi" || msg.Timestamp == "" {
		t.Fatalf("message = %+v", msg)
	}

	// Call handshake verbs pass through annotated.
	send(t, alice, protocol.Event{Type: protocol.EventCallUser, CallType: protocol.CallTypeVideo})
	ring := expect(t, bob, protocol.EventIncomingCall)
	if ring.From != "alice" || ring.CallType != protocol.CallTypeVideo {
		t.Fatalf("incoming-call = %+v", ring)
	}
	send(t, bob, protocol.Event{Type: protocol.EventAcceptCall})
	if ev := expect(t, alice, protocol.EventCallAccepted); ev.From != "bob" {
		t.Fatalf("call-accepted = %+v", ev)
	}
	send(t, alice, protocol.Event{Type: protocol.EventOffer, SDP: "v=0 fake", Target: "bob"})
	offer := expect(t, bob, protocol.EventOffer)
	if offer.From != "alice" || offer.Target != "bob" || offer.SDP != "v=0 fake" {
		t.Fatalf("offer = %+v", offer)
	}

	// Abrupt transport close, no end-call: the room still learns.
	_ = bob.Close()
	if ev := expect(t, alice, protocol.EventUserDisconnected); ev.From != "bob" {
		t.Fatalf("user-disconnected = %+v", ev)
	}
}

func TestJoinWithoutRoomGetsError(t *testing.T) {
	srv := newTestServer(t)
	conn := dialSignal(t, srv)
	send(t, conn, protocol.Event{Type: protocol.EventJoinRoom, Name: "alice"})
	if ev := expect(t, conn, protocol.EventError); ev.Error == "" {
		t.Fatalf("error event = %+v", ev)
	}
}

func TestRoomListing(t *testing.T) {
	srv := newTestServer(t)

	conn := dialSignal(t, srv)
	join(t, conn, "lobby", "alice")
	expect(t, conn, protocol.EventExistingUsers)

	resp, err := nethttp.Get(srv.URL + "/api/rooms")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var rooms []app.RoomInfo
	if err := json.Unmarshal(body, &rooms); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if len(rooms) != 1 || rooms[0].Room != "lobby" || rooms[0].Members != 1 {
		t.Fatalf("rooms = %+v", rooms)
	}
}
