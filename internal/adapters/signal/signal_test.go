package signal_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	router "github.com/studyhive/realtime/internal/adapters/http"
	"github.com/studyhive/realtime/internal/app"
	"github.com/studyhive/realtime/internal/auth"
	"github.com/studyhive/realtime/internal/config"
	"github.com/studyhive/realtime/internal/domain"
)

const testSecret = "e2e-secret"

// --- helpers ----------------------------------------------------------------

func testConfig() *config.Config {
	return &config.Config{
		Mode:          "release",
		Secret:        testSecret,
		ReadLimit:     32768,
		SendBuffer:    16,
		PingPeriod:    50 * time.Second,
		PongWait:      time.Minute,
		WriteTimeout:  5 * time.Second,
		FrameLimit:    0, // disabled for tests
		FrameInterval: time.Second,
	}
}

// startServer brings up the full router (auth middleware + ws endpoint)
// on an httptest server and returns the ws:// base URL and the hub.
func startServer(t *testing.T) (string, *app.Hub) {
	t.Helper()
	hub := app.NewHub(app.NewRegistry(), app.NewRoomIndex(), app.NewPresenceTable())
	r := router.SetupRouter(context.Background(), testConfig(), hub, auth.New(testSecret))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func signToken(t *testing.T, sub, name string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"name": name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

// dial connects as the given identity and consumes the welcome frame.
func dial(t *testing.T, wsURL, sub, name string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?token="+signToken(t, sub, name), nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", sub, err)
	}
	t.Cleanup(func() { conn.Close() })
	if kind, _ := readEvent(t, conn); kind != "connection_established" {
		t.Fatalf("first frame: got %q, want connection_established", kind)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", msg, err)
	}
	return m.Type, m.Data
}

func expectEvent(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	kind, data := readEvent(t, conn)
	if kind != want {
		t.Fatalf("event: got %q, want %q", kind, want)
	}
	return data
}

func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(d))
	if _, msg, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected silence, got %s", msg)
	}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// --- tests ------------------------------------------------------------------

func TestHandshake_RefusesBadCredentials(t *testing.T) {
	wsURL, hub := startServer(t)

	for name, url := range map[string]string{
		"missing token": wsURL + "/ws",
		"garbage token": wsURL + "/ws?token=bogus",
	} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if !errors.Is(err, websocket.ErrBadHandshake) {
			t.Errorf("%s: got err %v, want bad handshake", name, err)
			continue
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: status got %d, want 401", name, resp.StatusCode)
		}
	}

	if hub.Health().TotalConnections != 0 {
		t.Error("refused upgrades must leave no hub state behind")
	}
}

func TestPingPong(t *testing.T) {
	wsURL, _ := startServer(t)
	conn := dial(t, wsURL, "alice", "Alice")

	send(t, conn, map[string]any{"type": "ping"})
	data := expectEvent(t, conn, "pong")
	if data["timestamp"] == nil {
		t.Error("pong should carry a timestamp")
	}
}

func TestMalformedFramesDoNotKillConnection(t *testing.T) {
	wsURL, _ := startServer(t)
	conn := dial(t, wsURL, "alice", "Alice")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	send(t, conn, map[string]any{"type": "warp_drive", "roomId": "r"})
	send(t, conn, map[string]any{"type": "join_room"}) // missing roomId

	// The connection must still be alive and serving.
	send(t, conn, map[string]any{"type": "ping"})
	expectEvent(t, conn, "pong")
}

// TestStudyRoomScenario walks the full multi-device flow: A on two
// devices and B share a room; typing reaches B once and never echoes;
// closing A's first device is silent; closing the second fires the
// offline cascade while membership survives for reconnect.
func TestStudyRoomScenario(t *testing.T) {
	wsURL, hub := startServer(t)

	a1 := dial(t, wsURL, "alice", "Alice")
	a2 := dial(t, wsURL, "alice", "Alice")
	b1 := dial(t, wsURL, "bob", "Bob")

	// A joins on device 1; both of A's devices get the ack.
	send(t, a1, map[string]any{"type": "join_room", "roomId": "study-42"})
	expectEvent(t, a1, "room_joined")
	expectEvent(t, a2, "room_joined")

	// B joins; B is acked, both A devices see the announcement.
	send(t, b1, map[string]any{"type": "join_room", "roomId": "study-42"})
	expectEvent(t, b1, "room_joined")
	expectEvent(t, a1, "user_joined_room")
	expectEvent(t, a2, "user_joined_room")

	// A types: B gets exactly one user_typing, A's devices none.
	send(t, a1, map[string]any{"type": "typing_start", "roomId": "study-42", "userName": "Alice"})
	data := expectEvent(t, b1, "user_typing")
	if data["isTyping"] != true || data["userId"] != "alice" {
		t.Errorf("user_typing data: got %v", data)
	}

	// A ping on the sender device proves nothing was queued in between.
	send(t, a1, map[string]any{"type": "ping"})
	expectEvent(t, a1, "pong")
	expectSilence(t, a2, 200*time.Millisecond)

	// Closing device 1 is silent while device 2 is still open.
	a1.Close()
	expectSilence(t, b1, 300*time.Millisecond)
	waitFor(t, func() bool { return hub.ConnectionCount("alice") == 1 }, "device 1 never deregistered")

	// Closing the last device fires the cascade: stop-typing, then offline.
	a2.Close()
	data = expectEvent(t, b1, "user_typing")
	if data["isTyping"] != false {
		t.Errorf("expected isTyping=false, got %v", data)
	}
	expectEvent(t, b1, "user_offline")

	waitFor(t, func() bool { return !hub.IsOnline("alice") }, "alice never went offline")

	// Disconnect is not leave: membership survives for reconnect.
	found := false
	for _, u := range hub.RoomParticipants("study-42") {
		if u == domain.UserID("alice") {
			found = true
		}
	}
	if !found {
		t.Error("membership should survive a disconnect")
	}
}

func TestSignalingRelayExcludesActor(t *testing.T) {
	wsURL, _ := startServer(t)
	a := dial(t, wsURL, "alice", "Alice")
	b := dial(t, wsURL, "bob", "Bob")

	send(t, a, map[string]any{"type": "join_room", "roomId": "call-1"})
	expectEvent(t, a, "room_joined")
	send(t, b, map[string]any{"type": "join_room", "roomId": "call-1"})
	expectEvent(t, b, "room_joined")
	expectEvent(t, a, "user_joined_room")

	send(t, a, map[string]any{"type": "toggle_mute", "roomId": "call-1", "isMuted": true})
	data := expectEvent(t, b, "user_mute_toggled")
	if data["isMuted"] != true {
		t.Errorf("isMuted: got %v", data["isMuted"])
	}

	send(t, a, map[string]any{"type": "screen_share_start", "roomId": "call-1"})
	data = expectEvent(t, b, "screen_share_start")
	// Display name falls back to the credential's name claim.
	if data["userName"] != "Alice" {
		t.Errorf("userName: got %v, want Alice", data["userName"])
	}

	// The actor hears none of its own relays.
	send(t, a, map[string]any{"type": "ping"})
	expectEvent(t, a, "pong")
}

func TestFocusTimerReachesWholeRoom(t *testing.T) {
	wsURL, _ := startServer(t)
	a := dial(t, wsURL, "alice", "Alice")
	b := dial(t, wsURL, "bob", "Bob")

	send(t, a, map[string]any{"type": "join_room", "roomId": "focus-1"})
	expectEvent(t, a, "room_joined")
	send(t, b, map[string]any{"type": "join_room", "roomId": "focus-1"})
	expectEvent(t, b, "room_joined")
	expectEvent(t, a, "user_joined_room")

	send(t, a, map[string]any{"type": "focus_timer_start", "roomId": "focus-1", "timerData": map[string]any{"minutes": 25}})
	expectEvent(t, a, "focus_timer_started")
	expectEvent(t, b, "focus_timer_started")
}

func TestHealthAndInternalAPI(t *testing.T) {
	wsURL, _ := startServer(t)
	httpURL := "http" + strings.TrimPrefix(wsURL, "ws")

	conn := dial(t, wsURL, "alice", "Alice")
	send(t, conn, map[string]any{"type": "join_room", "roomId": "r1"})
	expectEvent(t, conn, "room_joined")

	resp, err := http.Get(httpURL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var health app.HealthSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if health.ConnectedUsers != 1 || health.TotalConnections != 1 || health.ActiveRooms != 1 {
		t.Errorf("health: got %+v", health)
	}

	resp, err = http.Get(httpURL + "/api/users/alice/online")
	if err != nil {
		t.Fatalf("GET online: %v", err)
	}
	var online struct {
		Online      bool `json:"online"`
		Connections int  `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&online); err != nil {
		t.Fatalf("decode online: %v", err)
	}
	resp.Body.Close()
	if !online.Online || online.Connections != 1 {
		t.Errorf("online: got %+v", online)
	}

	// Inject a notification over the internal surface.
	body := strings.NewReader(`{"type":"achievement_earned","payload":{"badge":"early-bird"}}`)
	resp, err = http.Post(httpURL+"/api/notify/alice", "application/json", body)
	if err != nil {
		t.Fatalf("POST notify: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("notify status: got %d, want 202", resp.StatusCode)
	}
	data := expectEvent(t, conn, "achievement_earned")
	if data["badge"] != "early-bird" {
		t.Errorf("payload: got %v", data)
	}
}
