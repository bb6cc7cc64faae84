package ingest

import (
	"encoding/json"
	"testing"

	"github.com/studyhive/realtime/internal/app"
	"github.com/studyhive/realtime/internal/core"
	"github.com/studyhive/realtime/internal/domain"
)

type fakeConn struct {
	id     core.ConnID
	frames []core.Frame
}

func (c *fakeConn) ID() core.ConnID { return c.id }
func (c *fakeConn) TrySend(f core.Frame) error {
	c.frames = append(c.frames, f)
	return nil
}
func (c *fakeConn) Close() {}

func (c *fakeConn) kinds(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, f := range c.frames {
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("unmarshal frame %q: %v", f, err)
		}
		out = append(out, env.Type)
	}
	return out
}

func newConsumer() (*Consumer, *app.Hub) {
	hub := app.NewHub(app.NewRegistry(), app.NewRoomIndex(), app.NewPresenceTable())
	return New(nil, "q", hub), hub
}

func connect(hub *app.Hub, user domain.UserID, id core.ConnID) *fakeConn {
	c := &fakeConn{id: id}
	hub.Connect(user, c)
	c.frames = nil // drop the welcome
	return c
}

func TestDispatch_RoutesIdentityEvents(t *testing.T) {
	con, hub := newConsumer()
	alice := connect(hub, "alice", "a1")
	bob := connect(hub, "bob", "b1")

	con.dispatch([]byte(`{"kind":"achievement_earned","userId":"alice","payload":{"badge":"x"}}`))

	if got := alice.kinds(t); len(got) != 1 || got[0] != "achievement_earned" {
		t.Errorf("alice frames: %v", got)
	}
	if got := bob.kinds(t); len(got) != 0 {
		t.Errorf("bob should get nothing, got %v", got)
	}
}

func TestDispatch_RoutesRoomEventsWithExclusion(t *testing.T) {
	con, hub := newConsumer()
	alice := connect(hub, "alice", "a1")
	bob := connect(hub, "bob", "b1")
	hub.Join("alice", "study-1")
	hub.Join("bob", "study-1")
	alice.frames, bob.frames = nil, nil

	con.dispatch([]byte(`{"kind":"message_received","roomId":"study-1","excludeUserId":"alice","payload":{"text":"hi"}}`))

	if got := bob.kinds(t); len(got) != 1 || got[0] != "message_received" {
		t.Errorf("bob frames: %v", got)
	}
	if got := alice.kinds(t); len(got) != 0 {
		t.Errorf("excluded sender got %v", got)
	}
}

func TestDispatch_DropsBadEvents(t *testing.T) {
	con, hub := newConsumer()
	alice := connect(hub, "alice", "a1")

	// Garbage, missing target, unknown identity kind, kind invalid for rooms.
	con.dispatch([]byte(`not json`))
	con.dispatch([]byte(`{"kind":"achievement_earned"}`))
	con.dispatch([]byte(`{"kind":"warp_drive","userId":"alice"}`))
	con.dispatch([]byte(`{"kind":"achievement_earned","roomId":"r1"}`))

	if got := alice.kinds(t); len(got) != 0 {
		t.Errorf("bad events must be dropped, got %v", got)
	}
}
