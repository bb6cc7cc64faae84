package app_test

import (
	"testing"
	"time"

	"github.com/studyhive/realtime/internal/app"
)

func TestPresenceTable_StartStop(t *testing.T) {
	p := app.NewPresenceTable()
	now := time.Now()

	p.StartTyping("r1", "alice", "Alice", now)
	p.StartTyping("r1", "bob", "Bob", now)
	p.StartTyping("r2", "alice", "Alice", now)

	if got := len(p.TypingIn("r1")); got != 2 {
		t.Errorf("TypingIn(r1): got %d, want 2", got)
	}
	if got := p.ActiveRooms(); got != 2 {
		t.Errorf("ActiveRooms: got %d, want 2", got)
	}

	if !p.StopTyping("r1", "alice") {
		t.Error("StopTyping of existing entry: want true")
	}
	if p.StopTyping("r1", "alice") {
		t.Error("repeat StopTyping: want false")
	}
	if p.StopTyping("r3", "alice") {
		t.Error("StopTyping in unknown room: want false")
	}
}

func TestPresenceTable_UpsertRefreshes(t *testing.T) {
	p := app.NewPresenceTable()
	first := time.Now()
	later := first.Add(time.Minute)

	p.StartTyping("r1", "alice", "Alice", first)
	p.StartTyping("r1", "alice", "Alice", later)

	entries := p.TypingIn("r1")
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	if !entries[0].LastSignal.Equal(later) {
		t.Errorf("LastSignal: got %v, want %v", entries[0].LastSignal, later)
	}
}

func TestPresenceTable_EmptyRoomsDropped(t *testing.T) {
	p := app.NewPresenceTable()
	p.StartTyping("r1", "alice", "Alice", time.Now())
	p.StopTyping("r1", "alice")
	if got := p.ActiveRooms(); got != 0 {
		t.Errorf("ActiveRooms: got %d, want 0", got)
	}
}
