package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/domain"
)

// RoomIndex is the bidirectional live-membership index:
// room → identities present and identity → rooms joined. Both maps are
// mutated under one lock, so no observer can see the edge in one
// direction only.
type RoomIndex struct {
	mu      sync.RWMutex
	members map[domain.RoomID]map[domain.UserID]struct{}
	joined  map[domain.UserID]map[domain.RoomID]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		members: make(map[domain.RoomID]map[domain.UserID]struct{}),
		joined:  make(map[domain.UserID]map[domain.RoomID]struct{}),
	}
}

// Join adds the (user, room) edge and reports whether it was new.
// Joining a room already joined is a no-op.
func (x *RoomIndex) Join(user domain.UserID, room domain.RoomID) (added bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.members[room][user]; ok {
		return false
	}
	if x.members[room] == nil {
		x.members[room] = make(map[domain.UserID]struct{})
	}
	if x.joined[user] == nil {
		x.joined[user] = make(map[domain.RoomID]struct{})
	}
	x.members[room][user] = struct{}{}
	x.joined[user][room] = struct{}{}
	log.Info().Str("module", "app.rooms").Str("user", string(user)).Str("room", string(room)).Msg("joined room")
	return true
}

// Leave removes the edge and reports whether it existed. Leaving a room
// never joined is a no-op, not an error.
func (x *RoomIndex) Leave(user domain.UserID, room domain.RoomID) (removed bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.members[room][user]; !ok {
		return false
	}
	delete(x.members[room], user)
	if len(x.members[room]) == 0 {
		delete(x.members, room)
	}
	delete(x.joined[user], room)
	if len(x.joined[user]) == 0 {
		delete(x.joined, user)
	}
	log.Info().Str("module", "app.rooms").Str("user", string(user)).Str("room", string(room)).Msg("left room")
	return true
}

func (x *RoomIndex) MembersOf(room domain.RoomID) []domain.UserID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.UserID, 0, len(x.members[room]))
	for u := range x.members[room] {
		out = append(out, u)
	}
	return out
}

func (x *RoomIndex) RoomsOf(user domain.UserID) []domain.RoomID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.RoomID, 0, len(x.joined[user]))
	for r := range x.joined[user] {
		out = append(out, r)
	}
	return out
}

func (x *RoomIndex) IsMember(user domain.UserID, room domain.RoomID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.members[room][user]
	return ok
}

// ActiveRooms counts rooms with at least one member present.
func (x *RoomIndex) ActiveRooms() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.members)
}
