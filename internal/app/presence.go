package app

import (
	"sync"
	"time"

	"github.com/studyhive/realtime/internal/domain"
)

// PresenceTable holds the ephemeral typing state keyed (room, user).
// There is no timer-based expiry: an entry lives until explicit stop,
// room leave, or the identity's last connection closing. A client that
// silently stops signalling keeps its entry; that mirrors the platform's
// current contract.
type PresenceTable struct {
	mu     sync.RWMutex
	typing map[domain.RoomID]map[domain.UserID]domain.TypingEntry
}

func NewPresenceTable() *PresenceTable {
	return &PresenceTable{typing: make(map[domain.RoomID]map[domain.UserID]domain.TypingEntry)}
}

// StartTyping upserts the entry, refreshing its last-signal time.
func (p *PresenceTable) StartTyping(room domain.RoomID, user domain.UserID, name string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.typing[room] == nil {
		p.typing[room] = make(map[domain.UserID]domain.TypingEntry)
	}
	p.typing[room][user] = domain.TypingEntry{User: user, Name: name, LastSignal: now}
}

// StopTyping removes the entry and reports whether one existed.
func (p *PresenceTable) StopTyping(room domain.RoomID, user domain.UserID) (existed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.typing[room][user]; !ok {
		return false
	}
	delete(p.typing[room], user)
	if len(p.typing[room]) == 0 {
		delete(p.typing, room)
	}
	return true
}

// TypingIn snapshots the entries for one room.
func (p *PresenceTable) TypingIn(room domain.RoomID) []domain.TypingEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.TypingEntry, 0, len(p.typing[room]))
	for _, e := range p.typing[room] {
		out = append(out, e)
	}
	return out
}

// ActiveRooms counts rooms with at least one typing entry.
func (p *PresenceTable) ActiveRooms() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.typing)
}
