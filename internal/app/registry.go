package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/core"
	"github.com/studyhive/realtime/internal/domain"
)

// Registry owns the identity → open-connections mapping. One identity
// may hold several sockets (devices, tabs); each is independent.
// All methods are safe for concurrent use. FanOut only enqueues via
// TrySend; it never performs socket I/O under the lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.UserID]map[core.ConnID]core.Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.UserID]map[core.ConnID]core.Conn)}
}

// Add records conn under user and reports whether it is the user's
// first open connection.
func (r *Registry) Add(user domain.UserID, conn core.Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[user]
	if !ok {
		set = make(map[core.ConnID]core.Conn)
		r.conns[user] = set
	}
	set[conn.ID()] = conn
	log.Info().Str("module", "app.registry").Str("user", string(user)).Str("conn", string(conn.ID())).Int("connections", len(set)).Msg("connection added")
	return !ok
}

// Remove drops conn from user's set and reports whether the user is now
// fully offline. Removing an unknown connection is a no-op.
func (r *Registry) Remove(user domain.UserID, id core.ConnID) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[user]
	if !ok {
		return false
	}
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.conns, user)
		last = true
	}
	log.Info().Str("module", "app.registry").Str("user", string(user)).Str("conn", string(id)).Bool("offline", last).Msg("connection removed")
	return last
}

// FanOut enqueues frame on every open connection of user and returns
// the connections that could not accept it (closed or full buffer).
// Siblings are unaffected by one failed send. Zero connections is not
// an error: the frame is simply dropped.
func (r *Registry) FanOut(user domain.UserID, frame core.Frame) (dropped []core.Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns[user] {
		if err := c.TrySend(frame); err != nil {
			dropped = append(dropped, c)
		}
	}
	return dropped
}

// FanOutAll enqueues frame on every open connection of every identity
// except exclude (when non-empty). Returns the connections that refused
// the send.
func (r *Registry) FanOutAll(frame core.Frame, exclude domain.UserID) (dropped []core.Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for user, set := range r.conns {
		if exclude != "" && user == exclude {
			continue
		}
		for _, c := range set {
			if err := c.TrySend(frame); err != nil {
				dropped = append(dropped, c)
			}
		}
	}
	return dropped
}

func (r *Registry) IsOnline(user domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[user]) > 0
}

func (r *Registry) ConnectionCount(user domain.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[user])
}

// ConnectedUsers returns how many identities hold at least one open
// connection.
func (r *Registry) ConnectedUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) TotalConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}
