package core

import "errors"

// Frame is one encoded wire message.
type Frame []byte

// ConnID distinguishes the several sockets one identity may hold open.
type ConnID string

// ErrBackpressure is returned by TrySend when the connection's outgoing
// buffer is full. The caller decides the connection's fate.
var ErrBackpressure = errors.New("backpressure")

// Conn abstracts one live transport session.
// Owned by the adapter; the adapter must Close() it.
// TrySend must never block: it enqueues or fails immediately, so the
// registry can fan out under its lock without touching socket I/O.
type Conn interface {
	ID() ConnID
	TrySend(Frame) error
	Close()
}
