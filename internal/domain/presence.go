package domain

import "time"

// TypingEntry is the transient per-(room, user) typing state. Never
// persisted; cleared on explicit stop, room leave, or full disconnect.
type TypingEntry struct {
	User       UserID
	Name       string
	LastSignal time.Time
}
