// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 64

var (
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrDisplayNameLong = errors.New("display name too long")
)

// UserID is the opaque principal id resolved from a verified credential.
// The hub never mints these; the identity provider does.
type UserID string

type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, name string) (*User, error) {
	if id == "" {
		return nil, ErrUserIDEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrDisplayNameLong
	}
	return &User{ID: id, Name: name}, nil
}
