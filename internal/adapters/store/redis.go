// Package store is the boundary to the platform's persistent state.
// The hub consults it for reconnect catch-up and pushes best-effort
// presence writes; nothing here ever blocks the live delivery path.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/domain"
)

const (
	pendingKeyPrefix  = "notifications:pending:"
	presenceKeyPrefix = "presence:"
)

type Store struct {
	rdb *redis.Client
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().Str("module", "store").Str("addr", addr).Msg("connected to redis")
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Pending returns up to limit unread notifications for user, oldest
// first. The notification service maintains the list; the hub only
// reads it on registration.
func (s *Store) Pending(ctx context.Context, user domain.UserID, limit int) ([]json.RawMessage, error) {
	key := pendingKeyPrefix + string(user)
	items, err := s.rdb.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, json.RawMessage(it))
	}
	return out, nil
}

type presenceRecord struct {
	Status   string `json:"status"`
	LastSeen string `json:"last_seen"`
}

// SetStatus records (user, room) presence with a last-seen timestamp.
// Callers treat failures as log-and-swallow.
func (s *Store) SetStatus(ctx context.Context, user domain.UserID, room domain.RoomID, status string) error {
	rec, err := json.Marshal(presenceRecord{
		Status:   status,
		LastSeen: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	key := presenceKeyPrefix + string(room)
	if err := s.rdb.HSet(ctx, key, string(user), rec).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}
