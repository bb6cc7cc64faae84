// Package ingest consumes events injected by business-logic services
// (chat persistence, gamification) and hands them straight to the hub
// for delivery. The publishers are trusted to have authorized the
// action, so no membership re-validation happens here.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/app"
	"github.com/studyhive/realtime/internal/core"
	"github.com/studyhive/realtime/internal/domain"
)

// Connect dials RabbitMQ with retries.
func Connect(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if conn, err = amqp.Dial(url); err == nil {
			log.Info().Str("module", "ingest").Msg("connected to rabbitmq")
			return conn, nil
		}
		log.Warn().Err(err).Str("module", "ingest").Msg("rabbitmq connect failed, retrying in 5s")
		time.Sleep(5 * time.Second)
	}
	return nil, fmt.Errorf("could not connect to rabbitmq: %w", err)
}

type Consumer struct {
	conn  *amqp.Connection
	queue string
	hub   *app.Hub
}

func New(conn *amqp.Connection, queue string, hub *app.Hub) *Consumer {
	return &Consumer{conn: conn, queue: queue, hub: hub}
}

// injectedEvent is the envelope business services publish. Exactly one
// of userId/roomId targets the delivery; payload stays opaque.
type injectedEvent struct {
	Kind    string          `json:"kind"`
	UserID  string          `json:"userId,omitempty"`
	RoomID  string          `json:"roomId,omitempty"`
	Exclude string          `json:"excludeUserId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// identityKinds are the notification shapes delivered to a single
// identity's connections.
var identityKinds = map[string]core.EventKind{
	"notification":       core.EventNotification,
	"achievement_earned": core.EventAchievementEarned,
	"level_up":           core.EventLevelUp,
	"friend_request":     core.EventFriendRequest,
	"message_received":   core.EventMessageReceived,
}

// roomKinds are the shapes broadcast to a room's live members.
var roomKinds = map[string]core.EventKind{
	"notification":         core.EventNotification,
	"message_received":     core.EventMessageReceived,
	"participant_activity": core.EventParticipantActivity,
}

// Run declares the queue and processes deliveries until ctx is
// cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	log.Info().Str("module", "ingest").Str("queue", q.Name).Msg("consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("amqp deliveries closed")
			}
			c.dispatch(d.Body)
		}
	}
}

func (c *Consumer) dispatch(body []byte) {
	var ev injectedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Warn().Err(err).Str("module", "ingest").Msg("bad injected event dropped")
		return
	}

	switch {
	case ev.UserID != "":
		kind, ok := identityKinds[ev.Kind]
		if !ok {
			log.Warn().Str("module", "ingest").Str("kind", ev.Kind).Msg("unknown identity event kind dropped")
			return
		}
		c.hub.SendNotification(domain.UserID(ev.UserID), kind, ev.Payload)
	case ev.RoomID != "":
		kind, ok := roomKinds[ev.Kind]
		if !ok {
			log.Warn().Str("module", "ingest").Str("kind", ev.Kind).Msg("unknown room event kind dropped")
			return
		}
		c.hub.DeliverToRoom(domain.RoomID(ev.RoomID), kind, ev.Payload, domain.UserID(ev.Exclude))
	default:
		log.Warn().Str("module", "ingest").Str("kind", ev.Kind).Msg("injected event without target dropped")
	}
}
