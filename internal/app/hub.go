// Package app coordinates live connections, room membership, and event
// fan-out for the realtime hub. All durable concerns live behind the
// collaborator interfaces; the hub itself holds only in-memory state.
package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/core"
	"github.com/studyhive/realtime/internal/domain"
)

const (
	// pendingLimit caps the unread-notification backfill sent on connect.
	pendingLimit = 10

	// collaboratorTimeout bounds fire-and-forget calls to external
	// services so a slow store can never pile up goroutines forever.
	collaboratorTimeout = 5 * time.Second
)

// NotificationSource is the persistent-store collaborator consulted once
// per successful registration for reconnect catch-up.
type NotificationSource interface {
	Pending(ctx context.Context, user domain.UserID, limit int) ([]json.RawMessage, error)
}

// PresenceSink receives best-effort presence status writes. Failures are
// logged and swallowed; the hub's delivery path never waits on it.
type PresenceSink interface {
	SetStatus(ctx context.Context, user domain.UserID, room domain.RoomID, status string) error
}

// Hub is the single serialization point for all membership and presence
// mutations. Every mutating operation takes the hub lock, updates state,
// and enqueues deliveries; the actual socket writes happen in each
// connection's write pump, so one slow peer cannot stall the hub.
type Hub struct {
	Registry *Registry
	Rooms    *RoomIndex
	Typing   *PresenceTable

	// Optional collaborators; nil disables the concern.
	Notifications NotificationSource
	Presence      PresenceSink

	mu  sync.Mutex
	now func() time.Time
}

func NewHub(reg *Registry, rooms *RoomIndex, typing *PresenceTable) *Hub {
	return &Hub{Registry: reg, Rooms: rooms, Typing: typing, now: time.Now}
}

// Connect records a freshly authenticated connection, greets it, and
// kicks off the pending-notification backfill. The welcome goes to the
// new socket only; an identity's other connections are untouched.
func (h *Hub) Connect(user domain.UserID, conn core.Conn) {
	h.mu.Lock()
	h.Registry.Add(user, conn)
	welcome := core.Event{Kind: core.EventConnectionEstablished, Data: core.WelcomeData{
		Message:   "Connected to real-time notifications",
		Timestamp: core.Timestamp(h.now()),
	}}
	var dropped []core.Conn
	h.sendToConn(conn, welcome, &dropped)
	h.mu.Unlock()
	h.closeDropped(dropped)

	if h.Notifications != nil {
		go h.sendPending(user, conn)
	}
}

// Disconnect removes one connection. When it was the identity's last,
// the presence cascade runs: typing entries cleared with a stop-typing
// broadcast, and a user_offline signal sent to every joined room.
// Membership edges stay — a disconnect is not a leave, and the identity
// resumes its rooms on reconnect.
func (h *Hub) Disconnect(user domain.UserID, id core.ConnID) {
	h.mu.Lock()
	last := h.Registry.Remove(user, id)
	var dropped []core.Conn
	if last {
		ts := core.Timestamp(h.now())
		for _, room := range h.Rooms.RoomsOf(user) {
			if h.Typing.StopTyping(room, user) {
				h.fanOutRoom(room, typingEvent(user, "", false), user, &dropped)
			}
			h.fanOutRoom(room, core.Event{Kind: core.EventUserOffline, Data: core.RoomUserData{
				User: user, Room: room, Timestamp: ts,
			}}, user, &dropped)
		}
	}
	h.mu.Unlock()
	h.closeDropped(dropped)
}

// Join adds the membership edge. A repeat join is a no-op that still
// re-confirms room_joined to the caller without re-broadcasting
// user_joined_room to the room.
func (h *Hub) Join(user domain.UserID, room domain.RoomID) {
	h.mu.Lock()
	added := h.Rooms.Join(user, room)
	ts := core.Timestamp(h.now())
	var dropped []core.Conn
	if added {
		h.fanOutRoom(room, core.Event{Kind: core.EventUserJoinedRoom, Data: core.RoomUserData{
			User: user, Room: room, Timestamp: ts,
		}}, user, &dropped)
	}
	h.fanOutUser(user, core.Event{Kind: core.EventRoomJoined, Data: core.RoomData{
		Room: room, Timestamp: ts,
	}}, &dropped)
	h.mu.Unlock()
	h.closeDropped(dropped)

	if added {
		h.persistPresence(user, room, "online")
	}
}

// Leave removes the membership edge, clears the actor's typing entry in
// that room, and announces the departure. Leaving a room never joined
// is a no-op; the caller is still acked.
func (h *Hub) Leave(user domain.UserID, room domain.RoomID) {
	h.mu.Lock()
	removed := h.Rooms.Leave(user, room)
	ts := core.Timestamp(h.now())
	var dropped []core.Conn
	if removed {
		if h.Typing.StopTyping(room, user) {
			h.fanOutRoom(room, typingEvent(user, "", false), user, &dropped)
		}
		h.fanOutRoom(room, core.Event{Kind: core.EventUserLeftRoom, Data: core.RoomUserData{
			User: user, Room: room, Timestamp: ts,
		}}, user, &dropped)
	}
	h.fanOutUser(user, core.Event{Kind: core.EventRoomLeft, Data: core.RoomData{
		Room: room, Timestamp: ts,
	}}, &dropped)
	h.mu.Unlock()
	h.closeDropped(dropped)

	if removed {
		h.persistPresence(user, room, "offline")
	}
}

// StartTyping upserts the actor's typing entry and tells everyone else
// in the room. Non-members are dropped silently, like any other frame
// that fails membership validation.
func (h *Hub) StartTyping(user domain.UserID, room domain.RoomID, name string) {
	h.mu.Lock()
	if !h.Rooms.IsMember(user, room) {
		h.mu.Unlock()
		log.Debug().Str("module", "app.hub").Str("user", string(user)).Str("room", string(room)).Msg("typing_start from non-member dropped")
		return
	}
	h.Typing.StartTyping(room, user, name, h.now())
	var dropped []core.Conn
	h.fanOutRoom(room, typingEvent(user, name, true), user, &dropped)
	h.mu.Unlock()
	h.closeDropped(dropped)
}

// StopTyping clears the entry and broadcasts isTyping:false whether or
// not an entry existed; a stray stop is harmless to peers.
func (h *Hub) StopTyping(user domain.UserID, room domain.RoomID) {
	h.mu.Lock()
	if !h.Rooms.IsMember(user, room) {
		h.mu.Unlock()
		log.Debug().Str("module", "app.hub").Str("user", string(user)).Str("room", string(room)).Msg("typing_stop from non-member dropped")
		return
	}
	h.Typing.StopTyping(room, user)
	var dropped []core.Conn
	h.fanOutRoom(room, typingEvent(user, "", false), user, &dropped)
	h.mu.Unlock()
	h.closeDropped(dropped)
}

// Focus-timer events are relayed room-wide including the actor, so
// every participant's timer UI stays in lockstep.

func (h *Hub) FocusTimerStart(user domain.UserID, room domain.RoomID, timer json.RawMessage) {
	h.relay(user, room, core.Event{Kind: core.EventFocusTimerStarted, Data: core.TimerData{
		Room: room, Timer: timer, Timestamp: core.Timestamp(h.now()),
	}}, "")
}

func (h *Hub) FocusTimerStop(user domain.UserID, room domain.RoomID) {
	h.relay(user, room, core.Event{Kind: core.EventFocusTimerStopped, Data: core.TimerData{
		Room: room, Timestamp: core.Timestamp(h.now()),
	}}, "")
}

func (h *Hub) FocusTimerUpdate(user domain.UserID, room domain.RoomID, timer json.RawMessage) {
	h.relay(user, room, core.Event{Kind: core.EventFocusTimerUpdate, Data: core.TimerData{
		Room: room, Timer: timer, Timestamp: core.Timestamp(h.now()),
	}}, "")
}

// Call-signaling relays carry no hub state at all; validate membership,
// deliver to everyone but the actor.

func (h *Hub) ScreenShareStart(user domain.UserID, room domain.RoomID, name string) {
	h.relay(user, room, core.Event{Kind: core.EventScreenShareStart, Data: core.ShareData{
		Room: room, User: user, Name: name, Timestamp: core.Timestamp(h.now()),
	}}, user)
}

func (h *Hub) ScreenShareStop(user domain.UserID, room domain.RoomID, name string) {
	h.relay(user, room, core.Event{Kind: core.EventScreenShareStop, Data: core.ShareData{
		Room: room, User: user, Name: name, Timestamp: core.Timestamp(h.now()),
	}}, user)
}

func (h *Hub) ToggleMute(user domain.UserID, room domain.RoomID, muted bool) {
	h.relay(user, room, core.Event{Kind: core.EventUserMuteToggled, Data: core.MuteData{
		Room: room, User: user, IsMuted: muted, Timestamp: core.Timestamp(h.now()),
	}}, user)
}

func (h *Hub) ToggleVideo(user domain.UserID, room domain.RoomID, videoOff bool) {
	h.relay(user, room, core.Event{Kind: core.EventUserVideoToggled, Data: core.VideoData{
		Room: room, User: user, IsVideoOff: videoOff, Timestamp: core.Timestamp(h.now()),
	}}, user)
}

func (h *Hub) ParticipantActivity(user domain.UserID, room domain.RoomID, activity json.RawMessage) {
	h.relay(user, room, core.Event{Kind: core.EventParticipantActivity, Data: core.ActivityData{
		Room: room, User: user, Activity: activity, Timestamp: core.Timestamp(h.now()),
	}}, user)
}

// SendNotification delivers an externally originated event to every open
// connection of one identity. The caller is trusted to have authorized
// it; no membership check. Offline identities simply miss it.
func (h *Hub) SendNotification(user domain.UserID, kind core.EventKind, payload any) {
	h.mu.Lock()
	var dropped []core.Conn
	h.fanOutUser(user, core.Event{Kind: kind, Data: payload}, &dropped)
	h.mu.Unlock()
	h.closeDropped(dropped)
}

// DeliverToRoom broadcasts an externally originated event to the room's
// current members, minus exclude when non-empty.
func (h *Hub) DeliverToRoom(room domain.RoomID, kind core.EventKind, payload any, exclude domain.UserID) {
	h.mu.Lock()
	var dropped []core.Conn
	h.fanOutRoom(room, core.Event{Kind: kind, Data: payload}, exclude, &dropped)
	h.mu.Unlock()
	h.closeDropped(dropped)
}

// BroadcastAll sends to every open connection of every identity, minus
// exclude when non-empty. Used for platform-wide announcements.
func (h *Hub) BroadcastAll(kind core.EventKind, payload any, exclude domain.UserID) {
	frame, err := (core.Event{Kind: kind, Data: payload}).Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("kind", string(kind)).Msg("encode broadcast")
		return
	}
	h.mu.Lock()
	dropped := h.Registry.FanOutAll(frame, exclude)
	h.mu.Unlock()
	h.closeDropped(dropped)
}

func (h *Hub) IsOnline(user domain.UserID) bool       { return h.Registry.IsOnline(user) }
func (h *Hub) ConnectionCount(user domain.UserID) int { return h.Registry.ConnectionCount(user) }

func (h *Hub) RoomParticipants(room domain.RoomID) []domain.UserID {
	return h.Rooms.MembersOf(room)
}

// HealthSnapshot mirrors the platform's ops dashboard fields.
type HealthSnapshot struct {
	ConnectedUsers   int `json:"connected_users"`
	ActiveRooms      int `json:"active_rooms"`
	TotalConnections int `json:"total_connections"`
	TypingRooms      int `json:"typing_rooms"`
}

func (h *Hub) Health() HealthSnapshot {
	return HealthSnapshot{
		ConnectedUsers:   h.Registry.ConnectedUsers(),
		ActiveRooms:      h.Rooms.ActiveRooms(),
		TotalConnections: h.Registry.TotalConnections(),
		TypingRooms:      h.Typing.ActiveRooms(),
	}
}

// --- internal ---------------------------------------------------------------

func typingEvent(user domain.UserID, name string, typing bool) core.Event {
	return core.Event{Kind: core.EventUserTyping, Data: core.TypingData{
		User: user, Name: name, IsTyping: typing,
	}}
}

// relay validates membership then fans out. exclude == "" sends to the
// whole room, actor included.
func (h *Hub) relay(user domain.UserID, room domain.RoomID, ev core.Event, exclude domain.UserID) {
	h.mu.Lock()
	if !h.Rooms.IsMember(user, room) {
		h.mu.Unlock()
		log.Debug().Str("module", "app.hub").Str("user", string(user)).Str("room", string(room)).Str("kind", string(ev.Kind)).Msg("relay from non-member dropped")
		return
	}
	var dropped []core.Conn
	h.fanOutRoom(room, ev, exclude, &dropped)
	h.mu.Unlock()
	h.closeDropped(dropped)
}

// fanOutUser and fanOutRoom run with h.mu held. They only enqueue;
// failed connections are collected and closed after the lock drops.
func (h *Hub) fanOutUser(user domain.UserID, ev core.Event, dropped *[]core.Conn) {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("kind", string(ev.Kind)).Msg("encode event")
		return
	}
	*dropped = append(*dropped, h.Registry.FanOut(user, frame)...)
}

func (h *Hub) fanOutRoom(room domain.RoomID, ev core.Event, exclude domain.UserID, dropped *[]core.Conn) {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("kind", string(ev.Kind)).Msg("encode event")
		return
	}
	for _, member := range h.Rooms.MembersOf(room) {
		if exclude != "" && member == exclude {
			continue
		}
		*dropped = append(*dropped, h.Registry.FanOut(member, frame)...)
	}
}

func (h *Hub) sendToConn(conn core.Conn, ev core.Event, dropped *[]core.Conn) {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("kind", string(ev.Kind)).Msg("encode event")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		*dropped = append(*dropped, conn)
	}
}

// closeDropped tears down connections that failed a send. Closing the
// socket makes the connection's read pump exit, which runs Disconnect —
// the same path as any other disconnect.
func (h *Hub) closeDropped(dropped []core.Conn) {
	for _, c := range dropped {
		log.Warn().Str("module", "app.hub").Str("conn", string(c.ID())).Msg("closing connection after failed send")
		c.Close()
	}
}

func (h *Hub) sendPending(user domain.UserID, conn core.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	items, err := h.Notifications.Pending(ctx, user, pendingLimit)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("user", string(user)).Msg("pending notification fetch failed")
		return
	}
	if len(items) == 0 {
		return
	}
	frame, err := (core.Event{Kind: core.EventPendingNotifications, Data: core.PendingData{
		Notifications: items,
		Count:         len(items),
	}}).Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("encode pending notifications")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app.hub").Str("user", string(user)).Msg("pending notifications dropped")
	}
}

func (h *Hub) persistPresence(user domain.UserID, room domain.RoomID, status string) {
	if h.Presence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		if err := h.Presence.SetStatus(ctx, user, room, status); err != nil {
			log.Warn().Err(err).Str("module", "app.hub").Str("user", string(user)).Str("room", string(room)).Msg("presence persist failed")
		}
	}()
}
