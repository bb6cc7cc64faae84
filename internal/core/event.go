package core

import (
	"encoding/json"
	"time"

	"github.com/studyhive/realtime/internal/domain"
)

// EventKind tags every hub-originated message.
type EventKind string

const (
	EventConnectionEstablished EventKind = "connection_established"
	EventPong                  EventKind = "pong"
	EventRoomJoined            EventKind = "room_joined"
	EventRoomLeft              EventKind = "room_left"
	EventUserJoinedRoom        EventKind = "user_joined_room"
	EventUserLeftRoom          EventKind = "user_left_room"
	EventUserOffline           EventKind = "user_offline"
	EventUserTyping            EventKind = "user_typing"
	EventFocusTimerStarted     EventKind = "focus_timer_started"
	EventFocusTimerStopped     EventKind = "focus_timer_stopped"
	EventFocusTimerUpdate      EventKind = "focus_timer_update"
	EventScreenShareStart      EventKind = "screen_share_start"
	EventScreenShareStop       EventKind = "screen_share_stop"
	EventUserMuteToggled       EventKind = "user_mute_toggled"
	EventUserVideoToggled      EventKind = "user_video_toggled"
	EventParticipantActivity   EventKind = "participant_activity"
	EventPendingNotifications  EventKind = "pending_notifications"
	EventNotification          EventKind = "notification"
	EventAchievementEarned     EventKind = "achievement_earned"
	EventLevelUp               EventKind = "level_up"
	EventFriendRequest         EventKind = "friend_request"
	EventMessageReceived       EventKind = "message_received"
)

// Event is one hub-originated payload. Encode once, fan out the bytes.
type Event struct {
	Kind EventKind
	Data any
}

type envelope struct {
	Type EventKind `json:"type"`
	Data any       `json:"data"`
}

func (e Event) Encode() (Frame, error) {
	b, err := json.Marshal(envelope{Type: e.Kind, Data: e.Data})
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

// Timestamp formats t the way the platform's clients expect.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Payload shapes for the closed event set above.

type WelcomeData struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type PongData struct {
	Timestamp string `json:"timestamp"`
}

type RoomData struct {
	Room      domain.RoomID `json:"roomId"`
	Timestamp string        `json:"timestamp"`
}

type RoomUserData struct {
	User      domain.UserID `json:"userId"`
	Room      domain.RoomID `json:"roomId"`
	Timestamp string        `json:"timestamp"`
}

type TypingData struct {
	User     domain.UserID `json:"userId"`
	Name     string        `json:"userName,omitempty"`
	IsTyping bool          `json:"isTyping"`
}

type TimerData struct {
	Room      domain.RoomID   `json:"roomId"`
	Timer     json.RawMessage `json:"timerData,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type ShareData struct {
	Room      domain.RoomID `json:"roomId"`
	User      domain.UserID `json:"userId"`
	Name      string        `json:"userName,omitempty"`
	Timestamp string        `json:"timestamp"`
}

type MuteData struct {
	Room      domain.RoomID `json:"roomId"`
	User      domain.UserID `json:"userId"`
	IsMuted   bool          `json:"isMuted"`
	Timestamp string        `json:"timestamp"`
}

type VideoData struct {
	Room       domain.RoomID `json:"roomId"`
	User       domain.UserID `json:"userId"`
	IsVideoOff bool          `json:"isVideoOff"`
	Timestamp  string        `json:"timestamp"`
}

type ActivityData struct {
	Room      domain.RoomID   `json:"roomId"`
	User      domain.UserID   `json:"userId"`
	Activity  json.RawMessage `json:"activity,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type PendingData struct {
	Notifications []json.RawMessage `json:"notifications"`
	Count         int               `json:"count"`
}
