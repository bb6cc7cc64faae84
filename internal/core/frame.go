package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/studyhive/realtime/internal/domain"
)

var (
	ErrUnknownFrame = errors.New("unknown frame type")
	ErrMissingRoom  = errors.New("missing roomId")
)

// ClientFrame is the closed set of inbound control frames. A frame is
// decoded exactly once, at the transport boundary; handlers receive the
// typed variant and never re-parse JSON. The sender's identity comes
// from the authenticated connection, never from the frame body.
type ClientFrame interface {
	clientFrame()
}

type (
	JoinRoom struct {
		Room domain.RoomID
	}
	LeaveRoom struct {
		Room domain.RoomID
	}
	Ping struct{}
	TypingStart struct {
		Room domain.RoomID
		Name string
	}
	TypingStop struct {
		Room domain.RoomID
	}
	FocusTimerStart struct {
		Room  domain.RoomID
		Timer json.RawMessage
	}
	FocusTimerStop struct {
		Room domain.RoomID
	}
	FocusTimerUpdate struct {
		Room  domain.RoomID
		Timer json.RawMessage
	}
	ScreenShareStart struct {
		Room domain.RoomID
		Name string
	}
	ScreenShareStop struct {
		Room domain.RoomID
		Name string
	}
	ToggleMute struct {
		Room  domain.RoomID
		Muted bool
	}
	ToggleVideo struct {
		Room     domain.RoomID
		VideoOff bool
	}
	ParticipantActivity struct {
		Room     domain.RoomID
		Activity json.RawMessage
	}
)

func (JoinRoom) clientFrame()            {}
func (LeaveRoom) clientFrame()           {}
func (Ping) clientFrame()                {}
func (TypingStart) clientFrame()         {}
func (TypingStop) clientFrame()          {}
func (FocusTimerStart) clientFrame()     {}
func (FocusTimerStop) clientFrame()      {}
func (FocusTimerUpdate) clientFrame()    {}
func (ScreenShareStart) clientFrame()    {}
func (ScreenShareStop) clientFrame()     {}
func (ToggleMute) clientFrame()          {}
func (ToggleVideo) clientFrame()         {}
func (ParticipantActivity) clientFrame() {}

// wireFrame is the superset a client may send; each kind picks the
// fields it needs.
type wireFrame struct {
	Type       string          `json:"type"`
	RoomID     string          `json:"roomId"`
	UserName   string          `json:"userName"`
	TimerData  json.RawMessage `json:"timerData"`
	Activity   json.RawMessage `json:"activity"`
	IsMuted    bool            `json:"isMuted"`
	IsVideoOff bool            `json:"isVideoOff"`
}

// DecodeClientFrame parses raw into its typed variant. Room-scoped kinds
// require roomId.
func DecodeClientFrame(raw []byte) (ClientFrame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if w.Type == "ping" {
		return Ping{}, nil
	}

	// Every remaining kind is room-scoped.
	room := domain.RoomID(w.RoomID)

	var f ClientFrame
	switch w.Type {
	case "join_room":
		f = JoinRoom{Room: room}
	case "leave_room":
		f = LeaveRoom{Room: room}
	case "typing_start":
		f = TypingStart{Room: room, Name: w.UserName}
	case "typing_stop":
		f = TypingStop{Room: room}
	case "focus_timer_start":
		f = FocusTimerStart{Room: room, Timer: w.TimerData}
	case "focus_timer_stop":
		f = FocusTimerStop{Room: room}
	case "focus_timer_update":
		f = FocusTimerUpdate{Room: room, Timer: w.TimerData}
	case "screen_share_start":
		f = ScreenShareStart{Room: room, Name: w.UserName}
	case "screen_share_stop":
		f = ScreenShareStop{Room: room, Name: w.UserName}
	case "toggle_mute":
		f = ToggleMute{Room: room, Muted: w.IsMuted}
	case "toggle_video":
		f = ToggleVideo{Room: room, VideoOff: w.IsVideoOff}
	case "participant_activity":
		f = ParticipantActivity{Room: room, Activity: w.Activity}
	default:
		return nil, fmt.Errorf("%q: %w", w.Type, ErrUnknownFrame)
	}
	if room == "" {
		return nil, fmt.Errorf("%s: %w", w.Type, ErrMissingRoom)
	}
	return f, nil
}
