package signal

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/auth"
	"github.com/studyhive/realtime/internal/core"
	"github.com/studyhive/realtime/internal/domain"
)

// handleFrame decodes one inbound frame and dispatches it. A bad frame
// is logged and dropped; the connection always survives it.
func (ctl *Controller) handleFrame(p auth.Principal, c *wsConn, raw []byte) {
	f, err := core.DecodeClientFrame(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(p.ID)).Msg("frame dropped")
		return
	}

	switch f := f.(type) {
	case core.Ping:
		ctl.sendEvent(c, core.Event{Kind: core.EventPong, Data: core.PongData{
			Timestamp: core.Timestamp(time.Now()),
		}})
	case core.JoinRoom:
		ctl.Hub.Join(p.ID, f.Room)
	case core.LeaveRoom:
		ctl.Hub.Leave(p.ID, f.Room)
	case core.TypingStart:
		ctl.Hub.StartTyping(p.ID, f.Room, displayName(f.Name, p))
	case core.TypingStop:
		ctl.Hub.StopTyping(p.ID, f.Room)
	case core.FocusTimerStart:
		ctl.Hub.FocusTimerStart(p.ID, f.Room, f.Timer)
	case core.FocusTimerStop:
		ctl.Hub.FocusTimerStop(p.ID, f.Room)
	case core.FocusTimerUpdate:
		ctl.Hub.FocusTimerUpdate(p.ID, f.Room, f.Timer)
	case core.ScreenShareStart:
		ctl.Hub.ScreenShareStart(p.ID, f.Room, displayName(f.Name, p))
	case core.ScreenShareStop:
		ctl.Hub.ScreenShareStop(p.ID, f.Room, displayName(f.Name, p))
	case core.ToggleMute:
		ctl.Hub.ToggleMute(p.ID, f.Room, f.Muted)
	case core.ToggleVideo:
		ctl.Hub.ToggleVideo(p.ID, f.Room, f.VideoOff)
	case core.ParticipantActivity:
		ctl.Hub.ParticipantActivity(p.ID, f.Room, f.Activity)
	}
}

func (ctl *Controller) sendEvent(c *wsConn, ev core.Event) {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", string(ev.Kind)).Msg("encode event")
		return
	}
	if err := c.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("direct send failed")
	}
}

// displayName prefers the client-supplied name and falls back to the
// name claim from the credential.
func displayName(name string, p auth.Principal) string {
	if name != "" && len(name) <= domain.MaxDisplayNameLen {
		return name
	}
	return p.Name
}
