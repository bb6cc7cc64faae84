package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/auth"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump is the connection's owner: its exit is the single teardown
// path, running Disconnect synchronously so the presence cascade fires
// exactly once per socket.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, p auth.Principal, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("user", string(p.ID)).Str("conn", string(c.id)).Msg("readPump closing")
		cancel()
		ctl.limiter.Forget(c.id)
		ctl.Hub.Disconnect(p.ID, c.id)
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
				return
			}
			if !ctl.limiter.Allow(c.id) {
				log.Warn().Str("module", "signal").Str("user", string(p.ID)).Msg("frame rate limit exceeded, frame discarded")
				continue
			}
			ctl.handleFrame(p, c, data)
		}
	}
}
