// Package signal is the WebSocket transport adapter: it upgrades
// admitted requests, owns each connection's read/write pumps, and
// funnels decoded frames into the hub.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/app"
	"github.com/studyhive/realtime/internal/auth"
	"github.com/studyhive/realtime/internal/config"
	"github.com/studyhive/realtime/internal/core"
)

type Controller struct {
	Hub     *app.Hub
	Cfg     *config.Config
	limiter *frameLimiter
}

func NewController(hub *app.Hub, cfg *config.Config) *Controller {
	return &Controller{
		Hub:     hub,
		Cfg:     cfg,
		limiter: newFrameLimiter(cfg.FrameLimit, cfg.FrameInterval),
	}
}

// wsConn adapts one gorilla socket to core.Conn. The send channel is
// the decoupling point: the hub enqueues, the write pump does the I/O.
type wsConn struct {
	id   core.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) ID() core.ConnID { return c.id }

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	// Origin checks belong to the edge proxy; the hub gates on the token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an admitted request and starts the connection's
// pumps. The principal must already be resolved by the auth middleware;
// a request without one never reaches the hub.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		log.Error().Str("module", "signal").Msg("upgrade reached handler without principal")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &wsConn{
		id:   core.ConnID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	log.Info().Str("module", "signal").Str("user", string(p.ID)).Str("conn", string(conn.id)).Msg("new WS connection")
	ctl.Hub.Connect(p.ID, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, p, conn)
}
