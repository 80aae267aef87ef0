package signal

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const sendBuffer = 32

// Controller owns the websocket side of signaling: it upgrades
// connections, runs their pumps and feeds decoded events to the relay.
type Controller struct {
	Relay      *app.Relay
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(relay *app.Relay, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{Relay: relay, ReadLimit: readLimit, PingPeriod: pingPeriod}
}

// wsConn adapts one gorilla connection to core.SignalConn.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
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
	c.mu.Unlock()
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	// Origin policy is enforced upstream; the signaling endpoint is
	// also dialed by non-browser clients without an Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the connection's pumps.
// Each socket gets a fresh ConnID: the registry tracks transport
// sessions, not browsers (the ct cookie only correlates logs).
func (ctl *Controller) HandleSignal(c *gin.Context) {
	id := domain.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("ct", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}

	go ctl.writePump(conn)
	go ctl.readPump(id, conn)
}
