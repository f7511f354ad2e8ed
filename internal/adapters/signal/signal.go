package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/router"
	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const sendBuffer = 32

// Dispatcher forwards client requests to the session managers.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg router.Message) error
}

type Options struct {
	RateLimit  float64
	RateBurst  int
	ReadLimit  int64
	PingPeriod time.Duration
}

type SignalWSController struct {
	router  Dispatcher
	policy  app.Policy
	limiter *UserRateLimiter
	opts    Options

	mu    sync.RWMutex
	conns map[string]*WsSignalConn
	users map[domain.UserID]int
}

func NewSignalWSController(r Dispatcher, policy app.Policy, opts Options) *SignalWSController {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &SignalWSController{
		router:  r,
		policy:  policy,
		limiter: NewUserRateLimiter(opts.RateLimit, opts.RateBurst),
		opts:    opts,
		conns:   make(map[string]*WsSignalConn),
		users:   make(map[domain.UserID]int),
	}
}

type WsSignalConn struct {
	id   string
	user domain.UserID
	conn *websocket.Conn
	send chan core.Frame

	mu      sync.RWMutex
	closed  bool
	dropped int
}

func (c *WsSignalConn) ID() string { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
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

var _ core.SignalConnection = (*WsSignalConn)(nil)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves the connection until the
// client leaves or ctx ends.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	uid := domain.UserID(c.GetString("client_token"))
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		id:   uuid.NewString(),
		user: uid,
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}
	ctl.register(conn)
	log.Info().Str("module", "signal").Str("conn", conn.id).Str("user", string(uid)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
		ctl.leave(context.WithoutCancel(ctx), conn)
	}()
}

func (ctl *SignalWSController) register(c *WsSignalConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.conns[c.id] = c
	ctl.users[c.user]++
}

func (ctl *SignalWSController) unregister(c *WsSignalConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	delete(ctl.conns, c.id)
	if ctl.users[c.user]--; ctl.users[c.user] <= 0 {
		delete(ctl.users, c.user)
		ctl.limiter.Forget(c.user)
	}
}

func (ctl *SignalWSController) lookup(id string) (*WsSignalConn, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	c, ok := ctl.conns[id]
	return c, ok
}

// leave tells every session manager the connection is gone.
func (ctl *SignalWSController) leave(ctx context.Context, c *WsSignalConn) {
	ctl.unregister(c)
	for _, k := range router.Kinds {
		msg := router.Message{Type: k, ID: router.ActionClose, ConnectionID: c.id, UserID: c.user}
		if err := ctl.router.Dispatch(ctx, msg); err != nil {
			log.Warn().Str("module", "signal").Str("conn", c.id).Str("type", string(k)).Err(err).Msg("dispatch close")
		}
	}
	log.Info().Str("module", "signal").Str("conn", c.id).Msg("connection left")
}

// Connections reports how many clients are attached.
func (ctl *SignalWSController) Connections() int {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	return len(ctl.conns)
}
