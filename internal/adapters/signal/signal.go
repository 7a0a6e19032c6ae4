package signal

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// IdentityResolver turns a handshake token into a user identity.
type IdentityResolver interface {
	Resolve(token string) (domain.UserID, error)
}

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	WriteWait      time.Duration
	IdleTimeout    time.Duration
	SendBuffer     int
	AllowedOrigins []string

	// RateLimit inbound frames per RateInterval per user and channel; 0
	// disables.
	RateLimit    int
	RateInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 65536
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// WsSignalConn is a websocket endpoint with a bounded outbound queue.
// It implements core.SignalConnection.
type WsSignalConn struct {
	conn      *websocket.Conn
	send      chan core.Frame
	writeWait time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func NewWsSignalConn(ws *websocket.Conn, buffer int, writeWait time.Duration) *WsSignalConn {
	return &WsSignalConn{
		conn:      ws,
		send:      make(chan core.Frame, buffer),
		writeWait: writeWait,
		done:      make(chan struct{}),
	}
}

// TrySend queues f without blocking. A full queue means the client is too
// slow and the caller should drop it.
func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close marks the connection closed and returns at once. The closure frame
// and socket release happen in the background, so a router evicting a
// stalled client is never held up by its full TCP buffer. Safe to call more
// than once and concurrently with TrySend.
func (c *WsSignalConn) Close() {
	c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *WsSignalConn) closeWith(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	close(c.done)

	go func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
		_ = c.conn.Close()
	}()
}

// Done is closed once Close has been called.
func (c *WsSignalConn) Done() <-chan struct{} { return c.done }

// SignalWSController upgrades authenticated requests and runs their pumps.
// Chat and signaling keep separate rate windows, each forgotten only when
// the user leaves that channel.
type SignalWSController struct {
	Identity IdentityResolver
	Opts     Options

	chatLimiter   *RateLimiter
	signalLimiter *RateLimiter
	upgrader      websocket.Upgrader
}

func NewSignalWSController(identity IdentityResolver, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	ctl := &SignalWSController{
		Identity:      identity,
		Opts:          opts,
		chatLimiter:   NewRateLimiter(opts.RateLimit, opts.RateInterval),
		signalLimiter: NewRateLimiter(opts.RateLimit, opts.RateInterval),
	}
	ctl.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(opts.AllowedOrigins),
	}
	return ctl
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// handshakeToken reads ?token= first. A header without the Bearer scheme
// yields no token.
func handshakeToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	t, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return t
}

// accept upgrades the request and resolves the caller. An unresolvable
// token is answered with a policy violation close before any registration.
func (ctl *SignalWSController) accept(c *gin.Context, channel string) (domain.UserID, *WsSignalConn, bool) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Str("channel", channel).Msg("ws upgrade")
		return "", nil, false
	}
	conn := NewWsSignalConn(ws, ctl.Opts.SendBuffer, ctl.Opts.WriteWait)

	uid, err := ctl.Identity.Resolve(handshakeToken(c))
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Str("channel", channel).Msg("rejecting connection")
		conn.closeWith(websocket.ClosePolicyViolation, "invalid token")
		return "", nil, false
	}
	log.Info().Str("module", "adapters.signal").Str("channel", channel).Str("user", string(uid)).Str("client_id", c.Param("client_id")).Msg("new WS connection")
	return uid, conn, true
}
