package signal

import (
	"context"
	"time"

	"github.com/dkeye/Telehealth/internal/app"
	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// channel is what a connection is admitted into.
type channel interface {
	Join(uid domain.UserID, conn core.SignalConnection)
	Leave(uid domain.UserID, conn core.SignalConnection)
}

type chatChannel struct{ *app.ChatChannel }

func (c chatChannel) Leave(uid domain.UserID, conn core.SignalConnection) {
	c.ChatChannel.Leave(uid, conn)
}

// HandleChat serves the broadcast text channel until the client goes away.
func (ctl *SignalWSController) HandleChat(ctx context.Context, c *gin.Context, chat *app.ChatChannel) {
	uid, conn, ok := ctl.accept(c, "chat")
	if !ok {
		return
	}
	ctl.serve(ctx, uid, conn, chatChannel{chat}, chat.Registry, ctl.chatLimiter, "chat", func(data []byte) {
		chat.Say(uid, string(data))
	})
}

// HandleSignal serves the unicast signaling channel.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, relay *app.SignalRelay) {
	uid, conn, ok := ctl.accept(c, "signal")
	if !ok {
		return
	}
	ctl.serve(ctx, uid, conn, relay, relay.Registry, ctl.signalLimiter, "signal", func(data []byte) {
		relay.Relay(uid, data)
	})
}

func (ctl *SignalWSController) serve(
	ctx context.Context,
	uid domain.UserID,
	conn *WsSignalConn,
	ch channel,
	reg core.ConnectionRegistry,
	limiter *RateLimiter,
	name string,
	onFrame func([]byte),
) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, conn.Close)
	defer func() {
		stop()
		cancel()
		ch.Leave(uid, conn)
		if len(reg.ConnectionsFor(uid)) == 0 {
			limiter.Forget(uid)
		}
		log.Info().Str("module", "adapters.signal").Str("channel", name).Str("user", string(uid)).Msg("connection finished")
	}()

	ch.Join(uid, conn)
	go ctl.writePump(ctx, uid, conn)
	ctl.readPump(uid, conn, limiter, onFrame)
}

func (ctl *SignalWSController) writePump(ctx context.Context, uid domain.UserID, c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.Opts.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.Opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "adapters.signal").Str("user", string(uid)).Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.signal").Str("user", string(uid)).Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

// readPump processes frames in arrival order until the socket fails. With
// an idle timeout every frame or pong pushes the read deadline forward.
func (ctl *SignalWSController) readPump(uid domain.UserID, c *WsSignalConn, limiter *RateLimiter, onFrame func([]byte)) {
	c.conn.SetReadLimit(ctl.Opts.ReadLimit)
	idle := ctl.Opts.IdleTimeout
	extend := func() {
		if idle > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(idle))
		}
	}
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("module", "adapters.signal").Str("user", string(uid)).Msg("readPump read error")
			}
			return
		}
		extend()
		if mt != websocket.TextMessage {
			continue
		}
		if !limiter.Allow(uid) {
			log.Debug().Str("module", "adapters.signal").Str("user", string(uid)).Msg("rate limited, dropping frame")
			continue
		}
		onFrame(data)
	}
}
