package app

import (
	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/rs/zerolog/log"
)

// Router delivers frames through a registry. Delivery is best-effort: a
// handle whose send fails is evicted and the failure is not reported to the
// sender.
type Router struct {
	Registry core.ConnectionRegistry
}

func NewRouter(reg core.ConnectionRegistry) *Router {
	return &Router{Registry: reg}
}

// Unicast sends data to every connection of target. A target with no
// connections is a silent no-op.
func (rt *Router) Unicast(target domain.UserID, data core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, c := range rt.Registry.ConnectionsFor(target) {
		rt.deliver(core.UserConnection{UserID: target, Conn: c}, data, &res)
	}
	log.Debug().Str("module", "app.router").Str("target", string(target)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("unicast result")
	return res
}

// Broadcast sends data to every registered connection except exclude, which
// may be nil.
func (rt *Router) Broadcast(data core.Frame, exclude core.SignalConnection) core.PublishResult {
	res := core.PublishResult{}
	for _, uc := range rt.Registry.AllConnections() {
		if exclude != nil && uc.Conn == exclude {
			continue
		}
		rt.deliver(uc, data, &res)
	}
	log.Debug().Str("module", "app.router").Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (rt *Router) deliver(uc core.UserConnection, data core.Frame, res *core.PublishResult) {
	if err := uc.Conn.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("user", string(uc.UserID)).Msg("stale connection, evicting")
		rt.Registry.Disconnect(uc.UserID, uc.Conn)
		res.Dropped = append(res.Dropped, uc)
		return
	}
	res.SendTo++
}
