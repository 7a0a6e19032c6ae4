package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Telehealth/internal/adapters/signal"
	"github.com/dkeye/Telehealth/internal/app"
	"github.com/dkeye/Telehealth/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SetupRouter wires HTTP routes (REST + WS) with orchestrator and transport.
//   - REST is under cfg.APIPrefix
//   - chat websocket at {prefix}/chat/ws/:client_id
//   - signaling websocket at {prefix}/video/signal/:client_id
func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, identity signal.IdentityResolver) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to Telehealth Platform API"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	ws := signal.NewSignalWSController(identity, signal.Options{
		ReadLimit:      cfg.WS.ReadLimit,
		PingPeriod:     cfg.WS.PingPeriod,
		WriteWait:      cfg.WS.WriteWait,
		IdleTimeout:    cfg.WS.IdleTimeout,
		SendBuffer:     cfg.WS.SendBuffer,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimit:      cfg.WS.RateLimit,
		RateInterval:   cfg.WS.RateInterval,
	})

	api := r.Group(cfg.APIPrefix)

	api.GET("/chat/ws/:client_id", func(c *gin.Context) {
		ws.HandleChat(ctx, c, orch.Chat)
	})
	api.GET("/video/signal/:client_id", func(c *gin.Context) {
		ws.HandleSignal(ctx, c, orch.Signal)
	})
	api.GET("/stats", AuthMiddleware(identity), func(c *gin.Context) {
		c.JSON(http.StatusOK, orch.Stats())
	})

	calls := &callHandlers{ledger: orch.Ledger}
	g := api.Group("/calls", AuthMiddleware(identity))
	g.POST("/invite", calls.createInvite)
	g.GET("/history", calls.history)
	g.GET("/:session_id", calls.get)
	g.POST("/:session_id/join", calls.join)
	g.POST("/:session_id/end", calls.end)

	log.Info().Str("module", "adapters.http").Str("prefix", cfg.APIPrefix).Msg("router setup")
	return r
}
