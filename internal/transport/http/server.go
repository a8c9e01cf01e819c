package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/auth"
	"github.com/ndudnik/pairchat-server/internal/config"
	"github.com/ndudnik/pairchat-server/internal/core"
	"github.com/ndudnik/pairchat-server/internal/store"
)

// Realtime groups the core components the transport dispatches into.
type Realtime struct {
	Registry *core.Registry
	Presence *core.Presencer
	Typing   *core.TypingRelay
	Delivery *core.Delivery
	Sender   *core.Sender
}

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(rt *Realtime, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, logger)
	convHandlers := NewConversationHandlers(st, logger)

	api := router.Group("/api")
	{
		api.POST("/auth/register", apiHandlers.Register)
		api.POST("/auth/login", apiHandlers.Login)

		authed := api.Group("")
		authed.Use(AuthMiddleware(authService, logger))
		{
			authed.GET("/users", userHandlers.ListUsers)
			authed.GET("/users/me", userHandlers.GetMe)
			authed.GET("/users/:id", userHandlers.GetUser)

			authed.GET("/conversations", convHandlers.ListConversations)
			authed.POST("/conversations", convHandlers.GetOrCreateConversation)
			authed.GET("/conversations/:id/messages", convHandlers.ListMessages)

			authed.GET("/messages/undelivered", convHandlers.ListUndelivered)
		}
	}

	wsHandler := NewWSHandler(rt, authService, cfg, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
}
