package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/internal/auth"
	"github.com/vovakirdan/snapnest-relay/internal/config"
	"github.com/vovakirdan/snapnest-relay/internal/core"
	"github.com/vovakirdan/snapnest-relay/internal/proto"
	"github.com/vovakirdan/snapnest-relay/internal/store"
)

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(hub, authService, st, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler builds the router wrapped with CORS.
func NewHandler(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	router.POST("/api/register", apiHandlers.Register)
	router.POST("/api/login", apiHandlers.Login)

	authed := router.Group("/api")
	authed.Use(AuthMiddleware(authService, logger))
	{
		userHandlers := NewUserHandlers(st, logger)
		authed.GET("/users/search", userHandlers.SearchUsers)
		authed.GET("/users/:id", userHandlers.GetUser)

		messageHandlers := NewMessageHandlers(st, logger)
		authed.GET("/messages/:user_id", messageHandlers.History)

		callsHandlers := NewCallsHandlers(st, logger)
		authed.GET("/calls", callsHandlers.List)
	}

	ws := NewWSHandler(hub, authService, st, cfg, logger)
	router.GET("/ws/chat/:user_id", ws.Chat)
	router.GET("/ws/notify", ws.Notify)

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "ok", "protocol": proto.ProtocolVersion})
}
