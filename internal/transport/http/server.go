package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/auth"
	"github.com/vovakirdan/amity-server/internal/config"
	"github.com/vovakirdan/amity-server/internal/core"
	"github.com/vovakirdan/amity-server/internal/service/friends"
	"github.com/vovakirdan/amity-server/internal/store"
)

// NewServer builds the HTTP server: the websocket endpoint plus the REST API.
func NewServer(
	handler *core.ConnectionHandler,
	chats *core.MembershipIndex,
	authService *auth.Service,
	friendsService *friends.Service,
	st store.Store,
	cfg *config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	engine.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	engine.GET("/ws", gin.WrapH(NewWSHandler(handler, cfg.OutboundQueueSize, logger)))

	apiHandlers := NewAPIHandlers(authService, logger)
	engine.POST("/api/register", apiHandlers.Register)
	engine.POST("/api/login", apiHandlers.Login)

	chatHandlers := NewChatHandlers(st, chats, logger)
	friendsHandlers := NewFriendsHandlers(friendsService, st, logger)
	userHandlers := NewUserHandlers(st, logger)

	api := engine.Group("/api", AuthMiddleware(authService, logger))
	{
		api.POST("/chats", chatHandlers.CreateChat)
		api.GET("/chats", chatHandlers.ListChats)
		api.POST("/chats/:chatID/participants", chatHandlers.AddParticipant)
		api.GET("/chats/:chatID/messages", chatHandlers.ListMessages)

		api.GET("/friends", friendsHandlers.ListFriends)
		api.GET("/friend-requests", friendsHandlers.ListRequests)
		api.POST("/friend-requests", friendsHandlers.SendRequest)
		api.PUT("/friend-requests/:requestID", friendsHandlers.ResolveRequest)

		api.GET("/users/search", userHandlers.SearchUsers)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
