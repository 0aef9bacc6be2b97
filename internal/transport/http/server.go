package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loomchat/loom-server/internal/auth"
	"github.com/loomchat/loom-server/internal/config"
	"github.com/loomchat/loom-server/internal/core"
	"github.com/loomchat/loom-server/internal/room"
	"github.com/loomchat/loom-server/internal/service/friends"
	"github.com/loomchat/loom-server/internal/service/groups"
	"github.com/loomchat/loom-server/internal/store"
)

// Services bundles the collaborators the REST surface talks to.
type Services struct {
	Auth       *auth.Service
	Friends    *friends.Service
	Groups     *groups.Service
	Authorizer *room.Authorizer
	Store      store.Store
}

// NewServer builds an HTTP server with REST and WebSocket routes.
func NewServer(hub *core.Hub, svc Services, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/ws", NewWSHandler(hub, svc.Auth, cfg.MaxMessageBytes, logger))
	mux.Handle("/api/", newRouter(hub, svc, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newRouter(hub *core.Hub, svc Services, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(svc.Auth, logger)
	messageHandlers := NewMessageHandlers(hub, svc.Authorizer, svc.Store, logger)
	groupHandlers := NewGroupHandlers(svc.Groups, logger)
	friendsHandlers := NewFriendsHandlers(svc.Friends, svc.Store, logger)

	api := r.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	protected := api.Group("")
	protected.Use(AuthMiddleware(svc.Auth, logger))

	protected.GET("/messages", messageHandlers.List)
	protected.POST("/messages", messageHandlers.Post)

	protected.POST("/groups", groupHandlers.Create)
	protected.GET("/groups", groupHandlers.List)
	protected.GET("/groups/:id", groupHandlers.Get)
	protected.POST("/groups/:id/members", groupHandlers.AddMember)
	protected.DELETE("/groups/:id/members/:userId", groupHandlers.RemoveMember)

	protected.POST("/friend-requests", friendsHandlers.SendRequest)
	protected.GET("/friend-requests/incoming", friendsHandlers.ListIncoming)
	protected.GET("/friend-requests/sent", friendsHandlers.ListSent)
	protected.POST("/friend-requests/:id/accept", friendsHandlers.Accept)
	protected.DELETE("/friend-requests/:id", friendsHandlers.Delete)

	return r
}

func healthHandler(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
	_, _ = fmt.Fprint(w, "ok")
}
