package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"fleamarket/internal/infra/config"
	"fleamarket/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	Listing        ListingHTTP
	Chat           ChatHTTP
	Assistant      AssistantHTTP
	Admin          AdminHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Content-Disposition",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Listing != nil {
		api.GET("/listings", h.Listing.Catalog)
		api.GET("/listings/:id", h.Listing.Get)
		api.POST("/listings", h.Listing.Create)
		api.PUT("/listings/:id", h.Listing.Update)
		api.POST("/listings/:id/publish", h.Listing.Publish)
		api.POST("/listings/:id/photos", h.Listing.AddPhoto)
		api.POST("/listings/:id/buy", h.Listing.Buy)
		api.GET("/me/listings", h.Listing.MyListings)
		api.GET("/me/purchases", h.Listing.MyPurchases)
	}
	if h.Chat != nil {
		api.GET("/conversations", h.Chat.ListConversations)
		api.POST("/conversations", h.Chat.StartConversation)
		api.GET("/conversations/:id/messages", h.Chat.ListMessages)
		api.POST("/messages", h.Chat.SendMessage)
		api.POST("/conversations/:id/messages/:messageId/read", h.Chat.MarkRead)
		api.GET("/conversations/:id/ws", h.Chat.Subscribe)
	}
	if h.Assistant != nil {
		api.POST("/assistant/ask", h.Assistant.Ask)
	}
	if h.Admin != nil {
		adminGroup := api.Group("/admin")
		adminGroup.GET("/users", h.Admin.ListUsers)
		adminGroup.POST("/users/:id/blocked", h.Admin.SetUserBlocked)
		adminGroup.GET("/listings", h.Admin.ListListings)
		adminGroup.GET("/conversations", h.Admin.ListConversations)
		adminGroup.GET("/listings/export", h.Admin.ExportListings)
		adminGroup.GET("/purchases/export", h.Admin.ExportPurchases)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
