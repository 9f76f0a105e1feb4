package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"libchat/internal/auth"
	"libchat/internal/handler"
	"libchat/internal/hub"
	"libchat/internal/middleware"
	"libchat/internal/store"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, Limiter: loginLimiter}

	r.POST("/auth/register", authHandler.Register)
	r.POST("/auth/login", authHandler.Login)
	r.POST("/auth/refresh", authHandler.Refresh)

	protected := r.Group("/")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	chatHandler := &handler.ChatHandler{Store: deps.Store}
	protected.GET("/chat/messages", chatHandler.Messages)
	protected.POST("/chat/messages", chatHandler.Create)

	bookHandler := &handler.BookHandler{Store: deps.Store}
	protected.GET("/books/", bookHandler.List)
	protected.POST("/books/", bookHandler.Create)
	protected.GET("/books/:id", bookHandler.Get)
	protected.PUT("/books/:id", bookHandler.Update)
	protected.DELETE("/books/:id", bookHandler.Delete)

	wsHub := hub.New()
	wsHandler := &handler.WebSocketHandler{Hub: wsHub, Store: deps.Store, TokenConfig: deps.TokenConfig}
	r.GET("/ws", wsHandler.Serve)

	return r
}
