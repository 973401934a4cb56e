package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	userapp "github.com/taskhub/account-api/internal/application"
	"github.com/taskhub/account-api/internal/container"
	handlers "github.com/taskhub/account-api/internal/interface/http"
	"github.com/taskhub/account-api/internal/interface/middleware"
	"github.com/taskhub/account-api/pkg/tokens"
)

// UserModule wires the account handlers and the auth gate into routes.
// Public: POST /api/users, POST /api/users/login, GET /api/users/:id/avatar
// Protected: logout, logoutAll, me (get/patch/delete), avatar (post/delete),
// search.
type UserModule struct {
	Handler *handlers.UserHandler
	Svc     *userapp.Service
	Tokens  *tokens.Manager
}

func NewUserModule(h *handlers.UserHandler, svc *userapp.Service, tm *tokens.Manager) *UserModule {
	return &UserModule{Handler: h, Svc: svc, Tokens: tm}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	registerLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	avatarReadLimiter := middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/users", registerLimiter, m.Handler.Register)
	rg.POST("/users/login", loginLimiter, m.Handler.Login)
	rg.GET("/users/:id/avatar", avatarReadLimiter, m.Handler.GetAvatar)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Svc, m.Tokens))
	auth.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUser(), nil),
	)
	{
		auth.POST("/users/logout", m.Handler.Logout)
		auth.POST("/users/logoutAll", m.Handler.LogoutAll)
		auth.GET("/users/me", m.Handler.Me)
		auth.PATCH("/users/me", m.Handler.UpdateMe)
		auth.DELETE("/users/me", m.Handler.DeleteMe)
		auth.POST("/users/me/avatar", m.Handler.UploadAvatar)
		auth.DELETE("/users/me/avatar", m.Handler.DeleteAvatar)
		auth.GET("/users/search", m.Handler.Search)
	}
}
