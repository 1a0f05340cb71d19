package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/vibeconnect/social-backend/internal/config"
	"github.com/vibeconnect/social-backend/internal/http/handlers"
	"github.com/vibeconnect/social-backend/internal/http/middleware"
)

// SetupRouter собирает gin.Engine со всеми маршрутами API.
func SetupRouter(
	cfg *config.Config,
	rateLimitStore limiter.Store,
	authenticator middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	oauthHandler *handlers.OAuthHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if !cfg.IsProduction() {
		r.Use(gin.Logger())
	}
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.GET("/ws", wsHandler.Handle)

	// Публичные маршруты авторизации с ограничением частоты.
	authGroup := api.Group("/auth")
	if rateLimitStore != nil {
		authGroup.Use(middleware.RateLimitMiddleware(rateLimitStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))
	}
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/verify-email", authHandler.VerifyEmail)
		authGroup.POST("/resend-verification", authHandler.ResendVerification)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)

		authGroup.GET("/session", oauthHandler.GoogleSession)
		authGroup.GET("/apple/config", oauthHandler.AppleConfig)
		authGroup.POST("/callback/apple", oauthHandler.AppleCallback)
	}

	// Защищённые маршруты.
	protected := api.Group("/auth")
	protected.Use(middleware.SessionAuth(authenticator))
	{
		protected.GET("/me", authHandler.Me)
		protected.PUT("/me", authHandler.UpdateMe)
		protected.GET("/sessions", authHandler.ListSessions)
		protected.DELETE("/sessions/:id", middleware.UUIDValidator("id"), authHandler.DeleteSession)
		protected.DELETE("/sessions", authHandler.DeleteOtherSessions)
	}

	return r
}
