package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"securesign/internal/handlers"
	"securesign/internal/metrics"
	"securesign/internal/middleware"
	"securesign/internal/ratelimit"
	"securesign/internal/services"
)

// Rate-limited actions; the names are the keys of ratelimit rules.
const (
	ActionLogin          = "login"
	ActionVerifyEmail    = "verify-email"
	ActionForgotPassword = "forgot-password"
	ActionResetPassword  = "reset-password"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	sessions services.SessionService,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer, // может быть nil: /metrics не публикуем
	log *slog.Logger,
) *gin.Engine {
	limit := func(action string) gin.HandlerFunc {
		return middleware.RateLimit(limiter, action, m, log)
	}

	// ---- service
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ---- auth
	auth := r.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", limit(ActionLogin), authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/verify-email", limit(ActionVerifyEmail), authHandler.VerifyEmail)
		auth.POST("/forgot-password", limit(ActionForgotPassword), authHandler.ForgotPassword)
		auth.POST("/reset-password/:token", limit(ActionResetPassword), authHandler.ResetPassword)

		auth.GET("/check-auth", middleware.AuthMiddleware(sessions, log), authHandler.CheckAuth)
	}

	return r
}
