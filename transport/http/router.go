package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/layer-3/cerberus/service"
)

// SetupRouter builds the Gin router with the auth, gated, and ops routes.
func SetupRouter(
	authService *service.AuthService,
	policyManager *service.PolicyManager,
	limiter *service.RateLimiterRegistry,
) *gin.Engine {
	router := gin.Default()

	handlers := NewAuthHandlers(authService, policyManager)

	auth := router.Group("/auth/siwe")
	{
		auth.GET("/nonce",
			RateLimitMiddleware(authService, limiter, service.LimitClassNonce),
			handlers.Nonce)
		auth.POST("/verify",
			RateLimitMiddleware(authService, limiter, service.LimitClassVerify),
			handlers.Verify)
	}

	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/gated/:policy", handlers.Gated)
	}

	router.GET("/healthz", handlers.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
