package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/layer-3/cerberus/core"
	"github.com/layer-3/cerberus/service"
)

const (
	ctxKeyAddress = "userAddress"
	ctxKeyScopes  = "userScopes"
)

// RateLimitMiddleware bounds request rate per client IP for one endpoint
// class. Over-limit requests get 429 with a Retry-After header.
func RateLimitMiddleware(authService *service.AuthService, limiter *service.RateLimiterRegistry, class service.LimitClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.ClientIP()
		allowed, retryAfter := limiter.Allow(class, identifier)
		if !allowed {
			authService.ReportRateLimited(c.Request.Context(), identifier, class)
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  core.CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}

// RequirePolicy gates a route behind one named policy. The policy name is
// fixed at wiring time, so an unknown name is a configuration error rather
// than a client mistake.
func RequirePolicy(policyManager *service.PolicyManager, policyName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := common.HexToAddress(c.GetString(ctxKeyAddress))

		granted, err := policyManager.Evaluate(c.Request.Context(), policyName, subject)
		if err != nil {
			if errors.Is(err, core.ErrPolicyNotFound) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "policy misconfigured",
					"code":  core.CodeInternal,
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied",
				"code":  core.CodePolicyDenied,
			})
			return
		}
		if !granted {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied",
				"code":  core.CodePolicyDenied,
			})
			return
		}
		c.Next()
	}
}

// AuthMiddleware validates the bearer credential and stores the verified
// address and scopes on the request context.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			authService.ReportCredentialRejected(c.Request.Context(), c.ClientIP(), core.CodeAuthRequired)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
				"code":  core.CodeAuthRequired,
			})
			return
		}

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			authService.ReportCredentialRejected(c.Request.Context(), c.ClientIP(), core.CodeInvalidAuthFormat)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization header",
				"code":  core.CodeInvalidAuthFormat,
			})
			return
		}

		cred, err := authService.ValidateToken(token)
		if err != nil {
			if errors.Is(err, core.ErrTokenExpired) {
				authService.ReportCredentialRejected(c.Request.Context(), c.ClientIP(), core.CodeTokenExpired)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "token expired",
					"code":  core.CodeTokenExpired,
				})
				return
			}
			authService.ReportCredentialRejected(c.Request.Context(), c.ClientIP(), core.CodeInvalidToken)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
				"code":  core.CodeInvalidToken,
			})
			return
		}

		c.Set(ctxKeyAddress, cred.Subject)
		c.Set(ctxKeyScopes, cred.Scopes)
		c.Next()
	}
}
