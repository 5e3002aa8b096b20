package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/layer-3/cerberus/core"
	"github.com/layer-3/cerberus/service"
)

// AuthHandlers contains the HTTP handlers for the auth and gated endpoints
type AuthHandlers struct {
	authService   *service.AuthService
	policyManager *service.PolicyManager
}

// NewAuthHandlers creates the handler set.
func NewAuthHandlers(authService *service.AuthService, policyManager *service.PolicyManager) *AuthHandlers {
	return &AuthHandlers{
		authService:   authService,
		policyManager: policyManager,
	}
}

// Nonce handles GET /auth/siwe/nonce
func (h *AuthHandlers) Nonce(c *gin.Context) {
	nonce, expiresAt, err := h.authService.IssueNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue nonce", "code": core.CodeInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":     nonce,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify handles POST /auth/siwe/verify
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": core.CodeMalformedMessage})
		return
	}

	result, err := h.authService.VerifySiwe(c.Request.Context(), req.Message, req.Signature, c.ClientIP())
	if err != nil {
		if code := core.ErrorCode(err); code != core.CodeInternal {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errorMessage(code), "code": code})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed", "code": core.CodeInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     result.Token,
		"address":   result.Address,
		"expiresAt": result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Me handles GET /api/me for authenticated callers
func (h *AuthHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"address": c.GetString(ctxKeyAddress),
		"scopes":  c.GetStringSlice(ctxKeyScopes),
	})
}

// Gated handles GET /api/gated/:policy, granting access only when the named
// policy allows the authenticated address.
func (h *AuthHandlers) Gated(c *gin.Context) {
	policyName := c.Param("policy")
	subject := common.HexToAddress(c.GetString(ctxKeyAddress))

	granted, err := h.policyManager.Evaluate(c.Request.Context(), policyName, subject)
	if err != nil {
		if errors.Is(err, core.ErrPolicyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown policy", "code": core.CodePolicyNotFound})
			return
		}
		// All rules failed to evaluate; deny without leaking RPC detail.
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied", "code": core.CodePolicyDenied})
		return
	}
	if !granted {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied", "code": core.CodePolicyDenied})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granted": true,
		"policy":  policyName,
		"address": c.GetString(ctxKeyAddress),
	})
}

// Healthz handles GET /healthz
func (h *AuthHandlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func errorMessage(code string) string {
	switch code {
	case core.CodeNonceInvalid:
		return "nonce is invalid or already used"
	case core.CodeMalformedMessage:
		return "message could not be parsed"
	case core.CodeDomainMismatch:
		return "message domain is not accepted"
	case core.CodeMessageExpired:
		return "message has expired"
	case core.CodeInvalidSignature:
		return "signature verification failed"
	default:
		return "authentication failed"
	}
}
