package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	siwe "github.com/spruceid/siwe-go"

	"github.com/layer-3/cerberus/core"
	"github.com/layer-3/cerberus/internal/metrics"
	"github.com/layer-3/cerberus/ports"
)

// AuthService orchestrates the authentication flow: nonce issuance, SIWE
// verification, credential minting and validation, and audit reporting.
type AuthService struct {
	nonces    *NonceStore
	verifier  *SiweVerifier
	issuer    ports.CredentialIssuer
	validator ports.CredentialValidator
	audit     ports.AuditPublisher
	logger    hclog.Logger

	// scopes granted to every wallet that completes SIWE login
	grantScopes []string
}

// NewAuthService wires the authentication collaborators together.
func NewAuthService(
	nonces *NonceStore,
	verifier *SiweVerifier,
	issuer ports.CredentialIssuer,
	validator ports.CredentialValidator,
	audit ports.AuditPublisher,
	grantScopes []string,
	logger hclog.Logger,
) *AuthService {
	if len(grantScopes) == 0 {
		grantScopes = []string{"wallet"}
	}
	return &AuthService{
		nonces:      nonces,
		verifier:    verifier,
		issuer:      issuer,
		validator:   validator,
		audit:       audit,
		grantScopes: grantScopes,
		logger:      logger.Named("auth"),
	}
}

// IssueNonce returns a fresh single-use challenge and its expiry.
func (s *AuthService) IssueNonce() (string, time.Time, error) {
	return s.nonces.Issue()
}

// VerifyResult is the outcome of a successful SIWE login
type VerifyResult struct {
	Token     string
	Address   string
	ExpiresAt time.Time
}

// VerifySiwe validates the signed message, consumes its nonce, and mints a
// bearer credential for the verified address. Every attempt is audit-logged
// with the caller's IP; failures are surfaced as core errors for the
// transport layer to map to stable codes.
func (s *AuthService) VerifySiwe(ctx context.Context, message, signature, clientIP string) (*VerifyResult, error) {
	identity, err := s.verifier.Verify(message, signature)
	if err != nil {
		code := core.ErrorCode(err)
		metrics.AuthAttempts.WithLabelValues(code).Inc()
		s.publishAudit(ctx, core.AuditEvent{
			Address: addressFromMessage(message),
			IP:      clientIP,
			Outcome: core.AuditOutcomeDenied,
			Reason:  code,
		})
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(identity.Address, s.grantScopes)
	if err != nil {
		s.logger.Error("credential issuance failed", "address", identity.Address, "error", err)
		metrics.AuthAttempts.WithLabelValues(core.CodeInternal).Inc()
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	s.publishAudit(ctx, core.AuditEvent{
		Address: identity.Address,
		IP:      clientIP,
		Outcome: core.AuditOutcomeSuccess,
	})

	return &VerifyResult{Token: token, Address: identity.Address, ExpiresAt: expiresAt}, nil
}

// ValidateToken checks a presented bearer token and returns its credential.
func (s *AuthService) ValidateToken(token string) (*core.Credential, error) {
	return s.validator.Validate(token)
}

// ReportCredentialRejected audit-logs a rejected bearer credential. The
// caller is unidentified at this point, so the event carries only the IP and
// the rejection reason.
func (s *AuthService) ReportCredentialRejected(ctx context.Context, clientIP, reason string) {
	metrics.AuthAttempts.WithLabelValues(reason).Inc()
	s.publishAudit(ctx, core.AuditEvent{
		IP:      clientIP,
		Outcome: core.AuditOutcomeDenied,
		Reason:  reason,
	})
}

// ReportRateLimited audit-logs a rate limiter rejection as a potential abuse signal.
func (s *AuthService) ReportRateLimited(ctx context.Context, clientIP string, class LimitClass) {
	metrics.RateLimited.WithLabelValues(string(class)).Inc()
	s.publishAudit(ctx, core.AuditEvent{
		IP:      clientIP,
		Outcome: core.AuditOutcomeRateLimited,
		Reason:  string(class),
	})
}

// addressFromMessage best-effort extracts the claimed address from an
// unverified message so denied attempts can still be attributed in the audit
// log. The address is a claim at this point, not an identity.
func addressFromMessage(message string) string {
	parsed, err := siwe.ParseMessage(message)
	if err != nil {
		return ""
	}
	return parsed.GetAddress().Hex()
}

func (s *AuthService) publishAudit(ctx context.Context, event core.AuditEvent) {
	event.ID = uuid.New().String()
	event.Timestamp = time.Now().UTC()
	if err := s.audit.PublishAudit(ctx, event); err != nil {
		// Audit delivery is best-effort; the decision already stands.
		s.logger.Warn("failed to publish audit event", "outcome", event.Outcome, "error", err)
	}
}
