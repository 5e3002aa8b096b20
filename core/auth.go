package core

import "time"

// Identity is the result of a successful SIWE verification
type Identity struct {
	Address string // EIP-55 checksummed Ethereum address
	ChainID int    // Chain ID the message was signed for
}

// Credential holds the claims carried by an issued bearer token
type Credential struct {
	Subject   string    // EIP-55 checksummed Ethereum address
	IssuedAt  time.Time // When the credential was issued
	NotBefore time.Time // Earliest instant the credential is usable
	ExpiresAt time.Time // When the credential stops being valid
	Scopes    []string  // Granted scopes, order preserved
}

// AuditOutcome classifies an audit event
type AuditOutcome string

const (
	AuditOutcomeSuccess     AuditOutcome = "success"
	AuditOutcomeDenied      AuditOutcome = "denied"
	AuditOutcomeRateLimited AuditOutcome = "rate_limited"
)

// AuditEvent records one authentication or authorization decision
type AuditEvent struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Address   string       `json:"address,omitempty"`
	IP        string       `json:"ip,omitempty"`
	Outcome   AuditOutcome `json:"outcome"`
	Reason    string       `json:"reason,omitempty"`
}
