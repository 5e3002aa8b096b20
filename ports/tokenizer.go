package ports

import (
	"time"

	"github.com/layer-3/cerberus/core"
)

// CredentialIssuer mints bearer tokens for verified addresses
type CredentialIssuer interface {
	// Issue signs a token for the address with the given scopes and
	// returns the encoded token together with its expiry.
	Issue(address string, scopes []string) (token string, expiresAt time.Time, err error)
}

// CredentialValidator checks presented bearer tokens
type CredentialValidator interface {
	// Validate verifies the token signature and time bounds and returns
	// the embedded credential. Failures map to core.ErrTokenExpired or
	// core.ErrInvalidToken.
	Validate(token string) (*core.Credential, error)
}
