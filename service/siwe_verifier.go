package service

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	siwe "github.com/spruceid/siwe-go"

	"github.com/layer-3/cerberus/core"
)

// SiweVerifier validates EIP-4361 messages and their EIP-191 signatures
// against the configured application domain and the nonce store.
type SiweVerifier struct {
	domain string
	nonces *NonceStore
	logger hclog.Logger

	now func() time.Time
}

// NewSiweVerifier creates a verifier bound to the application domain.
func NewSiweVerifier(domain string, nonces *NonceStore, logger hclog.Logger) *SiweVerifier {
	return &SiweVerifier{
		domain: domain,
		nonces: nonces,
		logger: logger.Named("siwe"),
		now:    time.Now,
	}
}

// Verify checks the message and signature and, only on a fully confirmed
// signature, consumes the nonce. Checks run in a fixed order and short-circuit
// on the first failure; any failure before the terminal consume leaves the
// nonce intact so a legitimate client can retry with the same challenge.
func (v *SiweVerifier) Verify(message, signature string) (*core.Identity, error) {
	parsed, err := siwe.ParseMessage(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
	}

	if parsed.GetDomain() != v.domain {
		return nil, fmt.Errorf("%w: got %q", core.ErrDomainMismatch, parsed.GetDomain())
	}

	if exp := parsed.GetExpirationTime(); exp != nil {
		expiresAt, err := time.Parse(time.RFC3339, *exp)
		if err != nil {
			return nil, fmt.Errorf("%w: bad expiration time %q", core.ErrMalformedMessage, *exp)
		}
		if !v.now().Before(expiresAt) {
			return nil, core.ErrMessageExpired
		}
	}

	// Non-consuming check first: a stale nonce must not cost the client
	// signature verification, and a bad signature must not burn the nonce.
	nonce := parsed.GetNonce()
	if err := v.nonces.Peek(nonce); err != nil {
		return nil, err
	}

	if _, err := parsed.VerifyEIP191(signature); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	// Terminal step: Consume revalidates under its own lock, closing the
	// window between the peek above and this point.
	if err := v.nonces.Consume(nonce); err != nil {
		return nil, err
	}

	identity := &core.Identity{
		Address: parsed.GetAddress().Hex(),
		ChainID: parsed.GetChainID(),
	}
	v.logger.Debug("message verified", "address", identity.Address, "chain_id", identity.ChainID)
	return identity, nil
}
