package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/cerberus/core"
)

const AudienceAccess = "gateway:access"

// DefaultAccessTTL is the credential lifetime when none is configured
const DefaultAccessTTL = 24 * time.Hour

// JWTTokenizer issues and validates HS256 bearer credentials. Credentials are
// stateless: validity is a pure function of the claims and the signing key,
// with no server-side revocation list.
type JWTTokenizer struct {
	signKey []byte
	ttl     time.Duration
}

// NewJWTTokenizer creates a tokenizer signing with the given symmetric key.
func NewJWTTokenizer(signKey []byte, ttl time.Duration) (*JWTTokenizer, error) {
	if len(signKey) < 32 {
		return nil, fmt.Errorf("signing key must be at least 32 bytes, got %d", len(signKey))
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &JWTTokenizer{signKey: signKey, ttl: ttl}, nil
}

// Issue mints a token for the address with the given scopes.
func (j *JWTTokenizer) Issue(address string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(j.ttl)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies the token signature before trusting any claim, then the
// nbf and exp bounds, and returns the embedded credential.
func (j *JWTTokenizer) Validate(tokenStr string) (*core.Credential, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.signKey, nil
	}, jwt.WithAudience(AudienceAccess), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		// jwt/v5 validates claims only after the signature checks out, so
		// ErrTokenExpired here implies an authentic token.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, core.ErrInvalidToken
	}
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	cred := &core.Credential{
		Subject: claims.Subject,
		Scopes:  claims.Scopes,
	}
	if claims.IssuedAt != nil {
		cred.IssuedAt = claims.IssuedAt.Time
	}
	if claims.NotBefore != nil {
		cred.NotBefore = claims.NotBefore.Time
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}
