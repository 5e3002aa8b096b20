package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with the granted scopes
type AccessClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}
