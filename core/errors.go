package core

import "errors"

var (
	// ErrNonceInvalid is returned when a nonce is absent, expired, or already consumed
	ErrNonceInvalid = errors.New("nonce is invalid")

	// ErrMalformedMessage is returned when a SIWE message cannot be parsed
	ErrMalformedMessage = errors.New("malformed SIWE message")

	// ErrDomainMismatch is returned when the message domain does not match the configured domain
	ErrDomainMismatch = errors.New("message domain mismatch")

	// ErrMessageExpired is returned when a SIWE message carries an expiration time in the past
	ErrMessageExpired = errors.New("message has expired")

	// ErrInvalidSignature is returned when signature recovery fails or the recovered
	// address does not match the message address
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrTokenExpired is returned when an access token has expired
	ErrTokenExpired = errors.New("token has expired")

	// ErrInvalidToken is returned when an access token fails signature or claim checks
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformedAuthHeader is returned when the Authorization header is not a Bearer token
	ErrMalformedAuthHeader = errors.New("malformed authorization header")

	// ErrAuthRequired is returned when no credentials are presented at all
	ErrAuthRequired = errors.New("authentication required")

	// ErrRateLimited is returned when an identifier exceeds its request budget
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrRPC is returned when a blockchain call fails after the fallback attempt
	ErrRPC = errors.New("rpc call failed")

	// ErrPolicyNotFound is returned when no policy exists under the requested name
	ErrPolicyNotFound = errors.New("policy not found")
)

// Error codes exposed to clients. The codes are stable identifiers; wrapped
// error text is for logs only and never reaches the response body.
const (
	CodeNonceInvalid      = "NONCE_INVALID"
	CodeMalformedMessage  = "MALFORMED_MESSAGE"
	CodeDomainMismatch    = "DOMAIN_MISMATCH"
	CodeMessageExpired    = "MESSAGE_EXPIRED"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeInvalidAuthFormat = "INVALID_AUTH_FORMAT"
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeRateLimited       = "RATE_LIMITED"
	CodePolicyDenied      = "POLICY_DENIED"
	CodePolicyNotFound    = "POLICY_NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrorCode maps a core error to its stable client-facing code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNonceInvalid):
		return CodeNonceInvalid
	case errors.Is(err, ErrMalformedMessage):
		return CodeMalformedMessage
	case errors.Is(err, ErrDomainMismatch):
		return CodeDomainMismatch
	case errors.Is(err, ErrMessageExpired):
		return CodeMessageExpired
	case errors.Is(err, ErrInvalidSignature):
		return CodeInvalidSignature
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrMalformedAuthHeader):
		return CodeInvalidAuthFormat
	case errors.Is(err, ErrAuthRequired):
		return CodeAuthRequired
	case errors.Is(err, ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrPolicyNotFound):
		return CodePolicyNotFound
	default:
		return CodeInternal
	}
}
