package ports

import "context"

// AllowlistRepository looks up membership of an address in a named allowlist.
// Addresses are compared lowercase; implementations normalize on write.
type AllowlistRepository interface {
	IsMember(ctx context.Context, allowlistID, address string) (bool, error)
}
