package ports

import "context"

// ChainCaller performs read-only contract calls against a configured chain.
// Implementations own endpoint selection, timeouts, and fallback; callers get
// back either the raw return data or an error classified as core.ErrRPC.
type ChainCaller interface {
	// Call executes eth_call with the given calldata against the contract
	// on the given chain and returns the raw return bytes.
	Call(ctx context.Context, chainID uint64, contract string, calldata []byte) ([]byte, error)
}
