package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"

	"github.com/layer-3/cerberus/core"
	"github.com/layer-3/cerberus/internal/metrics"
)

// DefaultCallTimeout bounds every single RPC attempt
const DefaultCallTimeout = 5 * time.Second

// Endpoints holds the RPC URLs for one chain
type Endpoints struct {
	Primary  string
	Fallback string // optional
}

// contractCaller is the slice of the ethclient surface the adapter needs;
// tests substitute fakes.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type dialFunc func(ctx context.Context, url string) (contractCaller, error)

func ethDial(ctx context.Context, url string) (contractCaller, error) {
	return ethclient.DialContext(ctx, url)
}

type endpoint struct {
	url string

	mu     sync.Mutex
	caller contractCaller
}

// Client performs read-only contract calls with a bounded retry state
// machine: one attempt against the primary endpoint, then at most one attempt
// against the fallback if configured. Every attempt carries a hard timeout
// and every failure is classified core.ErrRPC.
type Client struct {
	chains  map[uint64]*chainEndpoints
	timeout time.Duration
	dial    dialFunc
	logger  hclog.Logger
}

type chainEndpoints struct {
	primary  *endpoint
	fallback *endpoint // nil when not configured
}

// NewClient creates a client for the given per-chain endpoint configuration.
func NewClient(endpoints map[uint64]Endpoints, timeout time.Duration, logger hclog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	chains := make(map[uint64]*chainEndpoints, len(endpoints))
	for chainID, eps := range endpoints {
		ce := &chainEndpoints{primary: &endpoint{url: eps.Primary}}
		if eps.Fallback != "" {
			ce.fallback = &endpoint{url: eps.Fallback}
		}
		chains[chainID] = ce
	}
	return &Client{
		chains:  chains,
		timeout: timeout,
		dial:    ethDial,
		logger:  logger.Named("chain"),
	}
}

// Call executes eth_call against the contract on the given chain.
func (c *Client) Call(ctx context.Context, chainID uint64, contract string, calldata []byte) ([]byte, error) {
	eps, ok := c.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: no endpoints configured for chain %d", core.ErrRPC, chainID)
	}

	to := common.HexToAddress(contract)
	msg := ethereum.CallMsg{To: &to, Data: calldata}

	data, primaryErr := c.attempt(ctx, eps.primary, "primary", msg)
	if primaryErr == nil {
		return data, nil
	}
	if eps.fallback == nil {
		return nil, fmt.Errorf("%w: chain %d primary failed: %v", core.ErrRPC, chainID, primaryErr)
	}

	c.logger.Warn("primary endpoint failed, trying fallback", "chain_id", chainID, "error", primaryErr)
	data, fallbackErr := c.attempt(ctx, eps.fallback, "fallback", msg)
	if fallbackErr == nil {
		return data, nil
	}
	return nil, fmt.Errorf("%w: chain %d primary failed: %v; fallback failed: %v",
		core.ErrRPC, chainID, primaryErr, fallbackErr)
}

func (c *Client) attempt(ctx context.Context, ep *endpoint, role string, msg ethereum.CallMsg) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	caller, err := c.callerFor(callCtx, ep)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(role, "error").Inc()
		return nil, err
	}

	data, err := caller.CallContract(callCtx, msg, nil)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(role, "error").Inc()
		return nil, err
	}
	metrics.RPCCalls.WithLabelValues(role, "ok").Inc()
	return data, nil
}

// callerFor dials lazily and reuses the connection for later calls.
func (c *Client) callerFor(ctx context.Context, ep *endpoint) (contractCaller, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.caller != nil {
		return ep.caller, nil
	}
	caller, err := c.dial(ctx, ep.url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep.url, err)
	}
	ep.caller = caller
	return caller, nil
}
