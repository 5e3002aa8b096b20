package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/cerberus/core"
)

type fakeCaller struct {
	data  []byte
	err   error
	calls int
	block func(ctx context.Context) // optional; simulates a hung endpoint
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	if f.block != nil {
		f.block(ctx)
	}
	return f.data, f.err
}

func newTestClient(t *testing.T, callers map[string]*fakeCaller, endpoints map[uint64]Endpoints) *Client {
	t.Helper()
	client := NewClient(endpoints, time.Second, hclog.NewNullLogger())
	client.dial = func(ctx context.Context, url string) (contractCaller, error) {
		caller, ok := callers[url]
		if !ok {
			return nil, errors.New("unknown endpoint")
		}
		return caller, nil
	}
	return client
}

func TestCallPrimarySuccess(t *testing.T) {
	primary := &fakeCaller{data: []byte{0x01}}
	fallback := &fakeCaller{data: []byte{0x02}}
	client := newTestClient(t,
		map[string]*fakeCaller{"primary": primary, "fallback": fallback},
		map[uint64]Endpoints{1: {Primary: "primary", Fallback: "fallback"}})

	data, err := client.Call(context.Background(), 1, "0x1111111111111111111111111111111111111111", []byte{0xaa})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, data)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls, "fallback must not be touched when primary answers")
}

func TestCallFallsBackOnce(t *testing.T) {
	primary := &fakeCaller{err: errors.New("connection refused")}
	fallback := &fakeCaller{data: []byte{0x02}}
	client := newTestClient(t,
		map[string]*fakeCaller{"primary": primary, "fallback": fallback},
		map[uint64]Endpoints{1: {Primary: "primary", Fallback: "fallback"}})

	data, err := client.Call(context.Background(), 1, "0x1111111111111111111111111111111111111111", []byte{0xaa})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, data)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestCallBothEndpointsFail(t *testing.T) {
	primary := &fakeCaller{err: errors.New("connection refused")}
	fallback := &fakeCaller{err: errors.New("timeout")}
	client := newTestClient(t,
		map[string]*fakeCaller{"primary": primary, "fallback": fallback},
		map[uint64]Endpoints{1: {Primary: "primary", Fallback: "fallback"}})

	_, err := client.Call(context.Background(), 1, "0x1111111111111111111111111111111111111111", []byte{0xaa})
	assert.ErrorIs(t, err, core.ErrRPC)
	assert.Equal(t, 1, primary.calls, "no retries beyond the single fallback attempt")
	assert.Equal(t, 1, fallback.calls)
}

func TestCallNoFallbackConfigured(t *testing.T) {
	primary := &fakeCaller{err: errors.New("connection refused")}
	client := newTestClient(t,
		map[string]*fakeCaller{"primary": primary},
		map[uint64]Endpoints{1: {Primary: "primary"}})

	_, err := client.Call(context.Background(), 1, "0x1111111111111111111111111111111111111111", []byte{0xaa})
	assert.ErrorIs(t, err, core.ErrRPC)
	assert.Equal(t, 1, primary.calls)
}

func TestCallUnknownChain(t *testing.T) {
	client := newTestClient(t, nil, map[uint64]Endpoints{1: {Primary: "primary"}})

	_, err := client.Call(context.Background(), 999, "0x1111111111111111111111111111111111111111", []byte{0xaa})
	assert.ErrorIs(t, err, core.ErrRPC)
}

func TestCallTimeoutBounded(t *testing.T) {
	hung := &fakeCaller{block: func(ctx context.Context) { <-ctx.Done() }, err: context.DeadlineExceeded}
	client := newTestClient(t,
		map[string]*fakeCaller{"primary": hung},
		map[uint64]Endpoints{1: {Primary: "primary"}})
	client.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := client.Call(context.Background(), 1, "0x1111111111111111111111111111111111111111", []byte{0xaa})
	assert.ErrorIs(t, err, core.ErrRPC)
	assert.Less(t, time.Since(start), time.Second, "a hung endpoint must not block past the hard timeout")
}

func TestCallerReused(t *testing.T) {
	primary := &fakeCaller{data: []byte{0x01}}
	dials := 0
	client := NewClient(map[uint64]Endpoints{1: {Primary: "primary"}}, time.Second, hclog.NewNullLogger())
	client.dial = func(ctx context.Context, url string) (contractCaller, error) {
		dials++
		return primary, nil
	}

	for i := 0; i < 3; i++ {
		_, err := client.Call(context.Background(), 1, "0x1111111111111111111111111111111111111111", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, dials, "the connection is dialed once and reused")
}
