package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/cerberus/core"
)

// mockChain serves canned eth_call responses keyed by contract address.
type mockChain struct {
	mu        sync.Mutex
	responses map[string][]byte
	err       error
	calls     int
}

func (m *mockChain) Call(ctx context.Context, chainID uint64, contract string, calldata []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.responses[contract]
	if !ok {
		return nil, fmt.Errorf("%w: no response configured", core.ErrRPC)
	}
	return data, nil
}

func (m *mockChain) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockAllowlist struct {
	members map[string]map[string]struct{}
}

func (m *mockAllowlist) IsMember(ctx context.Context, allowlistID, address string) (bool, error) {
	list, ok := m.members[allowlistID]
	if !ok {
		return false, nil
	}
	_, member := list[address]
	return member, nil
}

func uint256Bytes(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

func addressBytes(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func testDeps(chain *mockChain, allowlists *mockAllowlist) EvaluatorDeps {
	return EvaluatorDeps{
		Chain:      chain,
		Cache:      NewResultCache(),
		Allowlists: allowlists,
		Logger:     hclog.NewNullLogger(),
	}
}

func TestERC20MinBalanceBoundary(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	subject := common.HexToAddress("0x2222222222222222222222222222222222222222")
	min := big.NewInt(1000)

	tests := []struct {
		name    string
		balance *big.Int
		allowed bool
	}{
		{"below threshold", big.NewInt(999), false},
		{"exactly threshold", big.NewInt(1000), true},
		{"above threshold", big.NewInt(1001), true},
		{"zero", big.NewInt(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &mockChain{responses: map[string][]byte{
				token.Hex(): uint256Bytes(tt.balance),
			}}
			ev, err := NewEvaluator(core.Rule{
				Type:         core.RuleERC20MinBalance,
				ChainID:      1,
				TokenAddress: token,
				MinBalance:   min,
			}, testDeps(chain, nil))
			require.NoError(t, err)

			allowed, err := ev.Evaluate(context.Background(), subject)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestERC20LargeBalancePrecision(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	subject := common.HexToAddress("0x2222222222222222222222222222222222222222")

	// 10^24 base units overflows float64 precision; the comparison must
	// still be exact.
	min, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	justBelow := new(big.Int).Sub(min, big.NewInt(1))

	chain := &mockChain{responses: map[string][]byte{token.Hex(): uint256Bytes(justBelow)}}
	ev, err := NewEvaluator(core.Rule{
		Type:         core.RuleERC20MinBalance,
		ChainID:      1,
		TokenAddress: token,
		MinBalance:   min,
	}, testDeps(chain, nil))
	require.NoError(t, err)

	allowed, err := ev.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestERC20BalanceCached(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	subject := common.HexToAddress("0x2222222222222222222222222222222222222222")

	chain := &mockChain{responses: map[string][]byte{token.Hex(): uint256Bytes(big.NewInt(5))}}
	deps := testDeps(chain, nil)

	ev, err := NewEvaluator(core.Rule{
		Type:         core.RuleERC20MinBalance,
		ChainID:      1,
		TokenAddress: token,
		MinBalance:   big.NewInt(1),
	}, deps)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		allowed, err := ev.Evaluate(context.Background(), subject)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.Equal(t, 1, chain.callCount(), "repeated evaluations must hit the cache")
}

func TestERC721OwnerOfSpecificToken(t *testing.T) {
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	stranger := common.HexToAddress("0x5555555555555555555555555555555555555555")

	chain := &mockChain{responses: map[string][]byte{token.Hex(): addressBytes(owner)}}
	ev, err := NewEvaluator(core.Rule{
		Type:         core.RuleERC721Owner,
		ChainID:      1,
		TokenAddress: token,
		TokenID:      big.NewInt(42),
	}, testDeps(chain, nil))
	require.NoError(t, err)

	allowed, err := ev.Evaluate(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = ev.Evaluate(context.Background(), stranger)
	require.NoError(t, err)
	assert.False(t, allowed)

	// ownerOf is subject-independent, so both evaluations share one call.
	assert.Equal(t, 1, chain.callCount())
}

func TestERC721AnyOfCollection(t *testing.T) {
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	holder := common.HexToAddress("0x4444444444444444444444444444444444444444")

	chain := &mockChain{responses: map[string][]byte{token.Hex(): uint256Bytes(big.NewInt(2))}}
	ev, err := NewEvaluator(core.Rule{
		Type:         core.RuleERC721Owner,
		ChainID:      1,
		TokenAddress: token,
	}, testDeps(chain, nil))
	require.NoError(t, err)

	allowed, err := ev.Evaluate(context.Background(), holder)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAllowlistEvaluator(t *testing.T) {
	member := common.HexToAddress("0x6666666666666666666666666666666666666666")
	stranger := common.HexToAddress("0x7777777777777777777777777777777777777777")

	allowlists := &mockAllowlist{members: map[string]map[string]struct{}{
		"vip": {"0x6666666666666666666666666666666666666666": {}},
	}}
	ev, err := NewEvaluator(core.Rule{
		Type:        core.RuleAllowlist,
		AllowlistID: "vip",
	}, testDeps(nil, allowlists))
	require.NoError(t, err)

	allowed, err := ev.Evaluate(context.Background(), member)
	require.NoError(t, err)
	assert.True(t, allowed, "membership lookup is lowercase-normalized")

	allowed, err = ev.Evaluate(context.Background(), stranger)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluatorRPCFailure(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	subject := common.HexToAddress("0x2222222222222222222222222222222222222222")

	chain := &mockChain{err: fmt.Errorf("%w: both endpoints failed", core.ErrRPC)}
	ev, err := NewEvaluator(core.Rule{
		Type:         core.RuleERC20MinBalance,
		ChainID:      1,
		TokenAddress: token,
		MinBalance:   big.NewInt(1),
	}, testDeps(chain, nil))
	require.NoError(t, err)

	allowed, err := ev.Evaluate(context.Background(), subject)
	assert.ErrorIs(t, err, core.ErrRPC)
	assert.False(t, allowed)
}

func TestNewEvaluatorRejectsInvalidRule(t *testing.T) {
	_, err := NewEvaluator(core.Rule{Type: "bogus"}, testDeps(nil, nil))
	assert.Error(t, err)

	_, err = NewEvaluator(core.Rule{Type: core.RuleAllowlist}, testDeps(nil, nil))
	assert.Error(t, err)
}
