package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/go-hclog"

	"github.com/layer-3/cerberus/core"
	"github.com/layer-3/cerberus/ports"
)

// Evaluator is the single capability shared by all rule variants.
type Evaluator interface {
	// Evaluate reports whether the subject address satisfies the rule.
	// Errors from blockchain-backed evaluators wrap core.ErrRPC.
	Evaluate(ctx context.Context, subject common.Address) (bool, error)
}

var (
	selectorBalanceOf = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	selectorOwnerOf   = crypto.Keccak256([]byte("ownerOf(uint256)"))[:4]
)

func packAddressArg(selector []byte, addr common.Address) []byte {
	return append(append([]byte{}, selector...), common.LeftPadBytes(addr.Bytes(), 32)...)
}

func packUint256Arg(selector []byte, n *big.Int) []byte {
	return append(append([]byte{}, selector...), common.LeftPadBytes(n.Bytes(), 32)...)
}

// EvaluatorDeps carries the collaborators rule evaluators share.
type EvaluatorDeps struct {
	Chain      ports.ChainCaller
	Cache      *ResultCache
	Allowlists ports.AllowlistRepository
	CacheTTL   time.Duration
	Logger     hclog.Logger
}

// NewEvaluator builds the evaluator for a rule variant.
func NewEvaluator(rule core.Rule, deps EvaluatorDeps) (Evaluator, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	switch rule.Type {
	case core.RuleERC20MinBalance:
		return &erc20MinBalanceEvaluator{rule: rule, deps: deps}, nil
	case core.RuleERC721Owner:
		return &erc721OwnerEvaluator{rule: rule, deps: deps}, nil
	case core.RuleAllowlist:
		return &allowlistEvaluator{rule: rule, deps: deps}, nil
	default:
		return nil, fmt.Errorf("unknown rule type %q", rule.Type)
	}
}

// erc20MinBalanceEvaluator checks balanceOf(subject) >= MinBalance. The
// balance itself is cached, not the verdict, so rules with different
// thresholds against the same token share one RPC call.
type erc20MinBalanceEvaluator struct {
	rule core.Rule
	deps EvaluatorDeps
}

func (e *erc20MinBalanceEvaluator) Evaluate(ctx context.Context, subject common.Address) (bool, error) {
	key := CacheKey(string(core.RuleERC20MinBalance), e.rule.ChainID, e.rule.TokenAddress.Hex(), subject.Hex())
	cached, err := e.deps.Cache.GetOrCompute(ctx, key, e.deps.CacheTTL, func(ctx context.Context) (any, error) {
		data, err := e.deps.Chain.Call(ctx, e.rule.ChainID, e.rule.TokenAddress.Hex(), packAddressArg(selectorBalanceOf, subject))
		if err != nil {
			return nil, err
		}
		return new(big.Int).SetBytes(data), nil
	})
	if err != nil {
		return false, err
	}

	balance, ok := cached.(*big.Int)
	if !ok {
		return false, fmt.Errorf("%w: unexpected cached balance type", core.ErrRPC)
	}
	return balance.Cmp(e.rule.MinBalance) >= 0, nil
}

// erc721OwnerEvaluator checks ownerOf(tokenID) == subject when a token is
// pinned, otherwise balanceOf(subject) > 0 for "owns any of this collection".
type erc721OwnerEvaluator struct {
	rule core.Rule
	deps EvaluatorDeps
}

func (e *erc721OwnerEvaluator) Evaluate(ctx context.Context, subject common.Address) (bool, error) {
	if e.rule.TokenID == nil {
		key := CacheKey(string(core.RuleERC721Owner), e.rule.ChainID, e.rule.TokenAddress.Hex(), subject.Hex())
		cached, err := e.deps.Cache.GetOrCompute(ctx, key, e.deps.CacheTTL, func(ctx context.Context) (any, error) {
			data, err := e.deps.Chain.Call(ctx, e.rule.ChainID, e.rule.TokenAddress.Hex(), packAddressArg(selectorBalanceOf, subject))
			if err != nil {
				return nil, err
			}
			return new(big.Int).SetBytes(data), nil
		})
		if err != nil {
			return false, err
		}
		balance, ok := cached.(*big.Int)
		if !ok {
			return false, fmt.Errorf("%w: unexpected cached balance type", core.ErrRPC)
		}
		return balance.Sign() > 0, nil
	}

	// The owner of a specific token is subject-independent, so subjects
	// querying the same token share the cache entry.
	key := CacheKey(string(core.RuleERC721Owner), e.rule.ChainID, e.rule.TokenAddress.Hex(), "", e.rule.TokenID.String())
	cached, err := e.deps.Cache.GetOrCompute(ctx, key, e.deps.CacheTTL, func(ctx context.Context) (any, error) {
		data, err := e.deps.Chain.Call(ctx, e.rule.ChainID, e.rule.TokenAddress.Hex(), packUint256Arg(selectorOwnerOf, e.rule.TokenID))
		if err != nil {
			return nil, err
		}
		if len(data) < 32 {
			return nil, fmt.Errorf("%w: short ownerOf return data", core.ErrRPC)
		}
		return common.BytesToAddress(data[12:32]), nil
	})
	if err != nil {
		return false, err
	}

	owner, ok := cached.(common.Address)
	if !ok {
		return false, fmt.Errorf("%w: unexpected cached owner type", core.ErrRPC)
	}
	return owner == subject, nil
}

// allowlistEvaluator checks membership in a named allowlist. No blockchain
// call and no extra caching; the repository is authoritative.
type allowlistEvaluator struct {
	rule core.Rule
	deps EvaluatorDeps
}

func (e *allowlistEvaluator) Evaluate(ctx context.Context, subject common.Address) (bool, error) {
	return e.deps.Allowlists.IsMember(ctx, e.rule.AllowlistID, strings.ToLower(subject.Hex()))
}
