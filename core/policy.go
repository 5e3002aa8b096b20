package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CombinationMode determines how the outcomes of a policy's rules combine
type CombinationMode string

const (
	// CombineAll grants only when every rule allows
	CombineAll CombinationMode = "ALL"

	// CombineAny grants when at least one rule allows
	CombineAny CombinationMode = "ANY"
)

// RuleType tags the closed set of rule variants
type RuleType string

const (
	RuleERC20MinBalance RuleType = "erc20_min_balance"
	RuleERC721Owner     RuleType = "erc721_owner"
	RuleAllowlist       RuleType = "allowlist"
)

// Rule is one predicate within a policy. It is a flat tagged variant: the
// fields that apply depend on Type, everything else stays zero.
type Rule struct {
	Type RuleType

	// ERC20MinBalance and ERC721Owner
	ChainID      uint64
	TokenAddress common.Address

	// ERC20MinBalance: threshold in the token's base units
	MinBalance *big.Int

	// ERC721Owner: specific token to check ownerOf against; nil means
	// "owns any token of the collection" (balanceOf > 0)
	TokenID *big.Int

	// Allowlist
	AllowlistID string
}

// Validate checks that the rule carries the parameters its variant requires.
func (r Rule) Validate() error {
	switch r.Type {
	case RuleERC20MinBalance:
		if r.TokenAddress == (common.Address{}) {
			return fmt.Errorf("erc20 rule: token address is required")
		}
		if r.MinBalance == nil || r.MinBalance.Sign() < 0 {
			return fmt.Errorf("erc20 rule: min balance must be a non-negative integer")
		}
	case RuleERC721Owner:
		if r.TokenAddress == (common.Address{}) {
			return fmt.Errorf("erc721 rule: token address is required")
		}
	case RuleAllowlist:
		if r.AllowlistID == "" {
			return fmt.Errorf("allowlist rule: allowlist id is required")
		}
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}
	return nil
}

// Policy is a named, ordered rule list with a combination mode. Policies are
// read-only once loaded; reloads swap the whole table.
type Policy struct {
	Name        string
	Combination CombinationMode
	Rules       []Rule
}

// Validate checks the policy and all of its rules.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if p.Combination != CombineAll && p.Combination != CombineAny {
		return fmt.Errorf("policy %q: combination must be ALL or ANY, got %q", p.Name, p.Combination)
	}
	if len(p.Rules) == 0 {
		return fmt.Errorf("policy %q: at least one rule is required", p.Name)
	}
	for i, rule := range p.Rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("policy %q rule %d: %w", p.Name, i, err)
		}
	}
	return nil
}
