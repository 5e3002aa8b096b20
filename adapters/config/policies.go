package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/layer-3/cerberus/core"
)

// policyDocument is the on-disk shape of the declarative policy source.
type policyDocument struct {
	Policies []policyJSON `json:"policies"`
}

type policyJSON struct {
	Name        string     `json:"name"`
	Combination string     `json:"combination"`
	Rules       []ruleJSON `json:"rules"`
}

type ruleJSON struct {
	Type         string `json:"type"`
	ChainID      uint64 `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	// MinBalance is a decimal string in human units; Decimals shifts it to
	// base units (18 for typical ERC20 tokens, 0 for raw base-unit values).
	MinBalance  string `json:"minBalance"`
	Decimals    int32  `json:"decimals"`
	TokenID     string `json:"tokenId"`
	AllowlistID string `json:"allowlistId"`
}

// LoadPolicies reads and converts the policy JSON document.
func LoadPolicies(path string) ([]core.Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}
	return ParsePolicies(raw)
}

// ParsePolicies converts a policy JSON document into validated core policies.
func ParsePolicies(raw []byte) ([]core.Policy, error) {
	var doc policyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse policy document: %w", err)
	}

	policies := make([]core.Policy, 0, len(doc.Policies))
	for _, pj := range doc.Policies {
		policy := core.Policy{
			Name:        pj.Name,
			Combination: core.CombinationMode(pj.Combination),
			Rules:       make([]core.Rule, 0, len(pj.Rules)),
		}
		for i, rj := range pj.Rules {
			rule, err := convertRule(rj)
			if err != nil {
				return nil, fmt.Errorf("policy %q rule %d: %w", pj.Name, i, err)
			}
			policy.Rules = append(policy.Rules, rule)
		}
		if err := policy.Validate(); err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

func convertRule(rj ruleJSON) (core.Rule, error) {
	rule := core.Rule{
		Type:        core.RuleType(rj.Type),
		ChainID:     rj.ChainID,
		AllowlistID: rj.AllowlistID,
	}

	if rj.TokenAddress != "" {
		if !common.IsHexAddress(rj.TokenAddress) {
			return core.Rule{}, fmt.Errorf("invalid token address %q", rj.TokenAddress)
		}
		rule.TokenAddress = common.HexToAddress(rj.TokenAddress)
	}

	if rj.MinBalance != "" {
		min, err := baseUnits(rj.MinBalance, rj.Decimals)
		if err != nil {
			return core.Rule{}, err
		}
		rule.MinBalance = min
	}

	if rj.TokenID != "" {
		tokenID, ok := new(big.Int).SetString(rj.TokenID, 10)
		if !ok {
			return core.Rule{}, fmt.Errorf("invalid token id %q", rj.TokenID)
		}
		rule.TokenID = tokenID
	}

	return rule, nil
}

// baseUnits shifts a human-unit decimal amount into an exact base-unit
// integer. "1.5" with 18 decimals becomes 1500000000000000000; amounts that
// do not land on an integer are rejected rather than rounded.
func baseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	if shifted.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", amount)
	}
	return shifted.BigInt(), nil
}
