package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-hclog"

	"github.com/layer-3/cerberus/core"
	"github.com/layer-3/cerberus/internal/metrics"
)

type compiledPolicy struct {
	policy     core.Policy
	evaluators []Evaluator
}

// PolicyManager holds the named policy table and dispatches rule evaluation.
// The table is an immutable snapshot behind an atomic pointer; Reload swaps
// the whole table so in-flight evaluations never observe a partial edit.
type PolicyManager struct {
	table  atomic.Pointer[map[string]*compiledPolicy]
	deps   EvaluatorDeps
	logger hclog.Logger
}

// NewPolicyManager creates a manager with an empty policy table.
func NewPolicyManager(deps EvaluatorDeps, logger hclog.Logger) *PolicyManager {
	m := &PolicyManager{deps: deps, logger: logger.Named("policy")}
	empty := make(map[string]*compiledPolicy)
	m.table.Store(&empty)
	return m
}

// Reload validates and compiles the given policies and atomically replaces
// the active table. On any validation error the previous table stays active.
func (m *PolicyManager) Reload(policies []core.Policy) error {
	next := make(map[string]*compiledPolicy, len(policies))
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := next[p.Name]; dup {
			return fmt.Errorf("duplicate policy %q", p.Name)
		}
		evaluators := make([]Evaluator, len(p.Rules))
		for i, rule := range p.Rules {
			ev, err := NewEvaluator(rule, m.deps)
			if err != nil {
				return fmt.Errorf("policy %q rule %d: %w", p.Name, i, err)
			}
			evaluators[i] = ev
		}
		next[p.Name] = &compiledPolicy{policy: p, evaluators: evaluators}
	}
	m.table.Store(&next)
	m.logger.Info("policy table loaded", "policies", len(next))
	return nil
}

// Policies returns the names in the active table.
func (m *PolicyManager) Policies() []string {
	table := *m.table.Load()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	return names
}

// Evaluate runs every rule of the named policy concurrently and combines the
// outcomes per the policy's combination mode. A rule whose evaluation fails
// resolves to allowed=false (fail-closed) and is logged; the evaluation as a
// whole errors only when the policy is unknown or every single rule failed
// to evaluate.
func (m *PolicyManager) Evaluate(ctx context.Context, policyName string, subject common.Address) (bool, error) {
	table := *m.table.Load()
	compiled, ok := table[policyName]
	if !ok {
		return false, fmt.Errorf("%w: %q", core.ErrPolicyNotFound, policyName)
	}

	outcomes := make([]ruleOutcome, len(compiled.evaluators))

	var wg sync.WaitGroup
	for i, ev := range compiled.evaluators {
		wg.Add(1)
		go func(i int, ev Evaluator) {
			defer wg.Done()
			allowed, err := ev.Evaluate(ctx, subject)
			if err != nil {
				// Fail closed: an unanswerable rule denies.
				m.logger.Warn("rule evaluation failed",
					"policy", policyName, "rule", i, "subject", subject.Hex(), "error", err)
				outcomes[i] = ruleOutcome{allowed: false, err: err}
				return
			}
			outcomes[i] = ruleOutcome{allowed: allowed}
		}(i, ev)
	}
	wg.Wait()

	failures := 0
	for _, o := range outcomes {
		if o.err != nil {
			failures++
		}
	}
	if failures == len(outcomes) {
		metrics.PolicyDecisions.WithLabelValues(policyName, "error").Inc()
		return false, fmt.Errorf("%w: all %d rules of policy %q failed to evaluate", core.ErrRPC, failures, policyName)
	}

	granted := m.combine(compiled.policy.Combination, outcomes)

	decision := "denied"
	if granted {
		decision = "granted"
	}
	metrics.PolicyDecisions.WithLabelValues(policyName, decision).Inc()
	return granted, nil
}

type ruleOutcome struct {
	allowed bool
	err     error
}

func (m *PolicyManager) combine(mode core.CombinationMode, outcomes []ruleOutcome) bool {
	switch mode {
	case core.CombineAny:
		for _, o := range outcomes {
			if o.err == nil && o.allowed {
				return true
			}
		}
		return false
	default: // CombineAll
		for _, o := range outcomes {
			if o.err != nil || !o.allowed {
				return false
			}
		}
		return true
	}
}
