package dialplan

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// Match is the outcome of an evaluation: the winning rule, its decoded
// actions with capture-group references expanded, and the groups themselves.
// Fallback is set when no rule matched and the context default applied.
type Match struct {
	Rule     *models.DialplanRule
	Actions  []Action
	Groups   []string
	Fallback bool
}

// PatternResult reports a single pattern test.
type PatternResult struct {
	Match  bool     `json:"match"`
	Groups []string `json:"groups,omitempty"`
}

// Evaluator resolves a dialed value against a tenant's rules for a context.
type Evaluator struct {
	rules  database.DialplanRuleRepository
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator backed by the given rule store.
func NewEvaluator(rules database.DialplanRuleRepository, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		rules:  rules,
		logger: logger.With("component", "dialplan"),
	}
}

// Evaluate fetches the enabled rules for (tenantID, context) and tests each
// pattern against dialed in ascending priority order. The first match wins.
// When nothing matches, the context's terminal fallback is returned: hang up
// with NO_ROUTE_DESTINATION.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID, ruleContext, dialed string) (*Match, error) {
	rules, err := e.rules.ListEnabledByContext(ctx, tenantID, ruleContext)
	if err != nil {
		return nil, fmt.Errorf("loading rules for %s: %w", ruleContext, err)
	}

	for i := range rules {
		rule := &rules[i]
		re, err := regexp.Compile(rule.MatchPattern)
		if err != nil {
			// Patterns are validated at write time; a bad one here means
			// the row was written out of band. Skip it.
			e.logger.Warn("skipping rule with invalid pattern",
				"rule_id", rule.ID, "pattern", rule.MatchPattern, "error", err)
			continue
		}
		m := re.FindStringSubmatch(dialed)
		if m == nil {
			continue
		}

		actions, err := ParseActions(rule.Actions)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		groups := m[1:]
		for i := range actions {
			actions[i].Data = ExpandGroups(actions[i].Data, groups)
			actions[i].Target = ExpandGroups(actions[i].Target, groups)
		}
		return &Match{Rule: rule, Actions: actions, Groups: groups}, nil
	}

	return &Match{
		Actions:  []Action{{Type: ActionHangup, Cause: "NO_ROUTE_DESTINATION"}},
		Fallback: true,
	}, nil
}

// ValidatePattern rejects patterns that do not compile. Called on every
// rule create and update so evaluation never sees a broken regex.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return voxerr.Validationf("match_pattern", "pattern must not be empty")
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return voxerr.Validationf("match_pattern", "invalid pattern: %v", err)
	}
	return nil
}

// TestPattern runs a pattern against a value without touching any stored
// rule. Invalid patterns return a validation error.
func TestPattern(pattern, value string) (*PatternResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, voxerr.Validationf("match_pattern", "invalid pattern: %v", err)
	}
	m := re.FindStringSubmatch(value)
	if m == nil {
		return &PatternResult{Match: false}, nil
	}
	return &PatternResult{Match: true, Groups: m[1:]}, nil
}
