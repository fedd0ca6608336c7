package dialplan

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// fakeRuleRepo is an in-memory DialplanRuleRepository.
type fakeRuleRepo struct {
	rules []models.DialplanRule
}

func (f *fakeRuleRepo) Create(_ context.Context, rule *models.DialplanRule) error {
	f.rules = append(f.rules, *rule)
	return nil
}

func (f *fakeRuleRepo) GetByID(_ context.Context, id string) (*models.DialplanRule, error) {
	for i := range f.rules {
		if f.rules[i].ID == id {
			return &f.rules[i], nil
		}
	}
	return nil, voxerr.ErrNotFound
}

func (f *fakeRuleRepo) ListEnabledByContext(_ context.Context, tenantID, ruleContext string) ([]models.DialplanRule, error) {
	var out []models.DialplanRule
	for _, r := range f.rules {
		if r.TenantID == tenantID && r.Context == ruleContext && r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (f *fakeRuleRepo) ListByTenant(_ context.Context, tenantID string) ([]models.DialplanRule, error) {
	var out []models.DialplanRule
	for _, r := range f.rules {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) Update(_ context.Context, rule *models.DialplanRule) error {
	for i := range f.rules {
		if f.rules[i].ID == rule.ID {
			f.rules[i] = *rule
			return nil
		}
	}
	return voxerr.ErrNotFound
}

func (f *fakeRuleRepo) Delete(_ context.Context, id string) error {
	for i := range f.rules {
		if f.rules[i].ID == id {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return voxerr.ErrNotFound
}

func testEvaluator(rules ...models.DialplanRule) *Evaluator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEvaluator(&fakeRuleRepo{rules: rules}, logger)
}

func mustEncode(t *testing.T, actions []Action) string {
	t.Helper()
	raw, err := EncodeActions(actions)
	if err != nil {
		t.Fatalf("EncodeActions() error: %v", err)
	}
	return raw
}

func TestEvaluateLowestPriorityWins(t *testing.T) {
	e := testEvaluator(
		models.DialplanRule{
			ID: "r2", TenantID: "t1", Context: "acme-internal", Priority: 100,
			MatchPattern: `^\d{4}$`, Enabled: true,
			Actions: mustEncode(t, []Action{{Type: ActionBridge, Target: "generic"}}),
		},
		models.DialplanRule{
			ID: "r1", TenantID: "t1", Context: "acme-internal", Priority: 10,
			MatchPattern: `^1000$`, Enabled: true,
			Actions: mustEncode(t, []Action{{Type: ActionBridge, Target: "specific"}}),
		},
	)

	m, err := e.Evaluate(context.Background(), "t1", "acme-internal", "1000")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if m.Fallback {
		t.Fatal("expected a rule match, got fallback")
	}
	if m.Rule.ID != "r1" {
		t.Errorf("matched rule %s, want r1", m.Rule.ID)
	}

	// A value only r2 matches falls through to it.
	m, err = e.Evaluate(context.Background(), "t1", "acme-internal", "1234")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if m.Rule.ID != "r2" {
		t.Errorf("matched rule %s, want r2", m.Rule.ID)
	}
}

func TestEvaluateCaptureGroupExpansion(t *testing.T) {
	e := testEvaluator(models.DialplanRule{
		ID: "r1", TenantID: "t1", Context: "acme-internal", Priority: 100,
		MatchPattern: `^(1\d{3})$`, Enabled: true,
		Actions: mustEncode(t, []Action{
			{Type: ActionSet, Data: "hangup_after_bridge=true"},
			{Type: ActionBridge, Target: "user/$1@${domain_name}"},
		}),
	})

	m, err := e.Evaluate(context.Background(), "t1", "acme-internal", "1001")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if len(m.Groups) != 1 || m.Groups[0] != "1001" {
		t.Errorf("groups = %v, want [1001]", m.Groups)
	}
	if m.Actions[1].Target != "user/1001@${domain_name}" {
		t.Errorf("bridge target = %q", m.Actions[1].Target)
	}
}

func TestEvaluateNoMatchFallsBack(t *testing.T) {
	e := testEvaluator(models.DialplanRule{
		ID: "r1", TenantID: "t1", Context: "acme-internal", Priority: 100,
		MatchPattern: `^(1\d{3})$`, Enabled: true,
		Actions: mustEncode(t, []Action{{Type: ActionBridge, Target: "user/$1"}}),
	})

	m, err := e.Evaluate(context.Background(), "t1", "acme-internal", "9999999")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !m.Fallback {
		t.Fatal("expected fallback")
	}
	if len(m.Actions) != 1 || m.Actions[0].Type != ActionHangup || m.Actions[0].Cause != "NO_ROUTE_DESTINATION" {
		t.Errorf("fallback actions = %+v", m.Actions)
	}
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	e := testEvaluator(models.DialplanRule{
		ID: "r1", TenantID: "t1", Context: "acme-internal", Priority: 1,
		MatchPattern: `^.*$`, Enabled: false,
		Actions: mustEncode(t, []Action{{Type: ActionAnswer}}),
	})

	m, err := e.Evaluate(context.Background(), "t1", "acme-internal", "1000")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !m.Fallback {
		t.Error("disabled rule should not match")
	}
}

func TestTestPattern(t *testing.T) {
	res, err := TestPattern(`^(1\d{3})$`, "1001")
	if err != nil {
		t.Fatalf("TestPattern() error: %v", err)
	}
	if !res.Match || len(res.Groups) != 1 || res.Groups[0] != "1001" {
		t.Errorf("TestPattern() = %+v, want match with group 1001", res)
	}

	res, err = TestPattern(`^3[0-9]{9}$`, "0591234567")
	if err != nil {
		t.Fatalf("TestPattern() error: %v", err)
	}
	if res.Match {
		t.Error("landline number should not match mobile pattern")
	}

	if _, err := TestPattern(`^(unclosed`, "x"); !voxerr.IsValidation(err) {
		t.Errorf("invalid pattern error = %v, want validation error", err)
	}
}

func TestValidatePattern(t *testing.T) {
	if err := ValidatePattern(`^\d+$`); err != nil {
		t.Errorf("valid pattern rejected: %v", err)
	}
	if err := ValidatePattern(`^(unclosed`); !voxerr.IsValidation(err) {
		t.Errorf("invalid pattern error = %v, want validation error", err)
	}
	if err := ValidatePattern(""); !voxerr.IsValidation(err) {
		t.Errorf("empty pattern error = %v, want validation error", err)
	}
}

func TestActionValidation(t *testing.T) {
	cases := []struct {
		name   string
		action Action
		ok     bool
	}{
		{"bridge with target", Action{Type: ActionBridge, Target: "user/1001"}, true},
		{"bridge without target", Action{Type: ActionBridge}, false},
		{"set without data", Action{Type: ActionSet}, false},
		{"bare answer", Action{Type: ActionAnswer}, true},
		{"hangup with cause", Action{Type: ActionHangup, Cause: "NO_ROUTE_DESTINATION"}, true},
		{"unknown type", Action{Type: "explode"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.action.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate() error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}

func TestParseActionsRejectsEmptyList(t *testing.T) {
	if _, err := ParseActions(`[]`); !voxerr.IsValidation(err) {
		t.Errorf("empty list error = %v, want validation error", err)
	}
	if _, err := ParseActions(`not json`); !voxerr.IsValidation(err) {
		t.Errorf("bad json error = %v, want validation error", err)
	}
}

func TestExpandGroups(t *testing.T) {
	groups := []string{"1001", "39"}
	cases := []struct{ in, want string }{
		{"user/$1@${domain_name}", "user/1001@${domain_name}"},
		{"$2$1", "391001"},
		{"no refs", "no refs"},
		{"$9", ""},
		{"trailing $", "trailing $"},
	}
	for _, tc := range cases {
		if got := ExpandGroups(tc.in, groups); got != tc.want {
			t.Errorf("ExpandGroups(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSeedTenantContexts(t *testing.T) {
	repo := &fakeRuleRepo{}
	if err := SeedTenantContexts(context.Background(), repo, "t1", "acme"); err != nil {
		t.Fatalf("SeedTenantContexts() error: %v", err)
	}

	byContext := map[string]int{}
	for _, r := range repo.rules {
		byContext[r.Context]++
		if _, err := ParseActions(r.Actions); err != nil {
			t.Errorf("seeded rule %q has invalid actions: %v", r.Name, err)
		}
		if err := ValidatePattern(r.MatchPattern); err != nil {
			t.Errorf("seeded rule %q has invalid pattern: %v", r.Name, err)
		}
	}

	want := map[string]int{
		"acme-internal":  1,
		"acme-outbound":  1,
		"acme-external":  1,
		"acme-features":  5,
		"acme-voicemail": 1,
		"acme-emergency": 1,
	}
	for ctx, n := range want {
		if byContext[ctx] != n {
			t.Errorf("context %s has %d rules, want %d", ctx, byContext[ctx], n)
		}
	}

	// Feature codes sit at distinct fixed priorities.
	prios := map[int]bool{}
	for _, r := range repo.rules {
		if r.Context != "acme-features" {
			continue
		}
		if prios[r.Priority] {
			t.Errorf("duplicate feature priority %d", r.Priority)
		}
		prios[r.Priority] = true
	}
}

func TestSeededEmergencyPrecedence(t *testing.T) {
	repo := &fakeRuleRepo{}
	if err := SeedContextRules(context.Background(), repo, "t1", "acme-emergency"); err != nil {
		t.Fatalf("SeedContextRules() error: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEvaluator(repo, logger)

	m, err := e.Evaluate(context.Background(), "t1", "acme-emergency", "112")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if m.Fallback {
		t.Fatal("emergency number should match seeded rule")
	}
	if m.Actions[1].Target != "sofia/external/112" {
		t.Errorf("bridge target = %q", m.Actions[1].Target)
	}
}
