package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/dialplan"
)

type dialplanRuleRequest struct {
	Context      string            `json:"context"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Priority     *int              `json:"priority"`
	MatchPattern string            `json:"match_pattern"`
	Actions      []dialplan.Action `json:"actions"`
	Enabled      *bool             `json:"enabled"`
}

type dialplanRuleResponse struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	Context      string            `json:"context"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Priority     int               `json:"priority"`
	MatchPattern string            `json:"match_pattern"`
	Actions      []dialplan.Action `json:"actions"`
	Enabled      bool              `json:"enabled"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

func (s *Server) toDialplanRuleResponse(rule *models.DialplanRule) dialplanRuleResponse {
	actions, err := dialplan.ParseActions(rule.Actions)
	if err != nil {
		slog.Warn("stored rule has unparseable actions", "rule_id", rule.ID, "error", err)
	}
	return dialplanRuleResponse{
		ID:           rule.ID,
		TenantID:     rule.TenantID,
		Context:      rule.Context,
		Name:         rule.Name,
		Description:  rule.Description,
		Priority:     rule.Priority,
		MatchPattern: rule.MatchPattern,
		Actions:      actions,
		Enabled:      rule.Enabled,
		CreatedAt:    rule.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    rule.UpdatedAt.Format(time.RFC3339),
	}
}

// validateRuleRequest rejects bad rules at write time: the pattern must
// compile and every action must be a known kind with its required payload.
func validateRuleRequest(req dialplanRuleRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Context == "" {
		return "context is required"
	}
	if err := dialplan.ValidatePattern(req.MatchPattern); err != nil {
		return err.Error()
	}
	if len(req.Actions) == 0 {
		return "at least one action is required"
	}
	for i, a := range req.Actions {
		if err := a.Validate(); err != nil {
			return "actions[" + strconv.Itoa(i) + "]: " + err.Error()
		}
	}
	if req.Priority != nil && (*req.Priority < 0 || *req.Priority > 9999) {
		return "priority must be between 0 and 9999"
	}
	return ""
}

func (s *Server) handleListDialplanRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.deps.Rules.ListByTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]dialplanRuleResponse, len(rules))
	for i := range rules {
		out[i] = s.toDialplanRuleResponse(&rules[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDialplanRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.deps.Rules.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toDialplanRuleResponse(rule))
}

func (s *Server) handleCreateDialplanRule(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if _, err := s.deps.Tenants.GetByID(r.Context(), tenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req dialplanRuleRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRuleRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	encoded, err := dialplan.EncodeActions(req.Actions)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rule := &models.DialplanRule{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Context:      req.Context,
		Name:         req.Name,
		Description:  req.Description,
		Priority:     100,
		MatchPattern: req.MatchPattern,
		Actions:      encoded,
		Enabled:      true,
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := s.deps.Rules.Create(r.Context(), rule); err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("dialplan rule created", "tenant_id", tenantID, "context", rule.Context, "name", rule.Name)
	writeJSON(w, http.StatusCreated, s.toDialplanRuleResponse(rule))
}

func (s *Server) handleUpdateDialplanRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.deps.Rules.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req dialplanRuleRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRuleRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	encoded, err := dialplan.EncodeActions(req.Actions)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rule.Context = req.Context
	rule.Name = req.Name
	rule.Description = req.Description
	rule.MatchPattern = req.MatchPattern
	rule.Actions = encoded
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := s.deps.Rules.Update(r.Context(), rule); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toDialplanRuleResponse(rule))
}

func (s *Server) handleDeleteDialplanRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Rules.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.deps.Rules.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

type testPatternRequest struct {
	Pattern string `json:"pattern"`
	Value   string `json:"value"`
}

// handleTestPattern previews a regex against a sample number without
// touching any stored rule.
func (s *Server) handleTestPattern(w http.ResponseWriter, r *http.Request) {
	var req testPatternRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	result, err := dialplan.TestPattern(req.Pattern, req.Value)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type evaluateRequest struct {
	Context string `json:"context"`
	Dialed  string `json:"dialed"`
}

type evaluateResponse struct {
	Matched  bool              `json:"matched"`
	RuleID   string            `json:"rule_id,omitempty"`
	RuleName string            `json:"rule_name,omitempty"`
	Actions  []dialplan.Action `json:"actions"`
	Groups   []string          `json:"groups,omitempty"`
	Fallback bool              `json:"fallback"`
}

// handleEvaluateDialplan runs the full first-match evaluation for a dialed
// number against a tenant context and reports the winning rule and its
// expanded actions.
func (s *Server) handleEvaluateDialplan(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req evaluateRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.Context == "" || req.Dialed == "" {
		writeError(w, http.StatusBadRequest, "context and dialed are required")
		return
	}

	match, err := s.deps.Evaluator.Evaluate(r.Context(), tenantID, req.Context, req.Dialed)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := evaluateResponse{
		Matched:  !match.Fallback,
		Actions:  match.Actions,
		Groups:   match.Groups,
		Fallback: match.Fallback,
	}
	if match.Rule != nil {
		resp.RuleID = match.Rule.ID
		resp.RuleName = match.Rule.Name
	}
	writeJSON(w, http.StatusOK, resp)
}
