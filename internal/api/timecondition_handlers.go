package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/routing"
)

type timeConditionRequest struct {
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	Timezone                 string          `json:"timezone"`
	BusinessHours            json.RawMessage `json:"business_hours"`
	Holidays                 json.RawMessage `json:"holidays"`
	BusinessHoursAction      string          `json:"business_hours_action"`
	BusinessHoursDestination string          `json:"business_hours_destination"`
	AfterHoursAction         string          `json:"after_hours_action"`
	AfterHoursDestination    string          `json:"after_hours_destination"`
	HolidayAction            string          `json:"holiday_action"`
	HolidayDestination       string          `json:"holiday_destination"`
	Enabled                  *bool           `json:"enabled"`
}

type timeConditionResponse struct {
	ID                       string          `json:"id"`
	TenantID                 string          `json:"tenant_id"`
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	Timezone                 string          `json:"timezone"`
	BusinessHours            json.RawMessage `json:"business_hours"`
	Holidays                 json.RawMessage `json:"holidays"`
	BusinessHoursAction      string          `json:"business_hours_action"`
	BusinessHoursDestination string          `json:"business_hours_destination"`
	AfterHoursAction         string          `json:"after_hours_action"`
	AfterHoursDestination    string          `json:"after_hours_destination"`
	HolidayAction            string          `json:"holiday_action"`
	HolidayDestination       string          `json:"holiday_destination"`
	Enabled                  bool            `json:"enabled"`
	CreatedAt                string          `json:"created_at"`
	UpdatedAt                string          `json:"updated_at"`
}

func toTimeConditionResponse(tc *models.TimeCondition) timeConditionResponse {
	resp := timeConditionResponse{
		ID:                       tc.ID,
		TenantID:                 tc.TenantID,
		Name:                     tc.Name,
		Description:              tc.Description,
		Timezone:                 tc.Timezone,
		BusinessHoursAction:      tc.BusinessHoursAction,
		BusinessHoursDestination: tc.BusinessHoursDestination,
		AfterHoursAction:         tc.AfterHoursAction,
		AfterHoursDestination:    tc.AfterHoursDestination,
		HolidayAction:            tc.HolidayAction,
		HolidayDestination:       tc.HolidayDestination,
		Enabled:                  tc.Enabled,
		CreatedAt:                tc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                tc.UpdatedAt.Format(time.RFC3339),
	}
	if tc.BusinessHours != "" {
		resp.BusinessHours = json.RawMessage(tc.BusinessHours)
	} else {
		resp.BusinessHours = json.RawMessage("{}")
	}
	if tc.Holidays != "" {
		resp.Holidays = json.RawMessage(tc.Holidays)
	} else {
		resp.Holidays = json.RawMessage("[]")
	}
	return resp
}

// validateTimeConditionRequest rejects malformed schedules at write time so
// evaluation never sees an unparseable document.
func validateTimeConditionRequest(req timeConditionRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Timezone == "" {
		return "timezone is required"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return "timezone is not a valid IANA timezone"
	}
	if len(req.BusinessHours) > 0 {
		if err := routing.ValidateBusinessHours(string(req.BusinessHours)); err != nil {
			return err.Error()
		}
	}
	if len(req.Holidays) > 0 {
		if err := routing.ValidateHolidays(string(req.Holidays)); err != nil {
			return err.Error()
		}
	}
	return ""
}

func (s *Server) handleListTimeConditions(w http.ResponseWriter, r *http.Request) {
	tcs, err := s.deps.TimeConds.List(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]timeConditionResponse, len(tcs))
	for i := range tcs {
		out[i] = toTimeConditionResponse(&tcs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTimeCondition(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if _, err := s.deps.Tenants.GetByID(r.Context(), tenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req timeConditionRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateTimeConditionRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	tc := &models.TimeCondition{
		ID:                       uuid.NewString(),
		TenantID:                 tenantID,
		Name:                     req.Name,
		Description:              req.Description,
		Timezone:                 req.Timezone,
		BusinessHours:            string(req.BusinessHours),
		Holidays:                 string(req.Holidays),
		BusinessHoursAction:      req.BusinessHoursAction,
		BusinessHoursDestination: req.BusinessHoursDestination,
		AfterHoursAction:         req.AfterHoursAction,
		AfterHoursDestination:    req.AfterHoursDestination,
		HolidayAction:            req.HolidayAction,
		HolidayDestination:       req.HolidayDestination,
		Enabled:                  true,
	}
	if req.Enabled != nil {
		tc.Enabled = *req.Enabled
	}

	if err := s.deps.TimeConds.Create(r.Context(), tc); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeConditionResponse(tc))
}

func (s *Server) handleUpdateTimeCondition(w http.ResponseWriter, r *http.Request) {
	tc, err := s.deps.TimeConds.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req timeConditionRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateTimeConditionRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	tc.Name = req.Name
	tc.Description = req.Description
	tc.Timezone = req.Timezone
	tc.BusinessHours = string(req.BusinessHours)
	tc.Holidays = string(req.Holidays)
	tc.BusinessHoursAction = req.BusinessHoursAction
	tc.BusinessHoursDestination = req.BusinessHoursDestination
	tc.AfterHoursAction = req.AfterHoursAction
	tc.AfterHoursDestination = req.AfterHoursDestination
	tc.HolidayAction = req.HolidayAction
	tc.HolidayDestination = req.HolidayDestination
	if req.Enabled != nil {
		tc.Enabled = *req.Enabled
	}

	if err := s.deps.TimeConds.Update(r.Context(), tc); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeConditionResponse(tc))
}

func (s *Server) handleDeleteTimeCondition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.TimeConds.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.deps.TimeConds.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
