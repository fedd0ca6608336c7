package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/dialplan"
)

// destinationTypes are the destinations an inbound route may target.
var destinationTypes = map[string]bool{
	"extension": true,
	"voicemail": true,
	"ivr":       true,
	"queue":     true,
	"external":  true,
	"hangup":    true,
}

type inboundRouteRequest struct {
	Name                     string  `json:"name"`
	Description              string  `json:"description"`
	DIDNumber                string  `json:"did_number"`
	CallerIDPattern          string  `json:"caller_id_pattern"`
	DestinationType          string  `json:"destination_type"`
	DestinationValue         string  `json:"destination_value"`
	TimeConditionID          *string `json:"time_condition_id"`
	Enabled                  *bool   `json:"enabled"`
	FailoverEnabled          *bool   `json:"failover_enabled"`
	FailoverDestinationType  string  `json:"failover_destination_type"`
	FailoverDestinationValue string  `json:"failover_destination_value"`
}

type inboundRouteResponse struct {
	ID                       string  `json:"id"`
	TenantID                 string  `json:"tenant_id"`
	Name                     string  `json:"name"`
	Description              string  `json:"description"`
	DIDNumber                string  `json:"did_number"`
	CallerIDPattern          string  `json:"caller_id_pattern"`
	DestinationType          string  `json:"destination_type"`
	DestinationValue         string  `json:"destination_value"`
	TimeConditionID          *string `json:"time_condition_id"`
	Enabled                  bool    `json:"enabled"`
	FailoverEnabled          bool    `json:"failover_enabled"`
	FailoverDestinationType  string  `json:"failover_destination_type"`
	FailoverDestinationValue string  `json:"failover_destination_value"`
	CreatedAt                string  `json:"created_at"`
	UpdatedAt                string  `json:"updated_at"`
}

func toInboundRouteResponse(rt *models.InboundRoute) inboundRouteResponse {
	return inboundRouteResponse{
		ID:                       rt.ID,
		TenantID:                 rt.TenantID,
		Name:                     rt.Name,
		Description:              rt.Description,
		DIDNumber:                rt.DIDNumber,
		CallerIDPattern:          rt.CallerIDPattern,
		DestinationType:          rt.DestinationType,
		DestinationValue:         rt.DestinationValue,
		TimeConditionID:          rt.TimeConditionID,
		Enabled:                  rt.Enabled,
		FailoverEnabled:          rt.FailoverEnabled,
		FailoverDestinationType:  rt.FailoverDestinationType,
		FailoverDestinationValue: rt.FailoverDestinationValue,
		CreatedAt:                rt.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                rt.UpdatedAt.Format(time.RFC3339),
	}
}

// validateInboundRouteRequest rejects unusable routes at write time: the
// caller-id pattern must compile and the destination kinds must be known.
func (s *Server) validateInboundRouteRequest(r *http.Request, req inboundRouteRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.DIDNumber == "" {
		return "did_number is required"
	}
	if !destinationTypes[req.DestinationType] {
		return "destination_type is not a known kind"
	}
	if req.DestinationType != "hangup" && req.DestinationValue == "" {
		return "destination_value is required"
	}
	if req.CallerIDPattern != "" {
		if err := dialplan.ValidatePattern(req.CallerIDPattern); err != nil {
			return "caller_id_pattern: " + err.Error()
		}
	}
	if req.FailoverEnabled != nil && *req.FailoverEnabled {
		if !destinationTypes[req.FailoverDestinationType] {
			return "failover_destination_type is not a known kind"
		}
	}
	if req.TimeConditionID != nil && *req.TimeConditionID != "" {
		if _, err := s.deps.TimeConds.GetByID(r.Context(), *req.TimeConditionID); err != nil {
			return "time_condition_id does not reference an existing time condition"
		}
	}
	return ""
}

func (s *Server) handleListInboundRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.deps.Inbound.List(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]inboundRouteResponse, len(routes))
	for i := range routes {
		out[i] = toInboundRouteResponse(&routes[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateInboundRoute(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if _, err := s.deps.Tenants.GetByID(r.Context(), tenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req inboundRouteRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := s.validateInboundRouteRequest(r, req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	route := &models.InboundRoute{
		ID:                       uuid.NewString(),
		TenantID:                 tenantID,
		Name:                     req.Name,
		Description:              req.Description,
		DIDNumber:                req.DIDNumber,
		CallerIDPattern:          req.CallerIDPattern,
		DestinationType:          req.DestinationType,
		DestinationValue:         req.DestinationValue,
		TimeConditionID:          req.TimeConditionID,
		Enabled:                  true,
		FailoverDestinationType:  req.FailoverDestinationType,
		FailoverDestinationValue: req.FailoverDestinationValue,
	}
	if req.Enabled != nil {
		route.Enabled = *req.Enabled
	}
	if req.FailoverEnabled != nil {
		route.FailoverEnabled = *req.FailoverEnabled
	}

	if err := s.deps.Inbound.Create(r.Context(), route); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInboundRouteResponse(route))
}

func (s *Server) handleUpdateInboundRoute(w http.ResponseWriter, r *http.Request) {
	route, err := s.deps.Inbound.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req inboundRouteRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := s.validateInboundRouteRequest(r, req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	route.Name = req.Name
	route.Description = req.Description
	route.DIDNumber = req.DIDNumber
	route.CallerIDPattern = req.CallerIDPattern
	route.DestinationType = req.DestinationType
	route.DestinationValue = req.DestinationValue
	route.TimeConditionID = req.TimeConditionID
	route.FailoverDestinationType = req.FailoverDestinationType
	route.FailoverDestinationValue = req.FailoverDestinationValue
	if req.Enabled != nil {
		route.Enabled = *req.Enabled
	}
	if req.FailoverEnabled != nil {
		route.FailoverEnabled = *req.FailoverEnabled
	}

	if err := s.deps.Inbound.Update(r.Context(), route); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInboundRouteResponse(route))
}

func (s *Server) handleDeleteInboundRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Inbound.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.deps.Inbound.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

type outboundRouteRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DialPattern     string  `json:"dial_pattern"`
	TrunkID         string  `json:"trunk_id"`
	Prefix          string  `json:"prefix"`
	StripDigits     *int    `json:"strip_digits"`
	AddDigits       string  `json:"add_digits"`
	Priority        *int    `json:"priority"`
	Enabled         *bool   `json:"enabled"`
	FailoverTrunkID *string `json:"failover_trunk_id"`
}

type outboundRouteResponse struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenant_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DialPattern     string  `json:"dial_pattern"`
	TrunkID         string  `json:"trunk_id"`
	Prefix          string  `json:"prefix"`
	StripDigits     int     `json:"strip_digits"`
	AddDigits       string  `json:"add_digits"`
	Priority        int     `json:"priority"`
	Enabled         bool    `json:"enabled"`
	FailoverTrunkID *string `json:"failover_trunk_id"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toOutboundRouteResponse(rt *models.OutboundRoute) outboundRouteResponse {
	return outboundRouteResponse{
		ID:              rt.ID,
		TenantID:        rt.TenantID,
		Name:            rt.Name,
		Description:     rt.Description,
		DialPattern:     rt.DialPattern,
		TrunkID:         rt.TrunkID,
		Prefix:          rt.Prefix,
		StripDigits:     rt.StripDigits,
		AddDigits:       rt.AddDigits,
		Priority:        rt.Priority,
		Enabled:         rt.Enabled,
		FailoverTrunkID: rt.FailoverTrunkID,
		CreatedAt:       rt.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       rt.UpdatedAt.Format(time.RFC3339),
	}
}

// validateOutboundRouteRequest checks the dial pattern compiles and both
// trunk references exist.
func (s *Server) validateOutboundRouteRequest(r *http.Request, req outboundRouteRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if err := dialplan.ValidatePattern(req.DialPattern); err != nil {
		return "dial_pattern: " + err.Error()
	}
	if req.TrunkID == "" {
		return "trunk_id is required"
	}
	if _, err := s.deps.Trunks.GetByID(r.Context(), req.TrunkID); err != nil {
		return "trunk_id does not reference an existing trunk"
	}
	if req.FailoverTrunkID != nil && *req.FailoverTrunkID != "" {
		if _, err := s.deps.Trunks.GetByID(r.Context(), *req.FailoverTrunkID); err != nil {
			return "failover_trunk_id does not reference an existing trunk"
		}
	}
	if req.StripDigits != nil && (*req.StripDigits < 0 || *req.StripDigits > 20) {
		return "strip_digits must be between 0 and 20"
	}
	if req.Priority != nil && (*req.Priority < 0 || *req.Priority > 9999) {
		return "priority must be between 0 and 9999"
	}
	return ""
}

func (s *Server) handleListOutboundRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.deps.Outbound.List(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]outboundRouteResponse, len(routes))
	for i := range routes {
		out[i] = toOutboundRouteResponse(&routes[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateOutboundRoute(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if _, err := s.deps.Tenants.GetByID(r.Context(), tenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req outboundRouteRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := s.validateOutboundRouteRequest(r, req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	route := &models.OutboundRoute{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Name:            req.Name,
		Description:     req.Description,
		DialPattern:     req.DialPattern,
		TrunkID:         req.TrunkID,
		Prefix:          req.Prefix,
		AddDigits:       req.AddDigits,
		Priority:        100,
		Enabled:         true,
		FailoverTrunkID: req.FailoverTrunkID,
	}
	if req.StripDigits != nil {
		route.StripDigits = *req.StripDigits
	}
	if req.Priority != nil {
		route.Priority = *req.Priority
	}
	if req.Enabled != nil {
		route.Enabled = *req.Enabled
	}

	if err := s.deps.Outbound.Create(r.Context(), route); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutboundRouteResponse(route))
}

func (s *Server) handleUpdateOutboundRoute(w http.ResponseWriter, r *http.Request) {
	route, err := s.deps.Outbound.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req outboundRouteRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := s.validateOutboundRouteRequest(r, req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	route.Name = req.Name
	route.Description = req.Description
	route.DialPattern = req.DialPattern
	route.TrunkID = req.TrunkID
	route.Prefix = req.Prefix
	route.AddDigits = req.AddDigits
	route.FailoverTrunkID = req.FailoverTrunkID
	if req.StripDigits != nil {
		route.StripDigits = *req.StripDigits
	}
	if req.Priority != nil {
		route.Priority = *req.Priority
	}
	if req.Enabled != nil {
		route.Enabled = *req.Enabled
	}

	if err := s.deps.Outbound.Update(r.Context(), route); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutboundRouteResponse(route))
}

func (s *Server) handleDeleteOutboundRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Outbound.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.deps.Outbound.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
