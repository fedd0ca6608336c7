package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/database/models"
)

type trunkRequest struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Port      *int   `json:"port"`
	Transport string `json:"transport"`
	Username  string `json:"username"`
	Enabled   *bool  `json:"enabled"`
}

type trunkResponse struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	Name      string `json:"name"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Transport string `json:"transport"`
	Username  string `json:"username"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toTrunkResponse(t *models.Trunk) trunkResponse {
	return trunkResponse{
		ID:        t.ID,
		TenantID:  t.TenantID,
		Name:      t.Name,
		Host:      t.Host,
		Port:      t.Port,
		Transport: t.Transport,
		Username:  t.Username,
		Enabled:   t.Enabled,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
}

func validateTrunkRequest(req trunkRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Host == "" {
		return "host is required"
	}
	if req.Port != nil && (*req.Port < 1 || *req.Port > 65535) {
		return "port must be between 1 and 65535"
	}
	switch req.Transport {
	case "", "udp", "tcp", "tls":
	default:
		return "transport must be udp, tcp or tls"
	}
	return ""
}

func (s *Server) handleListTrunks(w http.ResponseWriter, r *http.Request) {
	trunks, err := s.deps.Trunks.List(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]trunkResponse, len(trunks))
	for i := range trunks {
		out[i] = toTrunkResponse(&trunks[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTrunk(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if _, err := s.deps.Tenants.GetByID(r.Context(), tenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req trunkRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateTrunkRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	trunk := &models.Trunk{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      req.Name,
		Host:      req.Host,
		Port:      5060,
		Transport: "udp",
		Username:  req.Username,
		Enabled:   true,
	}
	if req.Port != nil {
		trunk.Port = *req.Port
	}
	if req.Transport != "" {
		trunk.Transport = req.Transport
	}
	if req.Enabled != nil {
		trunk.Enabled = *req.Enabled
	}

	if err := s.deps.Trunks.Create(r.Context(), trunk); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTrunkResponse(trunk))
}

func (s *Server) handleUpdateTrunk(w http.ResponseWriter, r *http.Request) {
	trunk, err := s.deps.Trunks.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req trunkRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateTrunkRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	trunk.Name = req.Name
	trunk.Host = req.Host
	trunk.Username = req.Username
	if req.Port != nil {
		trunk.Port = *req.Port
	}
	if req.Transport != "" {
		trunk.Transport = req.Transport
	}
	if req.Enabled != nil {
		trunk.Enabled = *req.Enabled
	}

	if err := s.deps.Trunks.Update(r.Context(), trunk); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrunkResponse(trunk))
}

func (s *Server) handleDeleteTrunk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Trunks.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.deps.Trunks.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
