package api

import (
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/dialplan"
)

// slugRe validates tenant slugs: lowercase alphanumerics and hyphens,
// starting with a letter. The slug prefixes dialplan context names, so it
// must never contain characters the engine treats specially.
var slugRe = regexp.MustCompile(`^[a-z][a-z0-9-]{1,39}$`)

type tenantRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	SIPDomain   string `json:"sip_domain"`
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
	Status      string `json:"status"`
}

type tenantResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	SIPDomain   string `json:"sip_domain"`
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toTenantResponse(t *models.Tenant) tenantResponse {
	return tenantResponse{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.Slug,
		SIPDomain:   t.SIPDomain,
		CountryCode: t.CountryCode,
		Timezone:    t.Timezone,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

func validateTenantRequest(req tenantRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if !slugRe.MatchString(req.Slug) {
		return "slug must be 2-40 lowercase letters, digits or hyphens, starting with a letter"
	}
	if req.SIPDomain == "" {
		return "sip_domain is required"
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return "timezone is not a valid IANA timezone"
		}
	}
	if req.Status != "" && req.Status != "active" && req.Status != "suspended" {
		return "status must be active or suspended"
	}
	return ""
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.deps.Tenants.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]tenantResponse, len(tenants))
	for i := range tenants {
		out[i] = toTenantResponse(&tenants[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.deps.Tenants.GetByID(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// handleCreateTenant creates a tenant and seeds its six dialplan contexts
// with the default rules.
func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateTenantRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if _, err := s.deps.Tenants.GetBySlug(r.Context(), req.Slug); err == nil {
		writeError(w, http.StatusConflict, "slug already in use")
		return
	}

	tenant := &models.Tenant{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        req.Slug,
		SIPDomain:   req.SIPDomain,
		CountryCode: req.CountryCode,
		Timezone:    req.Timezone,
		Status:      "active",
	}
	if tenant.CountryCode == "" {
		tenant.CountryCode = s.deps.CountryCode
	}
	if tenant.Timezone == "" {
		tenant.Timezone = "UTC"
	}
	if req.Status != "" {
		tenant.Status = req.Status
	}

	if err := s.deps.Tenants.Create(r.Context(), tenant); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := dialplan.SeedTenantContexts(r.Context(), s.deps.Rules, tenant.ID, tenant.Slug); err != nil {
		slog.Error("seeding tenant contexts failed", "tenant_id", tenant.ID, "error", err)
		writeServiceError(w, err)
		return
	}

	slog.Info("tenant created", "tenant_id", tenant.ID, "slug", tenant.Slug)
	created, err := s.deps.Tenants.GetByID(r.Context(), tenant.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTenantResponse(created))
}

func (s *Server) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.deps.Tenants.GetByID(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req tenantRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateTenantRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	// The slug names every seeded context; renaming it would orphan them.
	if req.Slug != tenant.Slug {
		writeError(w, http.StatusBadRequest, "slug cannot be changed")
		return
	}

	tenant.Name = req.Name
	tenant.SIPDomain = req.SIPDomain
	if req.CountryCode != "" {
		tenant.CountryCode = req.CountryCode
	}
	if req.Timezone != "" {
		tenant.Timezone = req.Timezone
	}
	if req.Status != "" {
		tenant.Status = req.Status
	}

	if err := s.deps.Tenants.Update(r.Context(), tenant); err != nil {
		writeServiceError(w, err)
		return
	}

	updated, err := s.deps.Tenants.GetByID(r.Context(), tenant.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(updated))
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tenantID")
	if _, err := s.deps.Tenants.GetByID(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.deps.Tenants.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	slog.Info("tenant deleted", "tenant_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
