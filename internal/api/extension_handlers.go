package api

import (
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/database/models"
)

// extensionNumberRe validates extension numbers: digits only, 2-10 chars.
var extensionNumberRe = regexp.MustCompile(`^\d{2,10}$`)

// pinRe validates voicemail PINs: digits only, 4-10 chars.
var pinRe = regexp.MustCompile(`^\d{4,10}$`)

type extensionRequest struct {
	Extension    string `json:"extension"`
	DisplayName  string `json:"display_name"`
	Password     string `json:"password"`
	VoicemailPIN string `json:"voicemail_pin"`
	DND          *bool  `json:"dnd"`
	CallForward  string `json:"call_forward"`
	Status       string `json:"status"`
}

// extensionResponse never carries the SIP password.
type extensionResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Extension   string `json:"extension"`
	DisplayName string `json:"display_name"`
	DND         bool   `json:"dnd"`
	CallForward string `json:"call_forward"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toExtensionResponse(e *models.Extension) extensionResponse {
	return extensionResponse{
		ID:          e.ID,
		TenantID:    e.TenantID,
		Extension:   e.Extension,
		DisplayName: e.DisplayName,
		DND:         e.DND,
		CallForward: e.CallForward,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

func validateExtensionRequest(req extensionRequest, creating bool) string {
	if !extensionNumberRe.MatchString(req.Extension) {
		return "extension must be 2-10 digits"
	}
	if creating && req.Password == "" {
		return "password is required"
	}
	if req.VoicemailPIN != "" && !pinRe.MatchString(req.VoicemailPIN) {
		return "voicemail_pin must be 4-10 digits"
	}
	if req.Status != "" && req.Status != "active" && req.Status != "disabled" {
		return "status must be active or disabled"
	}
	return ""
}

func (s *Server) handleListExtensions(w http.ResponseWriter, r *http.Request) {
	exts, err := s.deps.Extensions.List(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]extensionResponse, len(exts))
	for i := range exts {
		out[i] = toExtensionResponse(&exts[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExtension(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if _, err := s.deps.Tenants.GetByID(r.Context(), tenantID); err != nil {
		writeServiceError(w, err)
		return
	}

	var req extensionRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateExtensionRequest(req, true); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if _, err := s.deps.Extensions.GetByNumber(r.Context(), tenantID, req.Extension); err == nil {
		writeError(w, http.StatusConflict, "extension already exists")
		return
	}

	ext := &models.Extension{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Extension:    req.Extension,
		DisplayName:  req.DisplayName,
		Password:     req.Password,
		VoicemailPIN: req.VoicemailPIN,
		CallForward:  req.CallForward,
		Status:       "active",
	}
	if req.DND != nil {
		ext.DND = *req.DND
	}
	if req.Status != "" {
		ext.Status = req.Status
	}

	if err := s.deps.Extensions.Create(r.Context(), ext); err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("extension created", "tenant_id", tenantID, "extension", ext.Extension)
	writeJSON(w, http.StatusCreated, toExtensionResponse(ext))
}

func (s *Server) handleUpdateExtension(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req extensionRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateExtensionRequest(req, false); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	ext, err := s.deps.Extensions.GetByNumber(r.Context(), tenantID, req.Extension)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ext.ID != chi.URLParam(r, "id") {
		writeError(w, http.StatusBadRequest, "extension number does not match this record")
		return
	}

	ext.DisplayName = req.DisplayName
	ext.CallForward = req.CallForward
	if req.Password != "" {
		ext.Password = req.Password
	}
	if req.VoicemailPIN != "" {
		ext.VoicemailPIN = req.VoicemailPIN
	}
	if req.DND != nil {
		ext.DND = *req.DND
	}
	if req.Status != "" {
		ext.Status = req.Status
	}

	if err := s.deps.Extensions.Update(r.Context(), ext); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExtensionResponse(ext))
}

func (s *Server) handleDeleteExtension(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Extensions.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
