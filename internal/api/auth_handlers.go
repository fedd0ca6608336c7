package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxgate/voxgate/internal/api/middleware"
	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// handleLogin authenticates an admin and issues a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.deps.Admins.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, voxerr.ErrNotFound) {
			// Burn a hash check anyway so missing and wrong-password
			// responses take comparable time.
			_, _ = database.CheckPassword(req.Password, "")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, err)
		return
	}

	ok, err := database.CheckPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		slog.Warn("login failed", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := middleware.GenerateToken(s.deps.JWTSecret, user.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("admin logged in", "username", user.Username)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// handleSetup creates the first admin account. It only works while no admin
// exists, so a fresh install can bootstrap itself without a seeded password.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	count, err := s.deps.Admins.Count(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if count > 0 {
		writeError(w, http.StatusConflict, "setup already completed")
		return
	}

	var req loginRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := database.HashPassword(req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	user := &models.AdminUser{Username: req.Username, PasswordHash: hash}
	if err := s.deps.Admins.Create(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("initial admin created", "username", user.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"username": user.Username})
}
