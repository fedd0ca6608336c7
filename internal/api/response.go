package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/voxgate/voxgate/internal/voxerr"
)

// envelope is the standard API response wrapper.
// All JSON responses use this format: { "data": ..., "error": ... }
type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// PaginatedResponse wraps a list payload with pagination metadata.
type PaginatedResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// maxBodySize caps JSON request bodies at 1 MB.
const maxBodySize = 1 << 20

// writeJSON writes a JSON response with the given status code and data payload.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: msg}); err != nil {
		slog.Error("failed to encode json error response", "error", err)
	}
}

// writeServiceError maps the shared sentinel errors to HTTP status codes.
// Unrecognized errors become an opaque 500 so storage details never leak.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case voxerr.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, voxerr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, voxerr.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "engine not connected")
	case errors.Is(err, voxerr.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "command timed out")
	default:
		slog.Error("api: internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readJSON decodes a JSON request body into dst. Returns an error message
// suitable for a 400 response, or empty string on success.
func readJSON(r *http.Request, dst any) string {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return "request body is required"
		}
		return "invalid request body: " + err.Error()
	}
	return ""
}

// pagination holds parsed limit/offset query parameters.
type pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads limit/offset query params with sane bounds.
// Defaults: limit 50, offset 0. Max limit 500.
func parsePagination(r *http.Request) (pagination, string) {
	pg := pagination{Limit: 50}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			return pg, "limit must be an integer between 1 and 500"
		}
		pg.Limit = v
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return pg, "offset must be a non-negative integer"
		}
		pg.Offset = v
	}
	return pg, ""
}
