package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voxgate/voxgate/internal/call"
	"github.com/voxgate/voxgate/internal/database/models"
)

type activeCallResponse struct {
	CallUUID          string `json:"call_uuid"`
	TenantID          string `json:"tenant_id"`
	Direction         string `json:"direction"`
	CallerIDName      string `json:"caller_id_name"`
	CallerIDNumber    string `json:"caller_id_number"`
	DestinationNumber string `json:"destination_number"`
	Context           string `json:"context"`
	State             string `json:"state"`
	StartTime         string `json:"start_time"`
	AnswerTime        string `json:"answer_time,omitempty"`
}

func toActiveCallResponse(s *models.CallSession) activeCallResponse {
	resp := activeCallResponse{
		CallUUID:          s.CallUUID,
		TenantID:          s.TenantID,
		Direction:         s.Direction,
		CallerIDName:      s.CallerIDName,
		CallerIDNumber:    s.CallerIDNumber,
		DestinationNumber: s.DestinationNumber,
		Context:           s.Context,
		State:             string(s.State),
		StartTime:         s.StartTime.Format(time.RFC3339),
	}
	if s.AnswerTime != nil {
		resp.AnswerTime = s.AnswerTime.Format(time.RFC3339)
	}
	return resp
}

// handleActiveCalls lists live calls, optionally filtered by tenant_id.
func (s *Server) handleActiveCalls(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.Sessions.ListActive(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]activeCallResponse, len(sessions))
	for i := range sessions {
		out[i] = toActiveCallResponse(&sessions[i])
	}
	writeJSON(w, http.StatusOK, out)
}

type originateRequest struct {
	CallerExtension string `json:"caller_extension"`
	Destination     string `json:"destination"`
	Domain          string `json:"domain"`
	Context         string `json:"context"`
	CallerID        string `json:"caller_id"`
	TimeoutSec      int    `json:"timeout_sec"`
}

// handleOriginate places a new call from an extension to a destination.
func (s *Server) handleOriginate(w http.ResponseWriter, r *http.Request) {
	var req originateRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	callUUID, err := s.deps.Controller.Originate(r.Context(), call.OriginateRequest{
		CallerExtension: req.CallerExtension,
		Destination:     req.Destination,
		Domain:          req.Domain,
		Context:         req.Context,
		CallerID:        req.CallerID,
		TimeoutSec:      req.TimeoutSec,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("call originated", "call_uuid", callUUID, "extension", req.CallerExtension, "destination", req.Destination)
	writeJSON(w, http.StatusCreated, map[string]string{"call_uuid": callUUID})
}

type hangupRequest struct {
	Cause string `json:"cause"`
}

func (s *Server) handleHangupCall(w http.ResponseWriter, r *http.Request) {
	var req hangupRequest
	if r.ContentLength > 0 {
		if errMsg := readJSON(r, &req); errMsg != "" {
			writeError(w, http.StatusBadRequest, errMsg)
			return
		}
	}
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.Hangup(r.Context(), uuid, req.Cause)
	})
}

type transferRequest struct {
	Destination string `json:"destination"`
}

func (s *Server) handleTransferCall(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.Transfer(r.Context(), uuid, req.Destination)
	})
}

func (s *Server) handleHoldCall(w http.ResponseWriter, r *http.Request) {
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.Hold(r.Context(), uuid)
	})
}

func (s *Server) handleUnholdCall(w http.ResponseWriter, r *http.Request) {
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.Unhold(r.Context(), uuid)
	})
}

func (s *Server) handleParkCall(w http.ResponseWriter, r *http.Request) {
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.Park(r.Context(), uuid)
	})
}

func (s *Server) handleMuteCall(w http.ResponseWriter, r *http.Request) {
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.Mute(r.Context(), uuid)
	})
}

func (s *Server) handleUnmuteCall(w http.ResponseWriter, r *http.Request) {
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.Unmute(r.Context(), uuid)
	})
}

type recordRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.RecordStart(r.Context(), uuid, req.Path)
	})
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	s.runVerb(w, r, func(uuid string) error {
		return s.deps.Controller.RecordStop(r.Context(), uuid, req.Path)
	})
}

// runVerb validates the call UUID from the URL, checks the call is tracked,
// and executes the control verb.
func (s *Server) runVerb(w http.ResponseWriter, r *http.Request, verb func(uuid string) error) {
	callUUID := chi.URLParam(r, "uuid")
	if callUUID == "" {
		writeError(w, http.StatusBadRequest, "call uuid is required")
		return
	}

	if _, err := s.deps.Sessions.Get(r.Context(), callUUID); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := verb(callUUID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"call_uuid": callUUID})
}
