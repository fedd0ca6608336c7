package api

import (
	"net/http"
	"time"

	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/database/models"
)

type cdrResponse struct {
	ID             int64  `json:"id"`
	CallUUID       string `json:"call_uuid"`
	TenantID       string `json:"tenant_id"`
	Direction      string `json:"direction"`
	CallerIDName   string `json:"caller_id_name"`
	CallerIDNumber string `json:"caller_id_number"`
	Destination    string `json:"destination"`
	Context        string `json:"context"`
	StartTime      string `json:"start_time"`
	AnswerTime     string `json:"answer_time,omitempty"`
	EndTime        string `json:"end_time"`
	DurationSec    int    `json:"duration_sec"`
	BillSec        int    `json:"billsec"`
	HangupCause    string `json:"hangup_cause"`
}

func toCDRResponse(c *models.CDR) cdrResponse {
	resp := cdrResponse{
		ID:             c.ID,
		CallUUID:       c.CallUUID,
		TenantID:       c.TenantID,
		Direction:      c.Direction,
		CallerIDName:   c.CallerIDName,
		CallerIDNumber: c.CallerIDNumber,
		Destination:    c.Destination,
		Context:        c.Context,
		StartTime:      c.StartTime.Format(time.RFC3339),
		EndTime:        c.EndTime.Format(time.RFC3339),
		DurationSec:    c.DurationSec,
		BillSec:        c.BillSec,
		HangupCause:    c.HangupCause,
	}
	if c.AnswerTime != nil {
		resp.AnswerTime = c.AnswerTime.Format(time.RFC3339)
	}
	return resp
}

// handleListCDRs lists finalized call records with optional filters:
// tenant_id, direction, search (caller name/number or destination), and
// start_date/end_date bounds.
func (s *Server) handleListCDRs(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	q := r.URL.Query()
	if dir := q.Get("direction"); dir != "" && dir != "inbound" && dir != "outbound" && dir != "internal" {
		writeError(w, http.StatusBadRequest, "direction must be inbound, outbound or internal")
		return
	}

	filter := database.CDRListFilter{
		TenantID:  q.Get("tenant_id"),
		Direction: q.Get("direction"),
		Search:    q.Get("search"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Limit:     pg.Limit,
		Offset:    pg.Offset,
	}

	cdrs, total, err := s.deps.CDRs.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]cdrResponse, len(cdrs))
	for i := range cdrs {
		out[i] = toCDRResponse(&cdrs[i])
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  out,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}
