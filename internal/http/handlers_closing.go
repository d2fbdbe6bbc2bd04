package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"upkeep/internal/billing"
	"upkeep/internal/core"
	"upkeep/internal/metrics"
)

type closingRequest struct {
	ScopeType   string `json:"scope_type"`
	ScopeID     int64  `json:"scope_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Notes       string `json:"notes"`
	ReceiptRef  string `json:"receipt_ref"`
}

type parsedClosingRequest struct {
	scopeType   core.ScopeType
	scopeID     int64
	periodStart core.Date
	periodEnd   core.Date
	notes       string
	receiptRef  string
}

func parseClosingRequest(r *http.Request) (parsedClosingRequest, error) {
	var req closingRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return parsedClosingRequest{}, fmt.Errorf("decode request body: %w", err)
	}

	scopeType, err := core.ParseScopeType(req.ScopeType)
	if err != nil {
		return parsedClosingRequest{}, err
	}
	periodStart, err := core.ParseDate(req.PeriodStart)
	if err != nil {
		return parsedClosingRequest{}, err
	}
	periodEnd, err := core.ParseDate(req.PeriodEnd)
	if err != nil {
		return parsedClosingRequest{}, err
	}

	return parsedClosingRequest{
		scopeType:   scopeType,
		scopeID:     req.ScopeID,
		periodStart: periodStart,
		periodEnd:   periodEnd,
		notes:       strings.TrimSpace(req.Notes),
		receiptRef:  strings.TrimSpace(req.ReceiptRef),
	}, nil
}

func (s *Server) handlePreviewClosing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseClosingRequest(r)
	if err != nil {
		s.writeParseError(w, r, err)
		return
	}

	start := time.Now()
	summary, err := s.api.Preview(r.Context(), req.scopeType, req.scopeID, req.periodStart, req.periodEnd)
	if err != nil {
		metrics.ObservePreview("error", time.Since(start))
		slog.ErrorContext(r.Context(), "Closing preview failed",
			"error", err,
			"scope_type", req.scopeType,
			"scope_id", req.scopeID)
		writeDomainError(w, err)
		return
	}
	metrics.ObservePreview("success", time.Since(start))

	writeJSON(w, http.StatusOK, toSummaryJSON(summary))
}

func (s *Server) handleClosings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCommitClosing(w, r)
	case http.MethodGet:
		s.handleListClosings(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCommitClosing(w http.ResponseWriter, r *http.Request) {
	req, err := parseClosingRequest(r)
	if err != nil {
		s.writeParseError(w, r, err)
		return
	}

	start := time.Now()
	rec, err := s.api.Commit(r.Context(), req.scopeType, req.scopeID, req.periodStart, req.periodEnd, req.notes, req.receiptRef)
	if err != nil {
		metrics.ObserveCommit("error", time.Since(start))
		slog.ErrorContext(r.Context(), "Closing commit failed",
			"error", err,
			"scope_type", req.scopeType,
			"scope_id", req.scopeID)
		writeDomainError(w, err)
		return
	}
	metrics.ObserveCommit("success", time.Since(start))

	writeJSON(w, http.StatusCreated, toClosingJSON(rec))
}

func (s *Server) handleListClosings(w http.ResponseWriter, r *http.Request) {
	var filter billing.ClosingFilter

	if v := strings.TrimSpace(r.URL.Query().Get("scope_type")); v != "" {
		scopeType, err := core.ParseScopeType(v)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		filter.ScopeType = scopeType
	}
	if v := strings.TrimSpace(r.URL.Query().Get("scope_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid scope_id"})
			return
		}
		filter.ScopeID = id
	}

	records, err := s.api.ListClosings(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "Closing list failed", "error", err)
		writeDomainError(w, err)
		return
	}

	out := make([]closingJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toClosingJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeParseError distinguishes malformed JSON from well-formed
// requests with invalid domain values.
func (s *Server) writeParseError(w http.ResponseWriter, r *http.Request, err error) {
	slog.WarnContext(r.Context(), "Invalid closing request", "error", err)
	if strings.Contains(err.Error(), "decode request body") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeDomainError(w, err)
}
