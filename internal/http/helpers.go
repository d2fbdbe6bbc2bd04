package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"upkeep/internal/core"
)

type errorResponse struct {
	Error   string `json:"error"`
	Warning string `json:"warning,omitempty"`
}

type chargeLineJSON struct {
	PropertyID int64   `json:"property_id"`
	Date       string  `json:"date"`
	Label      string  `json:"label"`
	Quantity   float64 `json:"quantity"`
	Amount     string  `json:"amount"`
}

type breakdownJSON struct {
	Subtotal    string           `json:"subtotal"`
	Quantity    float64          `json:"quantity"`
	Lines       []chargeLineJSON `json:"lines,omitempty"`
	ReceiptRefs []string         `json:"receipt_refs,omitempty"`
}

type summaryJSON struct {
	ScopeType     string        `json:"scope_type"`
	ScopeID       int64         `json:"scope_id"`
	PeriodStart   string        `json:"period_start"`
	PeriodEnd     string        `json:"period_end"`
	PropertyCount int           `json:"property_count"`
	Cleaning      breakdownJSON `json:"cleaning"`
	Linen         breakdownJSON `json:"linen"`
	Supply        breakdownJSON `json:"supply"`
	Fee           string        `json:"fee"`
	GrandTotal    string        `json:"grand_total"`
	GrandTotalBRL string        `json:"grand_total_brl"`
}

type closingJSON struct {
	ID          int64  `json:"id"`
	ScopeType   string `json:"scope_type"`
	ScopeID     int64  `json:"scope_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Total       string `json:"total"`
	TotalBRL    string `json:"total_brl"`
	Notes       string `json:"notes,omitempty"`
	ReceiptRef  string `json:"receipt_ref,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toBreakdownJSON(b core.ChargeBreakdown) breakdownJSON {
	out := breakdownJSON{
		Subtotal:    b.Subtotal.Decimal(),
		Quantity:    b.Quantity,
		ReceiptRefs: b.ReceiptRefs,
	}
	for _, l := range b.Lines {
		out.Lines = append(out.Lines, chargeLineJSON{
			PropertyID: l.PropertyID,
			Date:       l.Date.String(),
			Label:      l.Label,
			Quantity:   l.Quantity,
			Amount:     l.Amount.Decimal(),
		})
	}
	return out
}

func toSummaryJSON(s core.ClosingSummary) summaryJSON {
	return summaryJSON{
		ScopeType:     string(s.ScopeType),
		ScopeID:       s.ScopeID,
		PeriodStart:   s.PeriodStart.String(),
		PeriodEnd:     s.PeriodEnd.String(),
		PropertyCount: s.PropertyCount,
		Cleaning:      toBreakdownJSON(s.Cleaning),
		Linen:         toBreakdownJSON(s.Linen),
		Supply:        toBreakdownJSON(s.Supply),
		Fee:           s.Fee.Decimal(),
		GrandTotal:    s.GrandTotal.Decimal(),
		GrandTotalBRL: core.FormatBRL(s.GrandTotal.Cents),
	}
}

func toClosingJSON(rec core.ClosingRecord) closingJSON {
	return closingJSON{
		ID:          rec.ID,
		ScopeType:   string(rec.ScopeType),
		ScopeID:     rec.ScopeID,
		PeriodStart: rec.PeriodStart.String(),
		PeriodEnd:   rec.PeriodEnd.String(),
		Total:       rec.Total.Decimal(),
		TotalBRL:    core.FormatBRL(rec.Total.Cents),
		Notes:       rec.Notes,
		ReceiptRef:  rec.ReceiptRef,
		CreatedAt:   rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeDomainError maps billing errors to HTTP statuses. An owner with
// no properties is a conflict, not a 500: the caller picked a scope
// that cannot be billed.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrOwnerNotFound), errors.Is(err, core.ErrPropertyNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrEmptyScope):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   err.Error(),
			Warning: "owner has no properties in scope; nothing to bill",
		})
	case errors.Is(err, core.ErrOverlappingClosing):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrInvalidScopeType),
		errors.Is(err, core.ErrInvalidDate):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
