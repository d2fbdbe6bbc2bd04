package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"upkeep/internal/core"
)

// Engine orchestrates scope resolution, the three aggregators and the
// fee calculator into closing summaries, and persists committed
// closings. It has exactly two operations plus a history query; there
// is no draft or pending state.
type Engine struct {
	ledger       Ledger
	fee          *ManagementFeeCalculator
	overlapGuard bool
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithOverlapGuard makes commit reject a closing whose period overlaps
// an existing closing for the same scope. Off by default: the system
// has historically allowed overlapping closings, so the guard is opt-in.
func WithOverlapGuard() Option {
	return func(e *Engine) { e.overlapGuard = true }
}

// WithClock overrides the commit timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(ledger Ledger, fee *ManagementFeeCalculator, opts ...Option) *Engine {
	e := &Engine{
		ledger: ledger,
		fee:    fee,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Preview computes a closing summary without side effects. Repeated
// calls over unchanged data return identical summaries; a catalog
// price change between calls legitimately moves the linen subtotal.
func (e *Engine) Preview(ctx context.Context, scopeType core.ScopeType, scopeID int64, periodStart, periodEnd core.Date) (core.ClosingSummary, error) {
	return e.previewWith(ctx, e.ledger, scopeType, scopeID, periodStart, periodEnd)
}

// previewWith runs the full aggregation against a specific ledger
// view, so commit can reuse it inside its transaction.
func (e *Engine) previewWith(ctx context.Context, ledger Ledger, scopeType core.ScopeType, scopeID int64, periodStart, periodEnd core.Date) (core.ClosingSummary, error) {
	if err := validateRange(periodStart, periodEnd); err != nil {
		return core.ClosingSummary{}, err
	}

	propertyIDs, err := NewScopeResolver(ledger).Resolve(ctx, scopeType, scopeID)
	if err != nil {
		return core.ClosingSummary{}, err
	}

	cleaning, err := NewCleaningChargeAggregator(ledger).Aggregate(ctx, propertyIDs, periodStart, periodEnd)
	if err != nil {
		return core.ClosingSummary{}, err
	}
	linen, err := NewLinenChargeAggregator(ledger).Aggregate(ctx, propertyIDs, periodStart, periodEnd)
	if err != nil {
		return core.ClosingSummary{}, err
	}
	supply, err := NewSupplyChargeAggregator(ledger).Aggregate(ctx, propertyIDs, periodStart, periodEnd)
	if err != nil {
		return core.ClosingSummary{}, err
	}
	fee, err := e.fee.Fee(len(propertyIDs))
	if err != nil {
		return core.ClosingSummary{}, fmt.Errorf("management fee: %w", err)
	}

	return core.ClosingSummary{
		ScopeType:     scopeType,
		ScopeID:       scopeID,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		PropertyCount: len(propertyIDs),
		Cleaning:      cleaning,
		Linen:         linen,
		Supply:        supply,
		Fee:           fee,
		GrandTotal:    cleaning.Subtotal.Add(linen.Subtotal).Add(supply.Subtotal).Add(fee),
	}, nil
}

// Commit re-runs the aggregation inside a single transaction and
// appends one immutable closing record. The caller-visible total is
// always recomputed here; a stale preview total can never be written.
// A failure at any point leaves no record behind.
func (e *Engine) Commit(ctx context.Context, scopeType core.ScopeType, scopeID int64, periodStart, periodEnd core.Date, notes, receiptRef string) (core.ClosingRecord, error) {
	// Reject before any aggregation or store access.
	if err := validateRange(periodStart, periodEnd); err != nil {
		return core.ClosingRecord{}, err
	}
	if !scopeType.Valid() {
		return core.ClosingRecord{}, fmt.Errorf("%w: %q", core.ErrInvalidScopeType, scopeType)
	}

	var rec core.ClosingRecord
	err := e.ledger.InTx(ctx, func(tx Ledger) error {
		summary, err := e.previewWith(ctx, tx, scopeType, scopeID, periodStart, periodEnd)
		if err != nil {
			return err
		}

		if e.overlapGuard {
			if err := e.checkOverlap(ctx, tx, scopeType, scopeID, periodStart, periodEnd); err != nil {
				return err
			}
		}

		rec, err = tx.AppendClosing(ctx, core.ClosingRecord{
			ScopeType:   scopeType,
			ScopeID:     scopeID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Total:       summary.GrandTotal,
			Notes:       notes,
			ReceiptRef:  receiptRef,
			CreatedAt:   e.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("append closing: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.ClosingRecord{}, err
	}

	slog.InfoContext(ctx, "Closing committed",
		"closing_id", rec.ID,
		"scope_type", rec.ScopeType,
		"scope_id", rec.ScopeID,
		"period_start", rec.PeriodStart.String(),
		"period_end", rec.PeriodEnd.String(),
		"total_cents", rec.Total.Cents)
	return rec, nil
}

// ListClosings returns the closing history, optionally narrowed to one
// scope, for display by the report and dashboard surfaces.
func (e *Engine) ListClosings(ctx context.Context, filter ClosingFilter) ([]core.ClosingRecord, error) {
	return e.ledger.ListClosings(ctx, filter)
}

func (e *Engine) checkOverlap(ctx context.Context, ledger Ledger, scopeType core.ScopeType, scopeID int64, periodStart, periodEnd core.Date) error {
	existing, err := ledger.ListClosings(ctx, ClosingFilter{ScopeType: scopeType, ScopeID: scopeID})
	if err != nil {
		return fmt.Errorf("list closings for overlap check: %w", err)
	}
	for _, rec := range existing {
		if !periodEnd.Before(rec.PeriodStart.Time) && !rec.PeriodEnd.Before(periodStart.Time) {
			return fmt.Errorf("closing %d (%s to %s): %w",
				rec.ID, rec.PeriodStart, rec.PeriodEnd, core.ErrOverlappingClosing)
		}
	}
	return nil
}

func validateRange(periodStart, periodEnd core.Date) error {
	if err := periodStart.Validate(); err != nil {
		return err
	}
	if err := periodEnd.Validate(); err != nil {
		return err
	}
	if periodEnd.Before(periodStart.Time) {
		return fmt.Errorf("%s after %s: %w", periodStart, periodEnd, core.ErrInvalidRange)
	}
	return nil
}
