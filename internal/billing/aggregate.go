package billing

import (
	"context"
	"fmt"
	"sort"

	"upkeep/internal/core"
)

// The three aggregators share one contract: reduce a single event
// stream, filtered by property set and inclusive date range, to a
// subtotal plus ordered line items. Rounding to whole cents happens
// once at the subtotal, never while accumulating, so fractional-cent
// cleaning charges cannot compound. Negative quantities and amounts in
// recorded events are floored to zero when summing; malformed data is
// the entry surface's problem and must not corrupt a total.

// CleaningChargeAggregator reduces cleaning sessions to a labor charge.
type CleaningChargeAggregator struct {
	ledger Ledger
}

// LinenChargeAggregator reduces linen consumption to an estimated
// charge at the current catalog price. Because the price is looked up
// at aggregation time, re-running after a catalog price change changes
// totals for not-yet-closed periods; the catalog is the single source
// of truth for linen prices.
type LinenChargeAggregator struct {
	ledger Ledger
}

// SupplyChargeAggregator reduces supply replenishments to the sum of
// their recorded purchase amounts.
type SupplyChargeAggregator struct {
	ledger Ledger
}

func NewCleaningChargeAggregator(l Ledger) *CleaningChargeAggregator {
	return &CleaningChargeAggregator{ledger: l}
}

func NewLinenChargeAggregator(l Ledger) *LinenChargeAggregator {
	return &LinenChargeAggregator{ledger: l}
}

func NewSupplyChargeAggregator(l Ledger) *SupplyChargeAggregator {
	return &SupplyChargeAggregator{ledger: l}
}

// Aggregate sums duration_hours x hourly_rate over matched sessions.
// The subtotal is accumulated in cent-minutes and divided once, so a
// 50-minute session at an odd rate loses nothing before the final
// half-up rounding. Quantity is the total hours worked.
func (a *CleaningChargeAggregator) Aggregate(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) (core.ChargeBreakdown, error) {
	sessions, err := a.ledger.CleaningSessions(ctx, propertyIDs, periodStart, periodEnd)
	if err != nil {
		return core.ChargeBreakdown{}, fmt.Errorf("list cleaning sessions: %w", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].PropertyID != sessions[j].PropertyID {
			return sessions[i].PropertyID < sessions[j].PropertyID
		}
		return sessions[i].Date.Before(sessions[j].Date.Time)
	})

	var (
		centMinutes  int64
		totalMinutes int64
		lines        []core.ChargeLine
	)
	for _, s := range sessions {
		minutes := s.DurationMinutes()
		rate := s.HourlyRate.Cents
		if rate < 0 {
			rate = 0
		}
		centMinutes += minutes * rate
		totalMinutes += minutes
		lines = append(lines, core.ChargeLine{
			PropertyID: s.PropertyID,
			Date:       s.Date,
			Label:      fmt.Sprintf("Cleaning %s-%s", s.Start, s.End),
			Quantity:   float64(minutes) / 60.0,
			Amount:     core.Money{Cents: divRoundHalfUp(minutes*rate, 60)},
		})
	}
	return core.ChargeBreakdown{
		Subtotal: core.Money{Cents: divRoundHalfUp(centMinutes, 60)},
		Quantity: float64(totalMinutes) / 60.0,
		Lines:    lines,
	}, nil
}

// Aggregate sums quantity x current catalog unit price over matched
// consumption events. Quantity is the total item count.
func (a *LinenChargeAggregator) Aggregate(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) (core.ChargeBreakdown, error) {
	events, err := a.ledger.LinenConsumption(ctx, propertyIDs, periodStart, periodEnd)
	if err != nil {
		return core.ChargeBreakdown{}, fmt.Errorf("list linen consumption: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].PropertyID != events[j].PropertyID {
			return events[i].PropertyID < events[j].PropertyID
		}
		return events[i].Date.Before(events[j].Date.Time)
	})

	var (
		subtotal   int64
		totalUnits int64
		lines      []core.ChargeLine
	)
	for _, e := range events {
		qty := e.Quantity
		if qty < 0 {
			qty = 0
		}
		price := e.UnitPrice.Cents
		if price < 0 {
			price = 0
		}
		amount := qty * price
		subtotal += amount
		totalUnits += qty
		lines = append(lines, core.ChargeLine{
			PropertyID: e.PropertyID,
			Date:       e.Date,
			Label:      e.ItemName,
			Quantity:   float64(qty),
			Amount:     core.Money{Cents: amount},
		})
	}
	return core.ChargeBreakdown{
		Subtotal: core.Money{Cents: subtotal},
		Quantity: float64(totalUnits),
		Lines:    lines,
	}, nil
}

// Aggregate sums the recorded amountSpent over matched replenishments.
// Unit prices play no role here; supply purchases carry real receipts.
// Quantity is the total item count and ReceiptRefs collects the
// distinct receipt references encountered.
func (a *SupplyChargeAggregator) Aggregate(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) (core.ChargeBreakdown, error) {
	events, err := a.ledger.SupplyReplenishments(ctx, propertyIDs, periodStart, periodEnd)
	if err != nil {
		return core.ChargeBreakdown{}, fmt.Errorf("list supply replenishments: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].PropertyID != events[j].PropertyID {
			return events[i].PropertyID < events[j].PropertyID
		}
		return events[i].Date.Before(events[j].Date.Time)
	})

	var (
		subtotal   int64
		totalUnits int64
		lines      []core.ChargeLine
		refs       []string
		seenRefs   = map[string]struct{}{}
	)
	for _, e := range events {
		qty := e.Quantity
		if qty < 0 {
			qty = 0
		}
		spent := e.AmountSpent.Cents
		if spent < 0 {
			spent = 0
		}
		subtotal += spent
		totalUnits += qty
		lines = append(lines, core.ChargeLine{
			PropertyID: e.PropertyID,
			Date:       e.Date,
			Label:      e.ItemName,
			Quantity:   float64(qty),
			Amount:     core.Money{Cents: spent},
		})
		if e.ReceiptRef != "" {
			if _, ok := seenRefs[e.ReceiptRef]; !ok {
				seenRefs[e.ReceiptRef] = struct{}{}
				refs = append(refs, e.ReceiptRef)
			}
		}
	}
	sort.Strings(refs)
	return core.ChargeBreakdown{
		Subtotal:    core.Money{Cents: subtotal},
		Quantity:    float64(totalUnits),
		Lines:       lines,
		ReceiptRefs: refs,
	}, nil
}

// divRoundHalfUp divides non-negative cents with half-up rounding.
func divRoundHalfUp(numerator, denominator int64) int64 {
	return (numerator + denominator/2) / denominator
}
