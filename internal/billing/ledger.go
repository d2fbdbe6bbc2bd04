// Package billing implements the aggregation and closing engine: scope
// resolution, the three charge aggregators, the management fee and the
// two-operation closing engine (preview / commit).
package billing

import (
	"context"

	"upkeep/internal/core"
)

// Ledger is the storage contract the engine is constructed with. All
// reads are scoped by a property-id set and an inclusive date range;
// the single write appends an immutable closing record.
type Ledger interface {
	OwnerExists(ctx context.Context, ownerID int64) (bool, error)
	PropertyExists(ctx context.Context, propertyID int64) (bool, error)
	PropertiesByOwner(ctx context.Context, ownerID int64) ([]int64, error)

	// CleaningSessions returns sessions for the property set with
	// periodStart <= date <= periodEnd.
	CleaningSessions(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.CleaningSession, error)

	// LinenConsumption returns consumption events with the current
	// catalog unit price resolved per item at read time.
	LinenConsumption(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.LinenConsumption, error)

	// SupplyReplenishments returns replenishment events with their
	// recorded purchase amounts.
	SupplyReplenishments(ctx context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.SupplyReplenishment, error)

	// AppendClosing persists a closing record and returns it with its
	// assigned identifier and creation timestamp.
	AppendClosing(ctx context.Context, rec core.ClosingRecord) (core.ClosingRecord, error)

	// ListClosings returns closing records, newest first, optionally
	// filtered by scope.
	ListClosings(ctx context.Context, filter ClosingFilter) ([]core.ClosingRecord, error)

	// InTx runs fn against a transactional view of the ledger. The
	// commit operation uses this so aggregation and the closing write
	// observe one consistent snapshot and fail as a unit.
	InTx(ctx context.Context, fn func(Ledger) error) error
}

// ClosingFilter narrows a closing-history query. Zero values match
// everything.
type ClosingFilter struct {
	ScopeType core.ScopeType
	ScopeID   int64
}
