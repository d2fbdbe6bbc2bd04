package billing

import (
	"context"
	"fmt"
	"sort"

	"upkeep/internal/core"
)

// ScopeResolver turns a closing target into the concrete set of
// property identifiers it covers.
type ScopeResolver struct {
	ledger Ledger
}

func NewScopeResolver(ledger Ledger) *ScopeResolver {
	return &ScopeResolver{ledger: ledger}
}

// Resolve returns the property ids covered by the scope, sorted
// ascending. A property scope yields a singleton set after an existence
// check; an owner scope yields all of the owner's properties and fails
// with core.ErrEmptyScope when the owner has none, since a fee over an
// empty scope would be misleading rather than simply zero.
func (r *ScopeResolver) Resolve(ctx context.Context, scopeType core.ScopeType, scopeID int64) ([]int64, error) {
	switch scopeType {
	case core.ScopeProperty:
		ok, err := r.ledger.PropertyExists(ctx, scopeID)
		if err != nil {
			return nil, fmt.Errorf("check property %d: %w", scopeID, err)
		}
		if !ok {
			return nil, fmt.Errorf("property %d: %w", scopeID, core.ErrPropertyNotFound)
		}
		return []int64{scopeID}, nil

	case core.ScopeOwner:
		ok, err := r.ledger.OwnerExists(ctx, scopeID)
		if err != nil {
			return nil, fmt.Errorf("check owner %d: %w", scopeID, err)
		}
		if !ok {
			return nil, fmt.Errorf("owner %d: %w", scopeID, core.ErrOwnerNotFound)
		}
		ids, err := r.ledger.PropertiesByOwner(ctx, scopeID)
		if err != nil {
			return nil, fmt.Errorf("list properties of owner %d: %w", scopeID, err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("owner %d: %w", scopeID, core.ErrEmptyScope)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidScopeType, scopeType)
	}
}
