package billing

import (
	"errors"

	"upkeep/internal/core"
)

// DefaultFeeBaseRateCents is the fixed per-property management fee the
// system has always charged per closing period (R$ 50,00).
const DefaultFeeBaseRateCents int64 = 5000

var errNonPositivePropertyCount = errors.New("property count must be positive")

// ManagementFeeCalculator computes the fixed periodic oversight fee as
// a pure function of the number of properties in scope. No I/O.
type ManagementFeeCalculator struct {
	baseRate core.Money
}

func NewManagementFeeCalculator(baseRate core.Money) *ManagementFeeCalculator {
	if baseRate.Cents <= 0 {
		baseRate = core.Money{Cents: DefaultFeeBaseRateCents}
	}
	return &ManagementFeeCalculator{baseRate: baseRate}
}

// Fee returns baseRate x propertyCount. A non-positive count is
// rejected; scope resolution guarantees it never happens in practice.
func (c *ManagementFeeCalculator) Fee(propertyCount int) (core.Money, error) {
	if propertyCount <= 0 {
		return core.Money{}, errNonPositivePropertyCount
	}
	return c.baseRate.MulInt(int64(propertyCount)), nil
}

// BaseRate exposes the configured per-property rate.
func (c *ManagementFeeCalculator) BaseRate() core.Money {
	return c.baseRate
}
