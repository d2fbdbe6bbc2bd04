package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ScopeType selects the unit being billed: a single property or an
// owner, meaning all of that owner's properties.
type ScopeType string

const (
	ScopeProperty ScopeType = "property"
	ScopeOwner    ScopeType = "owner"
)

// ParseScopeType validates and converts a raw scope type string.
func ParseScopeType(s string) (ScopeType, error) {
	switch ScopeType(strings.TrimSpace(s)) {
	case ScopeProperty:
		return ScopeProperty, nil
	case ScopeOwner:
		return ScopeOwner, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScopeType, s)
	}
}

// Valid reports whether the scope type is one of the two known cases.
func (t ScopeType) Valid() bool {
	return t == ScopeProperty || t == ScopeOwner
}

type (
	// Date is a calendar day without a time component.
	Date struct {
		time.Time
	}

	// ClockTime is a wall-clock time of day in minutes since midnight.
	ClockTime int

	// Owner is a property owner. Read-only input to the billing engine.
	Owner struct {
		ID      int64
		Name    string
		Phone   string
		Email   string
		Address string
	}

	// Property belongs to exactly one owner. Room counts exist for the
	// catalog surface; the billing engine ignores them.
	Property struct {
		ID        int64
		OwnerID   int64
		Address   string
		Bedrooms  int
		Bathrooms int
	}

	// LinenItem is a catalog entry for linen (sheets, towels, ...).
	// UnitPrice is the live catalog price, looked up at aggregation
	// time rather than snapshotted on consumption.
	LinenItem struct {
		ID        int64
		Name      string
		UnitPrice Money
	}

	// SupplyItem is a catalog entry for consumable supplies.
	SupplyItem struct {
		ID        int64
		Name      string
		UnitPrice Money
	}

	// CleaningSession records time-based labor at one property.
	CleaningSession struct {
		ID         int64
		PropertyID int64
		Date       Date
		Start      ClockTime
		End        ClockTime
		HourlyRate Money
		Notes      string
	}

	// LinenConsumption records linen usage at one property. UnitPrice
	// is resolved from the catalog when the event is read.
	LinenConsumption struct {
		ID         int64
		PropertyID int64
		ItemID     int64
		ItemName   string
		Date       Date
		Quantity   int64
		UnitPrice  Money
	}

	// SupplyReplenishment records a real purchase for one property.
	// AmountSpent is the recorded cost, not derived from unit price.
	SupplyReplenishment struct {
		ID          int64
		PropertyID  int64
		ItemID      int64
		ItemName    string
		Date        Date
		Quantity    int64
		AmountSpent Money
		ReceiptRef  string
	}

	// ClosingRecord is the immutable financial record produced by a
	// committed closing. It is never updated or deleted.
	ClosingRecord struct {
		ID          int64
		ScopeType   ScopeType
		ScopeID     int64
		PeriodStart Date
		PeriodEnd   Date
		Total       Money
		Notes       string
		ReceiptRef  string
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidClockTime   = errors.New("invalid clock time")
	ErrInvalidScopeType   = errors.New("invalid scope type")
	ErrInvalidRange       = errors.New("period start after period end")
	ErrOwnerNotFound      = errors.New("owner not found")
	ErrPropertyNotFound   = errors.New("property not found")
	ErrEmptyScope         = errors.New("owner has no properties")
	ErrOverlappingClosing = errors.New("closing overlaps an existing closing for the same scope")
)

// NewDate creates a Date from year, month, day (UTC midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Validate rejects zero dates.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ParseClockTime parses an HH:MM wall-clock string.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// String renders the clock time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// DurationMinutes is the session length in minutes. When the recorded
// end precedes the start the duration is zero, not an error.
func (s CleaningSession) DurationMinutes() int64 {
	d := int64(s.End) - int64(s.Start)
	if d < 0 {
		return 0
	}
	return d
}

// DurationHours is the session length in fractional hours.
func (s CleaningSession) DurationHours() float64 {
	return float64(s.DurationMinutes()) / 60.0
}

// Validate checks the fields the data-entry surface must have filled.
func (s CleaningSession) Validate() error {
	if s.PropertyID <= 0 {
		return ErrPropertyNotFound
	}
	if err := s.Date.Validate(); err != nil {
		return err
	}
	return s.HourlyRate.Validate()
}

// Validate checks quantity and date of a linen consumption event.
func (e LinenConsumption) Validate() error {
	if e.PropertyID <= 0 {
		return ErrPropertyNotFound
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Quantity < 1 {
		return errors.New("quantity must be at least 1")
	}
	return nil
}

// Validate checks quantity, date and recorded spend of a replenishment.
func (e SupplyReplenishment) Validate() error {
	if e.PropertyID <= 0 {
		return ErrPropertyNotFound
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Quantity < 1 {
		return errors.New("quantity must be at least 1")
	}
	return e.AmountSpent.Validate()
}
