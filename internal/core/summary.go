package core

// ChargeLine is one event reduced to a report line. Lines are ordered
// by property then date so repeated runs render identically.
type ChargeLine struct {
	PropertyID int64
	Date       Date
	Label      string
	Quantity   float64
	Amount     Money
}

// ChargeBreakdown is the result of one charge aggregator: the rounded
// subtotal, the driving quantity (hours or item count) and the lines.
type ChargeBreakdown struct {
	Subtotal    Money
	Quantity    float64
	Lines       []ChargeLine
	ReceiptRefs []string
}

// ClosingSummary is the ephemeral preview of a bill before commitment.
type ClosingSummary struct {
	ScopeType     ScopeType
	ScopeID       int64
	PeriodStart   Date
	PeriodEnd     Date
	PropertyCount int

	Cleaning ChargeBreakdown
	Linen    ChargeBreakdown
	Supply   ChargeBreakdown
	Fee      Money

	GrandTotal Money
}
