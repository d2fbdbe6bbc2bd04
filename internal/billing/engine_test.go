package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"upkeep/internal/billing"
	"upkeep/internal/core"
	"upkeep/internal/storage/memory"
)

func newEngine(led billing.Ledger, opts ...billing.Option) *billing.Engine {
	fee := billing.NewManagementFeeCalculator(core.Money{Cents: 5000})
	return billing.NewEngine(led, fee, opts...)
}

func mustClock(t *testing.T, s string) core.ClockTime {
	t.Helper()
	ct, err := core.ParseClockTime(s)
	if err != nil {
		t.Fatalf("parse clock %q: %v", s, err)
	}
	return ct
}

// Scenario A: one property, one 3.5h session at rate 30.00.
func TestPreviewCleaningSubtotal(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner, Address: "Rua A 10"})
	led.AddCleaningSession(core.CleaningSession{
		PropertyID: prop,
		Date:       core.NewDate(2026, 8, 10),
		Start:      mustClock(t, "09:00"),
		End:        mustClock(t, "12:30"),
		HourlyRate: core.Money{Cents: 3000},
	})

	sum, err := newEngine(led).Preview(context.Background(), core.ScopeProperty, prop,
		core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if sum.Cleaning.Subtotal.Cents != 10500 {
		t.Errorf("cleaning subtotal = %d, want 10500", sum.Cleaning.Subtotal.Cents)
	}
	if sum.Cleaning.Quantity != 3.5 {
		t.Errorf("cleaning hours = %v, want 3.5", sum.Cleaning.Quantity)
	}
}

// Scenario B: cleaning 105.00 + linen 2x45.00 + fee 50.00 = 245.00.
func TestPreviewGrandTotal(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner, Address: "Rua A 10"})
	item := led.AddLinenItem(core.LinenItem{Name: "Lençol Solteiro", UnitPrice: core.Money{Cents: 4500}})
	led.AddCleaningSession(core.CleaningSession{
		PropertyID: prop,
		Date:       core.NewDate(2026, 8, 10),
		Start:      mustClock(t, "09:00"),
		End:        mustClock(t, "12:30"),
		HourlyRate: core.Money{Cents: 3000},
	})
	led.AddLinenConsumption(core.LinenConsumption{
		PropertyID: prop,
		ItemID:     item,
		Date:       core.NewDate(2026, 8, 12),
		Quantity:   2,
	})

	sum, err := newEngine(led).Preview(context.Background(), core.ScopeProperty, prop,
		core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if sum.Linen.Subtotal.Cents != 9000 {
		t.Errorf("linen subtotal = %d, want 9000", sum.Linen.Subtotal.Cents)
	}
	if sum.Fee.Cents != 5000 {
		t.Errorf("fee = %d, want 5000", sum.Fee.Cents)
	}
	if sum.GrandTotal.Cents != 24500 {
		t.Errorf("grand total = %d, want 24500", sum.GrandTotal.Cents)
	}
	// The arithmetic contract, exactly.
	want := sum.Cleaning.Subtotal.Cents + sum.Linen.Subtotal.Cents + sum.Supply.Subtotal.Cents + sum.Fee.Cents
	if sum.GrandTotal.Cents != want {
		t.Errorf("grand total %d != sum of parts %d", sum.GrandTotal.Cents, want)
	}
}

// Scenario C: owner with two idle properties still pays the fee twice.
func TestPreviewOwnerScopeFeeOnly(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Bruno"})
	led.AddProperty(core.Property{OwnerID: owner, Address: "Rua B 1"})
	led.AddProperty(core.Property{OwnerID: owner, Address: "Rua B 2"})

	sum, err := newEngine(led).Preview(context.Background(), core.ScopeOwner, owner,
		core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if sum.Cleaning.Subtotal.Cents != 0 || sum.Linen.Subtotal.Cents != 0 || sum.Supply.Subtotal.Cents != 0 {
		t.Errorf("expected zero subtotals, got %d/%d/%d",
			sum.Cleaning.Subtotal.Cents, sum.Linen.Subtotal.Cents, sum.Supply.Subtotal.Cents)
	}
	if sum.Fee.Cents != 10000 {
		t.Errorf("fee = %d, want 10000", sum.Fee.Cents)
	}
	if sum.GrandTotal.Cents != 10000 {
		t.Errorf("grand total = %d, want 10000", sum.GrandTotal.Cents)
	}
	if sum.PropertyCount != 2 {
		t.Errorf("property count = %d, want 2", sum.PropertyCount)
	}
}

// Scenario D: owner with zero properties.
func TestPreviewEmptyScope(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Carla"})

	_, err := newEngine(led).Preview(context.Background(), core.ScopeOwner, owner,
		core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31))
	if !errors.Is(err, core.ErrEmptyScope) {
		t.Fatalf("expected ErrEmptyScope, got %v", err)
	}
}

// Scenario E: inverted period is rejected before the store is touched.
func TestCommitInvalidRange(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner})

	eng := newEngine(led)
	_, err := eng.Commit(context.Background(), core.ScopeProperty, prop,
		core.NewDate(2026, 8, 31), core.NewDate(2026, 8, 1), "", "")
	if !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	recs, err := eng.ListClosings(context.Background(), billing.ClosingFilter{})
	if err != nil {
		t.Fatalf("list closings: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no closings written, got %d", len(recs))
	}
}

func TestPreviewUnknownScopes(t *testing.T) {
	led := memory.New()
	eng := newEngine(led)
	ctx := context.Background()
	start, end := core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31)

	if _, err := eng.Preview(ctx, core.ScopeProperty, 99, start, end); !errors.Is(err, core.ErrPropertyNotFound) {
		t.Errorf("expected ErrPropertyNotFound, got %v", err)
	}
	if _, err := eng.Preview(ctx, core.ScopeOwner, 99, start, end); !errors.Is(err, core.ErrOwnerNotFound) {
		t.Errorf("expected ErrOwnerNotFound, got %v", err)
	}
	if _, err := eng.Preview(ctx, core.ScopeType("building"), 1, start, end); !errors.Is(err, core.ErrInvalidScopeType) {
		t.Errorf("expected ErrInvalidScopeType, got %v", err)
	}
}

// Events dated exactly on the period bounds are included; one day
// outside either bound is excluded.
func TestBoundaryInclusion(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner})
	item := led.AddLinenItem(core.LinenItem{Name: "Toalha de Banho", UnitPrice: core.Money{Cents: 3500}})

	for _, day := range []int{9, 10, 20, 21} {
		led.AddLinenConsumption(core.LinenConsumption{
			PropertyID: prop,
			ItemID:     item,
			Date:       core.NewDate(2026, 8, day),
			Quantity:   1,
		})
	}

	sum, err := newEngine(led).Preview(context.Background(), core.ScopeProperty, prop,
		core.NewDate(2026, 8, 10), core.NewDate(2026, 8, 20))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	// Only the events on the 10th and the 20th.
	if sum.Linen.Subtotal.Cents != 7000 {
		t.Errorf("linen subtotal = %d, want 7000", sum.Linen.Subtotal.Cents)
	}
	if len(sum.Linen.Lines) != 2 {
		t.Errorf("line count = %d, want 2", len(sum.Linen.Lines))
	}
}

// Owner-scope total equals the sum of per-property previews over the
// same period.
func TestOwnerScopeAdditivity(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Bruno"})
	p1 := led.AddProperty(core.Property{OwnerID: owner, Address: "Rua B 1"})
	p2 := led.AddProperty(core.Property{OwnerID: owner, Address: "Rua B 2"})
	item := led.AddLinenItem(core.LinenItem{Name: "Edredom", UnitPrice: core.Money{Cents: 12000}})
	sup := led.AddSupplyItem(core.SupplyItem{Name: "Café", UnitPrice: core.Money{Cents: 1500}})

	led.AddCleaningSession(core.CleaningSession{
		PropertyID: p1, Date: core.NewDate(2026, 8, 3),
		Start: mustClock(t, "08:00"), End: mustClock(t, "11:00"),
		HourlyRate: core.Money{Cents: 3000},
	})
	led.AddLinenConsumption(core.LinenConsumption{
		PropertyID: p2, ItemID: item, Date: core.NewDate(2026, 8, 5), Quantity: 1,
	})
	led.AddSupplyReplenishment(core.SupplyReplenishment{
		PropertyID: p2, ItemID: sup, Date: core.NewDate(2026, 8, 6),
		Quantity: 3, AmountSpent: core.Money{Cents: 4200}, ReceiptRef: "receipts/cafe.jpg",
	})

	eng := newEngine(led)
	ctx := context.Background()
	start, end := core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31)

	ownerSum, err := eng.Preview(ctx, core.ScopeOwner, owner, start, end)
	if err != nil {
		t.Fatalf("owner preview: %v", err)
	}
	sum1, err := eng.Preview(ctx, core.ScopeProperty, p1, start, end)
	if err != nil {
		t.Fatalf("p1 preview: %v", err)
	}
	sum2, err := eng.Preview(ctx, core.ScopeProperty, p2, start, end)
	if err != nil {
		t.Fatalf("p2 preview: %v", err)
	}
	if got, want := ownerSum.GrandTotal.Cents, sum1.GrandTotal.Cents+sum2.GrandTotal.Cents; got != want {
		t.Errorf("owner total %d != sum of property totals %d", got, want)
	}
}

func TestPreviewIdempotent(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner})
	led.AddCleaningSession(core.CleaningSession{
		PropertyID: prop, Date: core.NewDate(2026, 8, 10),
		Start: mustClock(t, "10:00"), End: mustClock(t, "10:50"),
		HourlyRate: core.Money{Cents: 3333},
	})

	eng := newEngine(led)
	ctx := context.Background()
	start, end := core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31)

	first, err := eng.Preview(ctx, core.ScopeProperty, prop, start, end)
	if err != nil {
		t.Fatalf("first preview: %v", err)
	}
	second, err := eng.Preview(ctx, core.ScopeProperty, prop, start, end)
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if first.GrandTotal != second.GrandTotal || first.Cleaning.Subtotal != second.Cleaning.Subtotal {
		t.Errorf("previews differ: %+v vs %+v", first, second)
	}
	// 50min at 33.33/h is 2777.5 cent-minutes/60: rounded once, half-up.
	if first.Cleaning.Subtotal.Cents != 2778 {
		t.Errorf("cleaning subtotal = %d, want 2778", first.Cleaning.Subtotal.Cents)
	}
}

// Linen is priced at read time: a catalog change moves the total of a
// not-yet-closed period.
func TestLinenPriceAtReadTime(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner})
	item := led.AddLinenItem(core.LinenItem{Name: "Lençol King", UnitPrice: core.Money{Cents: 8500}})
	led.AddLinenConsumption(core.LinenConsumption{
		PropertyID: prop, ItemID: item, Date: core.NewDate(2026, 8, 10), Quantity: 2,
	})

	eng := newEngine(led)
	ctx := context.Background()
	start, end := core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31)

	before, err := eng.Preview(ctx, core.ScopeProperty, prop, start, end)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if before.Linen.Subtotal.Cents != 17000 {
		t.Errorf("linen subtotal = %d, want 17000", before.Linen.Subtotal.Cents)
	}

	led.SetLinenItemPrice(item, core.Money{Cents: 9000})
	after, err := eng.Preview(ctx, core.ScopeProperty, prop, start, end)
	if err != nil {
		t.Fatalf("preview after price change: %v", err)
	}
	if after.Linen.Subtotal.Cents != 18000 {
		t.Errorf("linen subtotal after price change = %d, want 18000", after.Linen.Subtotal.Cents)
	}
}

func TestCommitStoresPreviewTotal(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner})
	sup := led.AddSupplyItem(core.SupplyItem{Name: "Sabonete", UnitPrice: core.Money{Cents: 150}})
	led.AddSupplyReplenishment(core.SupplyReplenishment{
		PropertyID: prop, ItemID: sup, Date: core.NewDate(2026, 8, 4),
		Quantity: 10, AmountSpent: core.Money{Cents: 1380}, ReceiptRef: "receipts/0042.jpg",
	})

	fixed := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	eng := newEngine(led, billing.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	start, end := core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31)

	preview, err := eng.Preview(ctx, core.ScopeProperty, prop, start, end)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	rec, err := eng.Commit(ctx, core.ScopeProperty, prop, start, end, "August closing", "receipts/0042.jpg")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if rec.ID == 0 {
		t.Error("committed record has no id")
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Errorf("created at = %v, want %v", rec.CreatedAt, fixed)
	}
	if rec.Total != preview.GrandTotal {
		t.Errorf("stored total %d != preview total %d", rec.Total.Cents, preview.GrandTotal.Cents)
	}

	recs, err := eng.ListClosings(ctx, billing.ClosingFilter{ScopeType: core.ScopeProperty, ScopeID: prop})
	if err != nil {
		t.Fatalf("list closings: %v", err)
	}
	if len(recs) != 1 || recs[0].Total != preview.GrandTotal {
		t.Fatalf("history mismatch: %+v", recs)
	}
	if recs[0].Notes != "August closing" || recs[0].ReceiptRef != "receipts/0042.jpg" {
		t.Errorf("notes/receipt not persisted: %+v", recs[0])
	}
}

func TestCommitEmptyScopeLeavesNoRecord(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Carla"})

	eng := newEngine(led)
	ctx := context.Background()
	_, err := eng.Commit(ctx, core.ScopeOwner, owner,
		core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31), "", "")
	if !errors.Is(err, core.ErrEmptyScope) {
		t.Fatalf("expected ErrEmptyScope, got %v", err)
	}
	recs, _ := eng.ListClosings(ctx, billing.ClosingFilter{})
	if len(recs) != 0 {
		t.Fatalf("expected no closings, got %d", len(recs))
	}
}

func TestOverlapGuard(t *testing.T) {
	newLedger := func(t *testing.T) (*memory.Ledger, int64) {
		led := memory.New()
		owner := led.AddOwner(core.Owner{Name: "Ana"})
		prop := led.AddProperty(core.Property{OwnerID: owner})
		return led, prop
	}
	ctx := context.Background()

	t.Run("guard off allows overlapping closings", func(t *testing.T) {
		led, prop := newLedger(t)
		eng := newEngine(led)
		for i := 0; i < 2; i++ {
			if _, err := eng.Commit(ctx, core.ScopeProperty, prop,
				core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31), "", ""); err != nil {
				t.Fatalf("commit %d: %v", i, err)
			}
		}
	})

	t.Run("guard on rejects overlap", func(t *testing.T) {
		led, prop := newLedger(t)
		eng := newEngine(led, billing.WithOverlapGuard())
		if _, err := eng.Commit(ctx, core.ScopeProperty, prop,
			core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31), "", ""); err != nil {
			t.Fatalf("first commit: %v", err)
		}
		_, err := eng.Commit(ctx, core.ScopeProperty, prop,
			core.NewDate(2026, 8, 15), core.NewDate(2026, 9, 15), "", "")
		if !errors.Is(err, core.ErrOverlappingClosing) {
			t.Fatalf("expected ErrOverlappingClosing, got %v", err)
		}
	})

	t.Run("guard on allows adjacent periods", func(t *testing.T) {
		led, prop := newLedger(t)
		eng := newEngine(led, billing.WithOverlapGuard())
		if _, err := eng.Commit(ctx, core.ScopeProperty, prop,
			core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31), "", ""); err != nil {
			t.Fatalf("first commit: %v", err)
		}
		if _, err := eng.Commit(ctx, core.ScopeProperty, prop,
			core.NewDate(2026, 9, 1), core.NewDate(2026, 9, 30), "", ""); err != nil {
			t.Fatalf("adjacent commit: %v", err)
		}
	})
}

// Recorded garbage must not corrupt totals: negative quantities and
// amounts are floored to zero while summing.
func TestNegativeValuesFlooredToZero(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner})
	item := led.AddLinenItem(core.LinenItem{Name: "Cobertor", UnitPrice: core.Money{Cents: 9000}})
	sup := led.AddSupplyItem(core.SupplyItem{Name: "Shampoo", UnitPrice: core.Money{Cents: 500}})

	led.AddLinenConsumption(core.LinenConsumption{
		PropertyID: prop, ItemID: item, Date: core.NewDate(2026, 8, 10), Quantity: -3,
	})
	led.AddSupplyReplenishment(core.SupplyReplenishment{
		PropertyID: prop, ItemID: sup, Date: core.NewDate(2026, 8, 11),
		Quantity: 2, AmountSpent: core.Money{Cents: -700},
	})

	sum, err := newEngine(led).Preview(context.Background(), core.ScopeProperty, prop,
		core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if sum.Linen.Subtotal.Cents != 0 {
		t.Errorf("linen subtotal = %d, want 0", sum.Linen.Subtotal.Cents)
	}
	if sum.Supply.Subtotal.Cents != 0 {
		t.Errorf("supply subtotal = %d, want 0", sum.Supply.Subtotal.Cents)
	}
	if sum.GrandTotal.Cents != 5000 { // fee only
		t.Errorf("grand total = %d, want 5000", sum.GrandTotal.Cents)
	}
}

// Lines come back ordered by property then date for reproducible
// report rendering.
func TestLineOrdering(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Bruno"})
	p1 := led.AddProperty(core.Property{OwnerID: owner})
	p2 := led.AddProperty(core.Property{OwnerID: owner})
	item := led.AddLinenItem(core.LinenItem{Name: "Toalha de Rosto", UnitPrice: core.Money{Cents: 2500}})

	// Inserted deliberately out of order.
	led.AddLinenConsumption(core.LinenConsumption{PropertyID: p2, ItemID: item, Date: core.NewDate(2026, 8, 20), Quantity: 1})
	led.AddLinenConsumption(core.LinenConsumption{PropertyID: p1, ItemID: item, Date: core.NewDate(2026, 8, 15), Quantity: 1})
	led.AddLinenConsumption(core.LinenConsumption{PropertyID: p1, ItemID: item, Date: core.NewDate(2026, 8, 2), Quantity: 1})

	sum, err := newEngine(led).Preview(context.Background(), core.ScopeOwner, owner,
		core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	lines := sum.Linen.Lines
	if len(lines) != 3 {
		t.Fatalf("line count = %d, want 3", len(lines))
	}
	for i := 1; i < len(lines); i++ {
		prev, cur := lines[i-1], lines[i]
		if prev.PropertyID > cur.PropertyID ||
			(prev.PropertyID == cur.PropertyID && prev.Date.After(cur.Date.Time)) {
			t.Fatalf("lines out of order at %d: %+v then %+v", i, prev, cur)
		}
	}
}

func TestSupplyReceiptRefsCollected(t *testing.T) {
	led := memory.New()
	owner := led.AddOwner(core.Owner{Name: "Ana"})
	prop := led.AddProperty(core.Property{OwnerID: owner})
	sup := led.AddSupplyItem(core.SupplyItem{Name: "Papel Higiênico", UnitPrice: core.Money{Cents: 50}})

	for _, ref := range []string{"receipts/b.jpg", "receipts/a.jpg", "receipts/b.jpg", ""} {
		led.AddSupplyReplenishment(core.SupplyReplenishment{
			PropertyID: prop, ItemID: sup, Date: core.NewDate(2026, 8, 5),
			Quantity: 1, AmountSpent: core.Money{Cents: 100}, ReceiptRef: ref,
		})
	}

	sum, err := newEngine(led).Preview(context.Background(), core.ScopeProperty, prop,
		core.NewDate(2026, 8, 1), core.NewDate(2026, 8, 31))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	want := []string{"receipts/a.jpg", "receipts/b.jpg"}
	if len(sum.Supply.ReceiptRefs) != len(want) {
		t.Fatalf("receipt refs = %v, want %v", sum.Supply.ReceiptRefs, want)
	}
	for i := range want {
		if sum.Supply.ReceiptRefs[i] != want[i] {
			t.Fatalf("receipt refs = %v, want %v", sum.Supply.ReceiptRefs, want)
		}
	}
}
