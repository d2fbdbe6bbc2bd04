package services

import (
	"context"
	"errors"
	"testing"

	"upkeep/internal/billing"
	"upkeep/internal/core"
	"upkeep/internal/storage/memory"
)

type fakePublisher struct {
	published []int64
	err       error
}

func (p *fakePublisher) PublishClosingCommitted(_ context.Context, closingID int64) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, closingID)
	return nil
}

func newServiceFixture(t *testing.T, pub ClosingPublisher) (*ClosingService, *memory.Ledger, int64) {
	t.Helper()
	ledger := memory.New()
	ownerID := ledger.AddOwner(core.Owner{Name: "Ana Souza"})
	propertyID := ledger.AddProperty(core.Property{OwnerID: ownerID, Address: "Rua das Flores 12"})

	start, _ := core.ParseClockTime("09:00")
	end, _ := core.ParseClockTime("12:30")
	ledger.AddCleaningSession(core.CleaningSession{
		PropertyID: propertyID,
		Date:       core.NewDate(2026, 3, 10),
		Start:      start,
		End:        end,
		HourlyRate: core.Money{Cents: 3000},
	})

	engine := billing.NewEngine(ledger, billing.NewManagementFeeCalculator(core.Money{}))
	return NewClosingService(engine, pub), ledger, propertyID
}

func TestClosingService_CommitPublishes(t *testing.T) {
	pub := &fakePublisher{}
	svc, _, propertyID := newServiceFixture(t, pub)
	ctx := context.Background()

	rec, err := svc.Commit(ctx, core.ScopeProperty, propertyID, core.NewDate(2026, 3, 1), core.NewDate(2026, 3, 31), "", "")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// 3.5h at 30.00/h plus the 50.00 fee.
	if rec.Total.Cents != 15500 {
		t.Errorf("Total = %d, want 15500", rec.Total.Cents)
	}
	if len(pub.published) != 1 || pub.published[0] != rec.ID {
		t.Errorf("published = %v, want [%d]", pub.published, rec.ID)
	}
}

func TestClosingService_PublishFailureDoesNotFailCommit(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, ledger, propertyID := newServiceFixture(t, pub)
	ctx := context.Background()

	rec, err := svc.Commit(ctx, core.ScopeProperty, propertyID, core.NewDate(2026, 3, 1), core.NewDate(2026, 3, 31), "", "")
	if err != nil {
		t.Fatalf("Commit should absorb publish failure, got %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("Commit returned zero id")
	}

	stored, err := ledger.ListClosings(ctx, billing.ClosingFilter{})
	if err != nil {
		t.Fatalf("ListClosings: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("stored closings = %d, want 1", len(stored))
	}
}

func TestClosingService_CommitFailureDoesNotPublish(t *testing.T) {
	pub := &fakePublisher{}
	svc, _, propertyID := newServiceFixture(t, pub)

	_, err := svc.Commit(context.Background(), core.ScopeProperty, propertyID,
		core.NewDate(2026, 3, 31), core.NewDate(2026, 3, 1), "", "")
	if !errors.Is(err, core.ErrInvalidRange) {
		t.Fatalf("Commit error = %v, want ErrInvalidRange", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published = %v, want none", pub.published)
	}
}

func TestClosingService_ListCachesAndInvalidates(t *testing.T) {
	svc, ledger, propertyID := newServiceFixture(t, nil)
	ctx := context.Background()
	filter := billing.ClosingFilter{ScopeType: core.ScopeProperty, ScopeID: propertyID}

	first, err := svc.ListClosings(ctx, filter)
	if err != nil {
		t.Fatalf("ListClosings: %v", err)
	}
	if len(first) != 0 {
		t.Fatalf("initial history = %d records, want 0", len(first))
	}

	// A direct ledger write bypasses invalidation, so the cached empty
	// list is still served.
	ledger.AppendClosing(ctx, core.ClosingRecord{ScopeType: core.ScopeProperty, ScopeID: propertyID})
	cached, _ := svc.ListClosings(ctx, filter)
	if len(cached) != 0 {
		t.Fatalf("cached history = %d records, want 0", len(cached))
	}

	// A commit through the service purges the cache.
	if _, err := svc.Commit(ctx, core.ScopeProperty, propertyID, core.NewDate(2026, 3, 1), core.NewDate(2026, 3, 31), "", ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	fresh, _ := svc.ListClosings(ctx, filter)
	if len(fresh) != 2 {
		t.Errorf("history after commit = %d records, want 2", len(fresh))
	}
}

func TestClosingService_Close(t *testing.T) {
	svc, _, _ := newServiceFixture(t, nil)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close with no closers: %v", err)
	}

	boom := errors.New("boom")
	svc.AddCloser(func() error { return nil })
	svc.AddCloser(func() error { return boom })
	if err := svc.Close(); err == nil {
		t.Error("Close should surface closer errors")
	}
}
