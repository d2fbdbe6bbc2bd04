package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"upkeep/internal/amqp"
	"upkeep/internal/core"
	"upkeep/internal/sheets/memory"
)

type fakeClosingStore struct {
	records  []core.ClosingRecord
	mirrored map[int64]bool
	markErr  error
}

func newFakeClosingStore(records ...core.ClosingRecord) *fakeClosingStore {
	return &fakeClosingStore{
		records:  records,
		mirrored: make(map[int64]bool),
	}
}

func (s *fakeClosingStore) GetClosing(_ context.Context, id int64) (core.ClosingRecord, error) {
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return core.ClosingRecord{}, errors.New("closing not found")
}

func (s *fakeClosingStore) ListUnmirroredClosings(_ context.Context, limit int) ([]core.ClosingRecord, error) {
	var out []core.ClosingRecord
	for _, rec := range s.records {
		if len(out) == limit {
			break
		}
		if !s.mirrored[rec.ID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeClosingStore) MarkClosingMirrored(_ context.Context, id int64) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.mirrored[id] = true
	return nil
}

func testClosing(id int64) core.ClosingRecord {
	return core.ClosingRecord{
		ID:          id,
		ScopeType:   core.ScopeProperty,
		ScopeID:     1,
		PeriodStart: core.NewDate(2026, 3, 1),
		PeriodEnd:   core.NewDate(2026, 3, 31),
		Total:       core.Money{Cents: 24500},
		CreatedAt:   time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestMirrorWorker_ProcessUnmirrored(t *testing.T) {
	store := newFakeClosingStore(testClosing(1), testClosing(2))
	mirror := memory.New()
	w := NewMirrorWorker(store, mirror, 10)
	ctx := context.Background()

	if err := w.ProcessUnmirrored(ctx); err != nil {
		t.Fatalf("ProcessUnmirrored: %v", err)
	}
	if rows := mirror.Rows(); len(rows) != 2 {
		t.Fatalf("mirrored rows = %d, want 2", len(rows))
	}
	if !store.mirrored[1] || !store.mirrored[2] {
		t.Errorf("mirrored flags = %v, want both set", store.mirrored)
	}

	// Everything is stamped; a second pass writes nothing.
	if err := w.ProcessUnmirrored(ctx); err != nil {
		t.Fatalf("second ProcessUnmirrored: %v", err)
	}
	if rows := mirror.Rows(); len(rows) != 2 {
		t.Errorf("rows after second pass = %d, want 2", len(rows))
	}
}

func TestMirrorWorker_ProcessUnmirroredRespectsBatchSize(t *testing.T) {
	store := newFakeClosingStore(testClosing(1), testClosing(2), testClosing(3))
	mirror := memory.New()
	w := NewMirrorWorker(store, mirror, 2)

	if err := w.ProcessUnmirrored(context.Background()); err != nil {
		t.Fatalf("ProcessUnmirrored: %v", err)
	}
	if rows := mirror.Rows(); len(rows) != 2 {
		t.Errorf("mirrored rows = %d, want batch of 2", len(rows))
	}
}

func TestMirrorWorker_MirrorFailureLeavesRecordUnmirrored(t *testing.T) {
	store := newFakeClosingStore(testClosing(1))
	mirror := memory.New()
	mirror.FailWith(errors.New("sheets unavailable"))
	w := NewMirrorWorker(store, mirror, 10)
	ctx := context.Background()

	// The reconcile pass skips failures and keeps going.
	if err := w.ProcessUnmirrored(ctx); err != nil {
		t.Fatalf("ProcessUnmirrored with failing mirror: %v", err)
	}
	if len(mirror.Rows()) != 0 {
		t.Fatal("failing mirror should hold no rows")
	}
	if store.mirrored[1] {
		t.Fatal("record must stay unmirrored when the append fails")
	}

	// Once the mirror recovers the record is picked up again.
	mirror.FailWith(nil)
	if err := w.ProcessUnmirrored(ctx); err != nil {
		t.Fatalf("ProcessUnmirrored after recovery: %v", err)
	}
	if !store.mirrored[1] {
		t.Error("record should be mirrored after recovery")
	}
}

func TestMirrorWorker_MarkFailureMayDuplicateRow(t *testing.T) {
	boom := errors.New("stamp failed")
	store := newFakeClosingStore(testClosing(1))
	store.markErr = boom
	mirror := memory.New()
	w := NewMirrorWorker(store, mirror, 10)
	ctx := context.Background()

	err := w.HandleClosingMessage(ctx, &amqp.ClosingCommittedMessage{ClosingID: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("HandleClosingMessage = %v, want stamp failure", err)
	}
	// The row was written before the stamp failed.
	if len(mirror.Rows()) != 1 {
		t.Fatalf("mirrored rows = %d, want 1", len(mirror.Rows()))
	}

	// The next reconcile re-mirrors the unstamped record; a duplicate
	// row is the accepted cost of never losing one.
	store.markErr = nil
	if err := w.ProcessUnmirrored(ctx); err != nil {
		t.Fatalf("ProcessUnmirrored: %v", err)
	}
	if len(mirror.Rows()) != 2 {
		t.Errorf("mirrored rows = %d, want 2 (duplicate)", len(mirror.Rows()))
	}
	if !store.mirrored[1] {
		t.Error("record should be stamped after reconcile")
	}
}

func TestMirrorWorker_HandleClosingMessage(t *testing.T) {
	store := newFakeClosingStore(testClosing(7))
	mirror := memory.New()
	w := NewMirrorWorker(store, mirror, 10)
	ctx := context.Background()

	if err := w.HandleClosingMessage(ctx, &amqp.ClosingCommittedMessage{ClosingID: 7}); err != nil {
		t.Fatalf("HandleClosingMessage: %v", err)
	}
	rows := mirror.Rows()
	if len(rows) != 1 || rows[0].ID != 7 {
		t.Fatalf("mirrored rows = %+v, want record 7", rows)
	}
	if !store.mirrored[7] {
		t.Error("record should be stamped")
	}

	if err := w.HandleClosingMessage(ctx, &amqp.ClosingCommittedMessage{ClosingID: 99}); err == nil {
		t.Error("HandleClosingMessage with unknown id should fail")
	}
}
