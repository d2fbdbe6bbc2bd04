// Package worker mirrors committed closings from SQLite to the
// configured spreadsheet mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"upkeep/internal/amqp"
	"upkeep/internal/core"
	"upkeep/internal/metrics"
	"upkeep/internal/sheets"
)

// ClosingStore is the slice of the ledger store the worker reads and
// stamps. Satisfied by storage.SQLiteRepository.
type ClosingStore interface {
	GetClosing(ctx context.Context, id int64) (core.ClosingRecord, error)
	ListUnmirroredClosings(ctx context.Context, limit int) ([]core.ClosingRecord, error)
	MarkClosingMirrored(ctx context.Context, id int64) error
}

// MirrorWorker copies committed closing records to the mirror
// destination and stamps them as mirrored. The database stays the
// source of truth; the mirror is derived and rebuildable.
type MirrorWorker struct {
	store     ClosingStore
	mirror    sheets.ClosingMirror
	batchSize int
}

func NewMirrorWorker(store ClosingStore, mirror sheets.ClosingMirror, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleClosingMessage processes one committed-closing notification.
func (w *MirrorWorker) HandleClosingMessage(ctx context.Context, msg *amqp.ClosingCommittedMessage) error {
	slog.InfoContext(ctx, "Processing closing message", "closing_id", msg.ClosingID)

	rec, err := w.store.GetClosing(ctx, msg.ClosingID)
	if err != nil {
		return fmt.Errorf("get closing from storage: %w", err)
	}

	return w.mirrorClosing(ctx, rec.ID, rec)
}

// ProcessUnmirrored mirrors closings whose notification was lost.
// This is the backup path; the AMQP message is the fast path.
func (w *MirrorWorker) ProcessUnmirrored(ctx context.Context) error {
	pending, err := w.store.ListUnmirroredClosings(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unmirrored closings: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing unmirrored closings", "count", len(pending))

	for _, rec := range pending {
		if err := w.mirrorClosing(ctx, rec.ID, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror closing",
				"closing_id", rec.ID,
				"error", err)
			continue
		}
	}
	return nil
}

func (w *MirrorWorker) mirrorClosing(ctx context.Context, id int64, rec core.ClosingRecord) error {
	start := time.Now()
	rowRef, err := w.mirror.AppendClosing(ctx, rec)
	if err != nil {
		metrics.ObserveMirror("error", time.Since(start))
		return fmt.Errorf("append closing to mirror: %w", err)
	}
	metrics.ObserveMirror("success", time.Since(start))

	if err := w.store.MarkClosingMirrored(ctx, id); err != nil {
		// The row was written; next reconcile pass may duplicate it.
		// Duplicates in the mirror are acceptable, lost rows are not.
		return fmt.Errorf("mark closing mirrored: %w", err)
	}

	slog.InfoContext(ctx, "Closing mirrored",
		"closing_id", id,
		"sheets_ref", rowRef)
	return nil
}
