// Package services orchestrates the billing engine with the AMQP
// publisher and the closing-history cache.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"upkeep/internal/billing"
	"upkeep/internal/cache"
	"upkeep/internal/core"
	"upkeep/internal/metrics"
)

// ClosingPublisher notifies downstream consumers about a committed
// closing. Satisfied by the AMQP client.
type ClosingPublisher interface {
	PublishClosingCommitted(ctx context.Context, closingID int64) error
}

// ClosingService wraps the billing engine. Commits are durable before
// the publish happens; a publish failure is logged and absorbed, the
// mirror worker's reconcile pass covers the lost message.
type ClosingService struct {
	engine    *billing.Engine
	publisher ClosingPublisher
	listCache *cache.LRUCache[[]core.ClosingRecord]
	cacheMgr  *cache.Manager
	closers   []func() error
}

func NewClosingService(engine *billing.Engine, publisher ClosingPublisher) *ClosingService {
	listCache := cache.NewLRUCache[[]core.ClosingRecord](64, 30*time.Second)

	mgr := cache.NewManager()
	mgr.Register(listCache)
	mgr.StartCleanup(time.Minute)

	return &ClosingService{
		engine:    engine,
		publisher: publisher,
		listCache: listCache,
		cacheMgr:  mgr,
	}
}

// AddCloser registers a resource to release on Close.
func (s *ClosingService) AddCloser(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Preview computes a closing summary without writing anything.
func (s *ClosingService) Preview(ctx context.Context, scopeType core.ScopeType, scopeID int64, periodStart, periodEnd core.Date) (core.ClosingSummary, error) {
	return s.engine.Preview(ctx, scopeType, scopeID, periodStart, periodEnd)
}

// Commit closes the period, invalidates the history cache and
// publishes the committed-closing notification.
func (s *ClosingService) Commit(ctx context.Context, scopeType core.ScopeType, scopeID int64, periodStart, periodEnd core.Date, notes, receiptRef string) (core.ClosingRecord, error) {
	rec, err := s.engine.Commit(ctx, scopeType, scopeID, periodStart, periodEnd, notes, receiptRef)
	if err != nil {
		return core.ClosingRecord{}, err
	}

	s.listCache.Purge()

	if s.publisher != nil {
		if err := s.publisher.PublishClosingCommitted(ctx, rec.ID); err != nil {
			metrics.IncPublish("error")
			slog.ErrorContext(ctx, "Failed to publish closing message",
				"closing_id", rec.ID, "error", err)
		} else {
			metrics.IncPublish("success")
		}
	}

	return rec, nil
}

// ListClosings returns the closing history through a short-lived cache.
func (s *ClosingService) ListClosings(ctx context.Context, filter billing.ClosingFilter) ([]core.ClosingRecord, error) {
	key := fmt.Sprintf("%s:%d", filter.ScopeType, filter.ScopeID)
	if cached, ok := s.listCache.Get(key); ok {
		return cached, nil
	}

	records, err := s.engine.ListClosings(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.listCache.Set(key, records)
	return records, nil
}

// Close stops the cache cleanup loop and releases registered resources.
func (s *ClosingService) Close() error {
	s.cacheMgr.Stop()

	var errs []error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close closing service: %v", errs)
	}
	return nil
}
