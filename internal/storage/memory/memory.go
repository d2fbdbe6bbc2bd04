// Package memory provides an in-process ledger used by the memory
// backend and by engine tests. Data lives only for the process
// lifetime.
package memory

import (
	"context"
	"fmt"
	"sync"

	"upkeep/internal/billing"
	"upkeep/internal/core"
)

// Ledger implements billing.Ledger over plain maps and slices.
type Ledger struct {
	mu   sync.Mutex
	txMu sync.Mutex

	owners      map[int64]core.Owner
	properties  map[int64]core.Property
	linenItems  map[int64]core.LinenItem
	supplyItems map[int64]core.SupplyItem

	cleanings []core.CleaningSession
	linen     []core.LinenConsumption
	supplies  []core.SupplyReplenishment
	closings  []core.ClosingRecord

	nextID int64
}

var _ billing.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{
		owners:      make(map[int64]core.Owner),
		properties:  make(map[int64]core.Property),
		linenItems:  make(map[int64]core.LinenItem),
		supplyItems: make(map[int64]core.SupplyItem),
	}
}

func (l *Ledger) id() int64 {
	l.nextID++
	return l.nextID
}

// AddOwner registers an owner and returns its id.
func (l *Ledger) AddOwner(o core.Owner) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	o.ID = l.id()
	l.owners[o.ID] = o
	return o.ID
}

// AddProperty registers a property and returns its id.
func (l *Ledger) AddProperty(p core.Property) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	p.ID = l.id()
	l.properties[p.ID] = p
	return p.ID
}

// AddLinenItem registers a linen catalog item and returns its id.
func (l *Ledger) AddLinenItem(it core.LinenItem) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	it.ID = l.id()
	l.linenItems[it.ID] = it
	return it.ID
}

// SetLinenItemPrice updates the live catalog price of a linen item.
func (l *Ledger) SetLinenItemPrice(itemID int64, price core.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if it, ok := l.linenItems[itemID]; ok {
		it.UnitPrice = price
		l.linenItems[itemID] = it
	}
}

// AddSupplyItem registers a supply catalog item and returns its id.
func (l *Ledger) AddSupplyItem(it core.SupplyItem) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	it.ID = l.id()
	l.supplyItems[it.ID] = it
	return it.ID
}

// AddCleaningSession appends a cleaning session event.
func (l *Ledger) AddCleaningSession(s core.CleaningSession) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.ID = l.id()
	l.cleanings = append(l.cleanings, s)
	return s.ID
}

// AddLinenConsumption appends a linen consumption event. The unit
// price is not stored with the event; it is resolved at read time.
func (l *Ledger) AddLinenConsumption(e core.LinenConsumption) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ID = l.id()
	l.linen = append(l.linen, e)
	return e.ID
}

// AddSupplyReplenishment appends a supply replenishment event.
func (l *Ledger) AddSupplyReplenishment(e core.SupplyReplenishment) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ID = l.id()
	l.supplies = append(l.supplies, e)
	return e.ID
}

func (l *Ledger) OwnerExists(_ context.Context, ownerID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.owners[ownerID]
	return ok, nil
}

func (l *Ledger) PropertyExists(_ context.Context, propertyID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.properties[propertyID]
	return ok, nil
}

func (l *Ledger) PropertiesByOwner(_ context.Context, ownerID int64) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []int64
	for _, p := range l.properties {
		if p.OwnerID == ownerID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (l *Ledger) CleaningSessions(_ context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.CleaningSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	want := idSet(propertyIDs)
	var out []core.CleaningSession
	for _, s := range l.cleanings {
		if _, ok := want[s.PropertyID]; ok && inRange(s.Date, periodStart, periodEnd) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *Ledger) LinenConsumption(_ context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.LinenConsumption, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	want := idSet(propertyIDs)
	var out []core.LinenConsumption
	for _, e := range l.linen {
		if _, ok := want[e.PropertyID]; !ok || !inRange(e.Date, periodStart, periodEnd) {
			continue
		}
		// Name and unit price come from the live catalog, never a snapshot.
		if it, ok := l.linenItems[e.ItemID]; ok {
			e.ItemName = it.Name
			e.UnitPrice = it.UnitPrice
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *Ledger) SupplyReplenishments(_ context.Context, propertyIDs []int64, periodStart, periodEnd core.Date) ([]core.SupplyReplenishment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	want := idSet(propertyIDs)
	var out []core.SupplyReplenishment
	for _, e := range l.supplies {
		if _, ok := want[e.PropertyID]; !ok || !inRange(e.Date, periodStart, periodEnd) {
			continue
		}
		if it, ok := l.supplyItems[e.ItemID]; ok {
			e.ItemName = it.Name
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *Ledger) AppendClosing(_ context.Context, rec core.ClosingRecord) (core.ClosingRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec.ID = l.id()
	l.closings = append(l.closings, rec)
	return rec, nil
}

func (l *Ledger) ListClosings(_ context.Context, filter billing.ClosingFilter) ([]core.ClosingRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.ClosingRecord
	for i := len(l.closings) - 1; i >= 0; i-- {
		rec := l.closings[i]
		if filter.ScopeType != "" && rec.ScopeType != filter.ScopeType {
			continue
		}
		if filter.ScopeID != 0 && rec.ScopeID != filter.ScopeID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// InTx serializes transactions against each other. The closing write
// is the final operation inside commit, so any earlier failure leaves
// the ledger untouched; that is all the atomicity the in-process
// double needs.
func (l *Ledger) InTx(_ context.Context, fn func(billing.Ledger) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	if err := fn(l); err != nil {
		return fmt.Errorf("memory tx: %w", err)
	}
	return nil
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func inRange(d, start, end core.Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}
