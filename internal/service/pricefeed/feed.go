// Package pricefeed keeps the latest mark price and book top per symbol and
// moves them from the exchange stream to the order-entry gateways.
package pricefeed

import (
	"sort"
	"sync"
	"time"

	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
)

// Update is a partial change to a snapshot. Absent fields keep their
// previous value.
type Update struct {
	Symbol    string
	MarkPrice decimal.NullDecimal
	BestBid   *entity.PriceLevel
	BestAsk   *entity.PriceLevel
	EventTime time.Time
}

func (u Update) Empty() bool {
	return !u.MarkPrice.Valid && u.BestBid == nil && u.BestAsk == nil
}

// Feed is an in-memory entity.PriceOracleFeed. Reads never wait on the
// upstream source.
type Feed struct {
	mu        sync.RWMutex
	snapshots map[string]entity.PriceSnapshot
	now       func() time.Time
}

func NewFeed() *Feed {
	return &Feed{
		snapshots: make(map[string]entity.PriceSnapshot),
		now:       time.Now,
	}
}

// Apply merges u into the symbol's snapshot and returns the result.
func (f *Feed) Apply(u Update) entity.PriceSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := f.snapshots[u.Symbol]
	snapshot.Symbol = u.Symbol
	if u.MarkPrice.Valid {
		snapshot.MarkPrice = u.MarkPrice
	}
	if u.BestBid != nil {
		snapshot.BestBid = copyLevel(u.BestBid)
	}
	if u.BestAsk != nil {
		snapshot.BestAsk = copyLevel(u.BestAsk)
	}

	snapshot.UpdatedAt = u.EventTime
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = f.now()
	}

	f.snapshots[u.Symbol] = snapshot
	return copySnapshot(snapshot)
}

// Replace stores a full snapshot unless a newer one is already held.
func (f *Feed) Replace(snapshot entity.PriceSnapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.snapshots[snapshot.Symbol]
	if ok && current.UpdatedAt.After(snapshot.UpdatedAt) {
		return false
	}

	f.snapshots[snapshot.Symbol] = copySnapshot(snapshot)
	return true
}

func (f *Feed) Snapshot(symbol string) entity.PriceSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snapshot, ok := f.snapshots[symbol]
	if !ok {
		return entity.PriceSnapshot{Symbol: symbol}
	}

	return copySnapshot(snapshot)
}

func (f *Feed) Symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	symbols := make([]string, 0, len(f.snapshots))
	for symbol := range f.snapshots {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	return symbols
}

func copySnapshot(s entity.PriceSnapshot) entity.PriceSnapshot {
	s.BestBid = copyLevel(s.BestBid)
	s.BestAsk = copyLevel(s.BestAsk)
	return s
}

func copyLevel(l *entity.PriceLevel) *entity.PriceLevel {
	if l == nil {
		return nil
	}

	level := *l
	return &level
}
