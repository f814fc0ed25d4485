// Package orderbook is the in-memory mirror of open and closed
// positions described in spec §4.4. Every mutation is applied to the
// in-memory tables first, then mirrored to the backend; a persistence
// failure is logged but never rolled back — the in-memory book is
// authoritative within a process lifetime and is reconciled from the
// backend only at startup via Load.
package orderbook

import (
	"sync"

	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/storage"
	"github.com/novalune/tradeengine/tools/log"
)

// Book is the live order book, guarded by a single mutex since the
// live path enforces a single-consumer event loop (spec §7) and tests
// may still exercise it concurrently.
type Book struct {
	mtx    sync.Mutex
	db     storage.Storage
	open   []model.OpenOrder
	closed []model.ClosedOrder
}

// New creates a Book backed by db. Call Load to reconcile from the
// backend before serving traffic.
func New(db storage.Storage) *Book {
	return &Book{db: db}
}

// Load reconciles the in-memory tables from the backend, used once at
// startup (spec §4.4).
func (b *Book) Load() error {
	open, closed, err := b.db.SyncTraderState()
	if err != nil {
		return err
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.open = open
	b.closed = closed
	return nil
}

// NewOpen appends order into the open table and persists it.
func (b *Book) NewOpen(order model.OpenOrder) {
	b.mtx.Lock()
	b.open = append(b.open, order)
	b.mtx.Unlock()

	if err := b.db.NewOpenOrder(order); err != nil {
		log.WithField("asset", order.Asset).Errorf("orderbook: persist new open order failed: %v", err)
	}
}

// NewClosed appends order into the closed table and persists it.
func (b *Book) NewClosed(order model.ClosedOrder) {
	b.mtx.Lock()
	b.closed = append(b.closed, order)
	b.mtx.Unlock()

	if err := b.db.NewClosedOrder(order); err != nil {
		log.WithField("asset", order.Asset).Errorf("orderbook: persist new closed order failed: %v", err)
	}
}

// EditOpen replaces the open order matching order.BuyOrderID, the
// unique key edit uses (spec §4.4, §9).
func (b *Book) EditOpen(order model.OpenOrder) {
	b.mtx.Lock()
	for i := range b.open {
		if b.open[i].BuyOrderID == order.BuyOrderID {
			b.open[i] = order
			break
		}
	}
	b.mtx.Unlock()

	if err := b.db.EditOpenOrder(order); err != nil {
		log.WithField("asset", order.Asset).Errorf("orderbook: persist edit open order failed: %v", err)
	}
}

// DeleteOpen removes every open order for asset. This key is
// intentionally broader than EditOpen's — see DESIGN.md for the
// decision to preserve rather than narrow this quirk from spec §9.
func (b *Book) DeleteOpen(asset string) {
	b.mtx.Lock()
	kept := b.open[:0]
	for _, o := range b.open {
		if o.Asset != asset {
			kept = append(kept, o)
		}
	}
	b.open = kept
	b.mtx.Unlock()

	if err := b.db.DeleteOpenOrders(asset); err != nil {
		log.WithField("asset", asset).Errorf("orderbook: persist delete open orders failed: %v", err)
	}
}

// SettleOpen moves order from the open table to the closed table, used
// when a sell confirms against a previously open position. Per spec
// §4.4 the OpenOrder is destroyed once its sell settles, so the backend
// row is deleted in addition to persisting the new closed row —
// otherwise SyncTraderState would reload the settled position as both
// open and closed after a restart.
func (b *Book) SettleOpen(closed model.ClosedOrder) {
	b.mtx.Lock()
	kept := b.open[:0]
	for _, o := range b.open {
		if o.BuyOrderID != closed.BuyOrderID {
			kept = append(kept, o)
		}
	}
	b.open = kept
	b.closed = append(b.closed, closed)
	b.mtx.Unlock()

	if err := b.db.NewClosedOrder(closed); err != nil {
		log.WithField("asset", closed.Asset).Errorf("orderbook: persist settle order failed: %v", err)
	}
	if err := b.db.DeleteOpenOrder(closed.BuyOrderID); err != nil {
		log.WithField("asset", closed.Asset).Errorf("orderbook: persist settle delete open order failed: %v", err)
	}
}

// QueryOpen returns every open order matching the conjunction of the
// supplied filters; an absent filter means wildcard (spec §4.4).
func (b *Book) QueryOpen(filters ...storage.OpenOrderFilter) []model.OpenOrder {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	snapshot := make([]model.OpenOrder, len(b.open))
	copy(snapshot, b.open)
	return storage.QueryOpen(snapshot, filters...)
}

// ClosedOrders returns a snapshot of every settled position, used by
// GetProfit and backtest reporting.
func (b *Book) ClosedOrders() []model.ClosedOrder {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	snapshot := make([]model.ClosedOrder, len(b.closed))
	copy(snapshot, b.closed)
	return snapshot
}

// OpenOrders returns a snapshot of every open position.
func (b *Book) OpenOrders() []model.OpenOrder {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	snapshot := make([]model.OpenOrder, len(b.open))
	copy(snapshot, b.open)
	return snapshot
}
