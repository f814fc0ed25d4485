// Package storage defines the persistent backend adapter the order
// book and trader mirror every mutation to. Per spec §4.4, persistence
// failures are logged but never roll back the in-memory state — the
// in-memory order book is authoritative within a process lifetime and
// is reconciled from the backend only at startup via SyncTraderState.
package storage

import (
	"github.com/novalune/tradeengine/model"
)

// Bucket selects which order table a mutation targets.
type Bucket string

const (
	BucketOpen   Bucket = "open"
	BucketClosed Bucket = "closed"
)

// CandlePosition selects which end of the locally-persisted candle
// history GetLocalCandleTimestamp reports.
type CandlePosition string

const (
	PositionLatest CandlePosition = "latest"
	PositionOldest CandlePosition = "oldest"
)

// Storage is the persistent backend adapter the core depends on. A
// concrete implementation (SQL, Bunt, ...) is an external
// collaborator per spec §1; the core only ever talks to this
// interface.
type Storage interface {
	// SyncTraderState reloads every open and closed order recorded in
	// the backend, used to reconcile the in-memory order book at
	// startup (spec §4.4).
	SyncTraderState() (open []model.OpenOrder, closed []model.ClosedOrder, err error)

	// NewOpenOrder appends a freshly confirmed buy into the open table.
	NewOpenOrder(order model.OpenOrder) error
	// NewClosedOrder appends a freshly settled sell into the closed table.
	NewClosedOrder(order model.ClosedOrder) error
	// EditOpenOrder replaces the open order matching BuyOrderID — the
	// unique key edit uses, distinct from the broader asset key Delete
	// uses (spec §9's del_order / edit key mismatch, preserved here).
	EditOpenOrder(order model.OpenOrder) error
	// DeleteOpenOrders removes every open order for asset. This is
	// intentionally broader than EditOpenOrder's key: deleting by asset
	// removes *all* open positions for that asset, not just one. See
	// DESIGN.md for the documented decision to preserve this semantics
	// rather than silently narrow it to a single order.
	DeleteOpenOrders(asset string) error
	// DeleteOpenOrder removes the single open order matching buyOrderID,
	// the unique key a settled position is destroyed by (spec §4.4: an
	// OpenOrder is "destroyed when the sell settles").
	DeleteOpenOrder(buyOrderID int64) error

	// AddHistory persists completed candle-rows indexed by timestamp.
	AddHistory(rows map[int64]model.Row) error
	// GetLocalCandleTimestamp returns the locally-persisted candle
	// timestamp at the requested position, or 0 if none exists yet.
	GetLocalCandleTimestamp(position CandlePosition) (int64, error)

	// UpdateStatus persists trader status fields, currently just budget.
	UpdateStatus(budget float64) error
}

// OpenOrderFilter is a predicate over an OpenOrder used by QueryOpen.
// An absent field in a filter built with WithX means "wildcard" (spec
// §4.4's query_open semantics).
type OpenOrderFilter func(model.OpenOrder) bool

func WithAsset(asset string) OpenOrderFilter {
	return func(o model.OpenOrder) bool { return o.Asset == asset }
}

func WithBuyOrderID(id int64) OpenOrderFilter {
	return func(o model.OpenOrder) bool { return o.BuyOrderID == id }
}

func WithGID(gid int64) OpenOrderFilter {
	return func(o model.OpenOrder) bool { return o.GID == gid }
}

func WithPriceProfit(price float64) OpenOrderFilter {
	return func(o model.OpenOrder) bool { return o.PriceProfit == price }
}
