// Package service defines the collaborator interfaces the trading core
// depends on: the exchange's public/private event feeds, its REST
// surface, and outbound notifications (spec §6). Concrete
// implementations live in package exchange and notification/telegram.
package service

import (
	"context"

	"github.com/novalune/tradeengine/model"
)

// Exchange combines the public market-data feed and the private/REST
// trading surface into one collaborator, grounded on the teacher's
// service.Exchange composition of Broker+Feeder.
type Exchange interface {
	Feeder
	Broker
}

// PublicEvent is one event delivered on the exchange's public WS
// channel (spec §6): connected, new_candle, subscribed, unsubscribed,
// error, status_update.
type PublicEvent struct {
	Type   string
	Candle model.Candle
	Err    error
}

// PrivateEvent is one event delivered on the exchange's private WS
// channel: wallet_snapshot, wallet_update, order_confirmed, order_closed.
type PrivateEvent struct {
	Type           string
	Wallets        model.WalletSnapshot
	OrderID        int64
	GID            int64
	Symbol         string
	AmountOrig     float64
	AmountFilled   float64
	PriceAvg       float64
	TimestampMs    int64
	ExchangeStatus model.ExchangeOrderStatus
}

// Feeder subscribes to the exchange's public candle stream and fetches
// its REST candle history.
type Feeder interface {
	// SubscribeCandles opens the public WS subscription for symbol at
	// the configured interval; the returned channel is closed when ctx
	// is cancelled.
	SubscribeCandles(ctx context.Context, symbol, interval string) (<-chan PublicEvent, error)
	// GetLatestRemoteCandleTimestamp returns the exchange's most recent
	// completed candle timestamp, minusDelta intervals back.
	GetLatestRemoteCandleTimestamp(ctx context.Context, symbol, interval string, minusDelta int) (int64, error)
	// CandleHistory fetches completed candles in [start, end] ms.
	CandleHistory(ctx context.Context, symbol, interval string, start, end int64) ([]model.Candle, error)
}

// Broker places orders and reports account state over the exchange's
// private channel and REST surface.
type Broker interface {
	// SubscribePrivate opens the private WS subscription for account
	// events; the returned channel is closed when ctx is cancelled.
	SubscribePrivate(ctx context.Context) (<-chan PrivateEvent, error)
	// Order submits a limit order and returns ok on exchange
	// acknowledgment (spec §6's order(side, {asset, price, amount, gid})).
	Order(side model.SideType, asset string, price, amount float64, gid int64) error
	// GetOrderHistory fetches every order the exchange recalls for each
	// of symbols, used by check_sold_orders to reconcile local sells.
	GetOrderHistory(ctx context.Context, symbols []string) ([]OrderRecord, error)
	// GetMinOrderSizes fetches the exchange's minimum tradable amount
	// per symbol.
	GetMinOrderSizes(ctx context.Context) (map[string]float64, error)
	// Account reports the current wallet snapshot.
	Account(ctx context.Context) (model.Account, error)
}

// OrderRecord is one entry from GetOrderHistory.
type OrderRecord struct {
	OrderID  int64
	GID      int64
	Symbol   string
	Status   model.ExchangeOrderStatus
	PriceAvg float64
}

// Notifier reports trading activity and errors to an operator channel.
type Notifier interface {
	Notify(message string)
	OnOpenOrder(order model.OpenOrder)
	OnClosedOrder(order model.ClosedOrder)
	OnError(err error)
}

// Telegram is a Notifier that also manages its own bot lifecycle.
type Telegram interface {
	Notifier
	Start()
	Stop()
}
