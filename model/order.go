package model

import (
	"fmt"
	"time"
)

// SideType is the direction of an order: buy or sell.
type SideType string

const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// ExchangeOrderStatus mirrors the subset of exchange order statuses the
// trader cares about when reconciling order_closed confirmations.
type ExchangeOrderStatus string

const (
	StatusNew       ExchangeOrderStatus = "NEW"
	StatusPartial   ExchangeOrderStatus = "PARTIALLY_FILLED"
	StatusExecuted  ExchangeOrderStatus = "EXECUTED"
	StatusCanceled  ExchangeOrderStatus = "CANCELED"
	StatusRejected  ExchangeOrderStatus = "REJECTED"
)

// OpenOrder is a buy placed and confirmed, awaiting its paired
// profit-target sell to fill (spec §3). (asset, gid) and BuyOrderID are
// both unique keys over the live open-order set.
type OpenOrder struct {
	Asset           string
	BuyOrderID      int64 `gorm:"primaryKey"`
	GID             int64
	SellOrderID     int64 // 0 until the sell has been submitted
	PriceBuy        float64
	PriceProfit     float64
	BuyVolumeFiat   float64
	BuyVolumeCrypto float64
	FeeBuyFiat      float64
	TimestampBuy    time.Time
}

// HasSell reports whether a sell order has been submitted for this position.
func (o OpenOrder) HasSell() bool { return o.SellOrderID != 0 }

// ClosedOrder is an OpenOrder whose paired sell has settled, carrying
// the realized sell-side fields and profit (spec §3).
type ClosedOrder struct {
	OpenOrder        `gorm:"embedded"`
	PriceSell        float64
	SellVolumeFiat   float64
	SellVolumeCrypto float64
	FeeSellFiat      float64
	ProfitFiat       float64
	TimestampSell    time.Time
}

func (o OpenOrder) String() string {
	return fmt.Sprintf("[OPEN] %s gid=%d buy=%d price_buy=%.8f price_profit=%.8f qty=%.8f",
		o.Asset, o.GID, o.BuyOrderID, o.PriceBuy, o.PriceProfit, o.BuyVolumeCrypto)
}

func (o ClosedOrder) String() string {
	return fmt.Sprintf("[CLOSED] %s gid=%d buy=%d sell=%d profit_fiat=%.2f",
		o.Asset, o.GID, o.BuyOrderID, o.SellOrderID, o.ProfitFiat)
}

// Balance is the wallet balance of a single currency.
type Balance struct {
	Currency         string
	Balance          float64
	BalanceAvailable *float64 // nil when the exchange only reports a snapshot balance
}

// Available returns BalanceAvailable when present, else Balance — the
// rule spec §4.5 uses to size the budget.
func (b Balance) Available() float64 {
	if b.BalanceAvailable != nil {
		return *b.BalanceAvailable
	}
	return b.Balance
}

// WalletSnapshot maps currency to its balance, as delivered by the
// exchange's private wallet_snapshot / wallet_update events.
type WalletSnapshot map[string]Balance

// Account is the exchange account, exposed to callers needing total
// equity or per-asset balances.
type Account struct {
	Wallets WalletSnapshot
}
