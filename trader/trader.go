// Package trader implements the core order-lifecycle decision logic
// described in spec §4.5, grounded on the Python original's
// tradeforce Trader class (fts_trader.py): sell-then-buy sequencing and
// the gid counter seeded at 10^9. Settled positions leave the order book
// through orderbook.Book.SettleOpen, keyed by BuyOrderID; the asset-keyed
// orderbook.Book.DeleteOpen is not called from this package.
package trader

import (
	"context"
	"math"

	"github.com/novalune/tradeengine/config"
	"github.com/novalune/tradeengine/feeutil"
	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/orderbook"
	"github.com/novalune/tradeengine/service"
	"github.com/novalune/tradeengine/storage"
	"github.com/novalune/tradeengine/tools/log"
)

// volatilityBuffer avoids "insufficient balance" rejects caused by
// float rounding between locally-tracked and exchange-reported
// crypto balances (spec §4.5).
const volatilityBuffer = 0.00000002

// initialGID matches the Python original's self.gid = 10**9.
const initialGID = 1_000_000_000

// BuyOption is a candidate buy decision produced by a Strategy (see
// DefaultStrategy); Trader only carries out the submission and
// bookkeeping spec §4.5 assigns to its core.
type BuyOption struct {
	Asset       string
	Price       float64
	AmountFiat  float64
	PriceProfit float64
}

// SellOption is a candidate sell decision for an already-open position.
type SellOption struct {
	Order model.OpenOrder
}

// Strategy decides which open positions to sell and which new assets
// to buy on each completed tick. The trading engine depends on this
// seam rather than hard-coding a single strategy.
type Strategy interface {
	CheckSellOptions(book *orderbook.Book, prices model.Row, timestampMs int64) []SellOption
	CheckBuyOptions(book *orderbook.Book, prices model.Row, timestampMs int64) []BuyOption
}

// Trader is the core order-lifecycle engine.
type Trader struct {
	cfg      *config.Config
	book     *orderbook.Book
	db       storage.Storage
	exchange service.Broker
	notifier service.Notifier
	strategy Strategy
	nextGID  int64
	minSizes map[string]float64

	// onBuySubmitted, if set, is invoked synchronously after a buy
	// order is accepted by the exchange but before its order_closed
	// confirmation can arrive. The WS coordinator wires this to
	// RegisterPendingBuy so buy_confirmed can recover PriceProfit,
	// which the exchange's event payload does not carry.
	onBuySubmitted func(gid int64, priceProfit float64)
}

// OnBuySubmitted registers a hook called with (gid, priceProfit)
// immediately after a buy order is accepted by the exchange.
func (t *Trader) OnBuySubmitted(hook func(gid int64, priceProfit float64)) {
	t.onBuySubmitted = hook
}

// New wires a Trader against its collaborators. FinalizeTradingConfig
// must be called once before the first Update.
func New(cfg *config.Config, book *orderbook.Book, db storage.Storage, exchange service.Broker, notifier service.Notifier, strategy Strategy) *Trader {
	return &Trader{
		cfg:      cfg,
		book:     book,
		db:       db,
		exchange: exchange,
		notifier: notifier,
		strategy: strategy,
		nextGID:  initialGID,
		minSizes: make(map[string]float64),
	}
}

// allocateGID returns the next group id, matching the Python
// original's monotonically incrementing self.gid.
func (t *Trader) allocateGID() int64 {
	gid := t.nextGID
	t.nextGID++
	return gid
}

// SetBudget finds the base-currency wallet — preferring
// BalanceAvailable when present, else Balance — and assigns it to
// config.Budget, persisting the change (spec §4.5).
func (t *Trader) SetBudget(wallets model.WalletSnapshot) {
	balance, ok := wallets[t.cfg.BaseCurrency]
	if !ok {
		return
	}

	t.cfg.Budget = balance.Available()
	if err := t.db.UpdateStatus(t.cfg.Budget); err != nil {
		log.Errorf("trader: persist budget failed: %v", err)
	}
}

// GetMinOrderSizes fetches and caches the exchange's minimum tradable
// amount per symbol.
func (t *Trader) GetMinOrderSizes(ctx context.Context) error {
	sizes, err := t.exchange.GetMinOrderSizes(ctx)
	if err != nil {
		return err
	}
	t.minSizes = sizes
	return nil
}

// Update runs one completed-candle tick: sell options are evaluated
// and submitted before buy options, freeing budget before attempting
// new buys (spec §4.5 — strict ordering is a correctness requirement,
// not an optimization).
func (t *Trader) Update(ctx context.Context, prices model.Row, timestampMs int64) {
	if prices.Empty() {
		log.Warn("trader: empty candle row at tick boundary, skipping update")
		return
	}

	sellOptions := t.strategy.CheckSellOptions(t.book, prices, timestampMs)
	for _, opt := range sellOptions {
		t.SubmitSellOrder(ctx, opt.Order)
	}

	buyOptions := t.strategy.CheckBuyOptions(t.book, prices, timestampMs)
	for _, opt := range buyOptions {
		t.submitBuyOrder(ctx, opt)
	}
}

// SubmitSellOrder places a sell at order.PriceProfit for
// order.BuyVolumeCrypto minus the volatility buffer (spec §4.5).
func (t *Trader) SubmitSellOrder(ctx context.Context, order model.OpenOrder) {
	amount := order.BuyVolumeCrypto - volatilityBuffer

	err := t.exchange.Order(model.SideTypeSell, order.Asset, order.PriceProfit, amount, order.GID)
	if err != nil {
		log.WithField("asset", order.Asset).Errorf("trader: sell order submission failed: %v", err)
		if t.notifier != nil {
			t.notifier.OnError(err)
		}
		return
	}
}

func (t *Trader) submitBuyOrder(ctx context.Context, opt BuyOption) {
	if min, ok := t.minSizes[opt.Asset]; ok {
		amount := opt.AmountFiat / opt.Price
		if amount < min {
			log.WithField("asset", opt.Asset).Warnf("trader: buy amount %.8f below exchange minimum %.8f, skipping", amount, min)
			return
		}
	}

	amount := opt.AmountFiat / opt.Price
	gid := t.allocateGID()

	err := t.exchange.Order(model.SideTypeBuy, opt.Asset, opt.Price, amount, gid)
	if err != nil {
		log.WithField("asset", opt.Asset).Errorf("trader: buy order submission failed: %v", err)
		if t.notifier != nil {
			t.notifier.OnError(err)
		}
		return
	}

	if t.onBuySubmitted != nil {
		t.onBuySubmitted(gid, opt.PriceProfit)
	}
}

// CheckSoldOrders fetches exchange order history and, for every
// locally-known sell whose exchange status is EXECUTED, settles the
// matching open order into the closed table (spec §4.5).
func (t *Trader) CheckSoldOrders(ctx context.Context) error {
	open := t.book.OpenOrders()

	sellOrderIDs := make(map[int64]model.OpenOrder)
	assets := make(map[string]struct{})
	for _, o := range open {
		if o.HasSell() {
			sellOrderIDs[o.SellOrderID] = o
			assets[o.Asset] = struct{}{}
		}
	}
	if len(assets) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(assets))
	for asset := range assets {
		symbols = append(symbols, asset)
	}

	history, err := t.exchange.GetOrderHistory(ctx, symbols)
	if err != nil {
		return err
	}

	for _, record := range history {
		if record.Status != model.StatusExecuted {
			continue
		}
		open, ok := sellOrderIDs[record.OrderID]
		if !ok {
			continue
		}

		t.SellConfirmed(open, record.PriceAvg)
	}
	return nil
}

// SellConfirmed settles open into the closed table at priceAvg,
// computing the maker-fee proceeds and profit (spec §4.1, §4.6's
// order_closed sell handler). Exposed so the WS coordinator can call
// it directly off a push order_closed event, independent of the
// CheckSoldOrders poll.
func (t *Trader) SellConfirmed(open model.OpenOrder, priceAvg float64) {
	volumeAfterFee, _, feeFiat := feeutil.CalcFee(open.BuyVolumeCrypto, t.cfg.MakerFee, t.cfg.TakerFee, priceAvg, feeutil.SideSell)
	sellVolumeFiat := round2(volumeAfterFee * priceAvg)
	profit := round2(sellVolumeFiat - open.BuyVolumeFiat)

	closed := model.ClosedOrder{
		OpenOrder:        open,
		PriceSell:        priceAvg,
		SellVolumeFiat:   sellVolumeFiat,
		SellVolumeCrypto: volumeAfterFee,
		FeeSellFiat:      feeFiat,
		ProfitFiat:       profit,
	}

	t.book.SettleOpen(closed)
	if t.notifier != nil {
		t.notifier.OnClosedOrder(closed)
	}
}

// GetProfit sums ProfitFiat across every closed order, rounded to 2
// decimals (spec §4.5).
func (t *Trader) GetProfit() float64 {
	var total float64
	for _, c := range t.book.ClosedOrders() {
		total += c.ProfitFiat
	}
	return round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
