// Package coordinator drives the WS tick state machine described in
// spec §4.6: it consumes the exchange's public and private event
// streams, advances the candle cache, detects and patches history
// gaps, and fires exactly one trader tick per completed-candle
// boundary. Grounded on the teacher's per-feed consumer goroutine
// pattern (order/feed.go, exchange/exchange.go), generalized from a
// pub/sub fan-out to the single-consumer event loop spec §5 requires.
package coordinator

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/novalune/tradeengine/candlecache"
	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/orderbook"
	"github.com/novalune/tradeengine/service"
	"github.com/novalune/tradeengine/storage"
	"github.com/novalune/tradeengine/syncdetect"
	"github.com/novalune/tradeengine/tools/log"
	"github.com/novalune/tradeengine/trader"
)

// State is one stage of the tick state machine (spec §4.6).
type State int

const (
	StateConnecting State = iota
	StateSubscribed
	StatePrimed
	StateTicking
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StatePrimed:
		return "PRIMED"
	case StateTicking:
		return "TICKING"
	default:
		return "UNKNOWN"
	}
}

// candleCacheCapacity matches spec §5's resource policy of 20 rows.
const candleCacheCapacity = 20

// raceWindowCapacity matches spec §5's 3-entry race-prevention list.
const raceWindowCapacity = 3

// Coordinator is the tick state machine bound to one exchange, candle
// cache, trader and backend.
type Coordinator struct {
	exchange     service.Feeder
	broker       service.Broker
	db           storage.Storage
	book         *orderbook.Book
	trader       *trader.Trader
	cache        *candlecache.Cache
	race         *candlecache.FIFORing
	interval     int64
	baseCurrency string

	state            State
	lastCompletedTs  int64
	privateConnected bool
	historySyncPatch bool
	isSimulation     bool
	pendingBuys      map[int64]PendingBuy
}

// New creates a Coordinator. intervalMs is the candle-cache grid
// spacing used for sync detection (spec §4.3).
func New(exchange service.Feeder, broker service.Broker, db storage.Storage, book *orderbook.Book, t *trader.Trader, intervalMs int64, baseCurrency string, isSimulation bool) *Coordinator {
	return &Coordinator{
		exchange:     exchange,
		broker:       broker,
		db:           db,
		book:         book,
		trader:       t,
		cache:        candlecache.New(candleCacheCapacity),
		race:         candlecache.NewFIFORing(raceWindowCapacity),
		interval:     intervalMs,
		baseCurrency: baseCurrency,
		state:        StateConnecting,
		isSimulation: isSimulation,
	}
}

// State reports the coordinator's current tick-machine state.
func (co *Coordinator) State() State { return co.state }

// Start transitions CONNECTING → SUBSCRIBED and begins consuming
// events from the public channel until ctx is cancelled.
func (co *Coordinator) Start(ctx context.Context, symbol, interval string) error {
	events, err := co.exchange.SubscribeCandles(ctx, symbol, interval)
	if err != nil {
		return err
	}
	co.state = StateSubscribed

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			co.handlePublicEvent(ctx, event)
		}
	}
}

// NotifyPrivateConnected marks the private channel as connected, so
// fireTick knows to call check_sold_orders on each firing tick.
func (co *Coordinator) NotifyPrivateConnected() { co.privateConnected = true }

func (co *Coordinator) handlePublicEvent(ctx context.Context, event service.PublicEvent) {
	switch event.Type {
	case "new_candle":
		co.onNewCandle(ctx, event.Candle)
	case "error":
		log.Errorf("coordinator: public stream error: %v", event.Err)
	}
}

// onNewCandle implements spec §4.6 steps 1-4.
func (co *Coordinator) onNewCandle(ctx context.Context, c model.Candle) {
	co.cache.Put(c.TimestMs, c)

	if co.state == StateSubscribed && co.cache.Len() >= 2 {
		timestamps := co.cache.Timestamps()
		co.lastCompletedTs = timestamps[len(timestamps)-1]
		co.state = StatePrimed
		co.runHistorySync(ctx, c.Symbol)
		co.state = StateTicking
	}

	if co.race.Contains(c.TimestMs) {
		return
	}
	if c.TimestMs <= co.lastCompletedTs {
		return
	}
	if co.state != StateTicking {
		return
	}

	co.fireTick(ctx, c.TimestMs)
}

func (co *Coordinator) runHistorySync(ctx context.Context, symbol string) {
	localLatest, err := co.db.GetLocalCandleTimestamp(storage.PositionLatest)
	if err != nil {
		log.Errorf("coordinator: read local candle timestamp failed: %v", err)
		return
	}

	missing := syncdetect.MissingRange(localLatest, co.lastCompletedTs, co.interval)
	needed, lo, hi := syncdetect.NeedsPatch(missing)
	if !needed {
		return
	}

	co.historySyncPatch = true
	defer func() { co.historySyncPatch = false }()

	candles, err := co.exchange.CandleHistory(ctx, symbol, "", lo, hi)
	if err != nil {
		log.Errorf("coordinator: history patch fetch failed: %v", err)
		return
	}

	rows := make(map[int64]model.Row, len(candles))
	for _, candle := range candles {
		row, ok := rows[candle.TimestMs]
		if !ok {
			row = model.Row{}
			rows[candle.TimestMs] = row
		}
		row[candle.Symbol] = candle
	}
	if err := co.db.AddHistory(rows); err != nil {
		log.Errorf("coordinator: history patch persist failed: %v", err)
	}
}

// fireTick implements spec §4.6 step 4: exactly one tick per
// completed-candle boundary.
func (co *Coordinator) fireTick(ctx context.Context, ts int64) {
	co.race.Push(ts)

	row := co.cache.Row(co.lastCompletedTs)
	if !row.Empty() {
		if err := co.db.AddHistory(map[int64]model.Row{co.lastCompletedTs: row}); err != nil {
			log.Errorf("coordinator: persist candle row failed: %v", err)
		}
	} else {
		log.Warnf("coordinator: empty candle row at ts=%d, skipping persistence", co.lastCompletedTs)
	}

	previousTs := co.lastCompletedTs
	co.lastCompletedTs = ts

	if co.privateConnected {
		if err := co.trader.CheckSoldOrders(ctx); err != nil {
			log.Errorf("coordinator: check_sold_orders failed: %v", err)
		}
	}

	if !co.historySyncPatch && !co.isSimulation {
		co.trader.Update(ctx, co.cache.Row(previousTs), previousTs)
		printTickSummary(ts, co.trader.GetProfit(), len(co.book.OpenOrders()))
	}

	co.cache.Prune()
}

// printTickSummary renders the per-tick profit/open-orders line as a
// single-row table, grounded on the teacher's tablewriter-based summary
// in ninjabot.go (Summary()), reused here for the trader's ticker log
// line per spec §11's tablewriter wiring.
func printTickSummary(ts int64, profit float64, openOrders int) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Tick", "Profit", "Open Orders"})
	table.Append([]string{
		strconv.FormatInt(ts, 10),
		strconv.FormatFloat(profit, 'f', 2, 64),
		strconv.Itoa(openOrders),
	})
	table.Render()
}

// StartPrivate subscribes to the exchange's private channel and
// consumes wallet/order events until ctx is cancelled (spec §4.6).
func (co *Coordinator) StartPrivate(ctx context.Context) error {
	events, err := co.broker.SubscribePrivate(ctx)
	if err != nil {
		return err
	}
	co.NotifyPrivateConnected()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			co.handlePrivateEvent(ctx, event)
		}
	}
}

func (co *Coordinator) handlePrivateEvent(ctx context.Context, event service.PrivateEvent) {
	switch event.Type {
	case "wallet_snapshot":
		co.trader.SetBudget(event.Wallets)
		if err := co.book.Load(); err != nil {
			log.Errorf("coordinator: db_sync_trader_state failed: %v", err)
		}
		if err := co.trader.GetMinOrderSizes(ctx); err != nil {
			log.Errorf("coordinator: get_min_order_sizes failed: %v", err)
		}

	case "wallet_update":
		if _, ok := event.Wallets[co.baseCurrency]; ok {
			co.trader.SetBudget(event.Wallets)
		}

	case "order_confirmed":
		if event.AmountOrig >= 0 {
			return
		}
		matches := co.book.QueryOpen(storage.WithAsset(event.Symbol), storage.WithGID(event.GID))
		if len(matches) == 0 {
			log.WithField("symbol", event.Symbol).Error("coordinator: order_confirmed sell with no matching open order, dropped")
			return
		}
		order := matches[0]
		order.SellOrderID = event.OrderID
		co.book.EditOpen(order)

	case "order_closed":
		co.handleOrderClosed(event)
	}
}

func (co *Coordinator) handleOrderClosed(event service.PrivateEvent) {
	filled := approxEqual(absFloat(event.AmountOrig), absFloat(event.AmountFilled))
	if !filled {
		return
	}

	if event.AmountOrig > 0 {
		// buy_confirmed: a completed buy creates the OpenOrder record.
		// price_profit is assigned by the strategy at submission time
		// and carried here via the pending-buy lookup by gid.
		pending, ok := co.pendingBuys[event.GID]
		if !ok {
			log.WithField("symbol", event.Symbol).Error("coordinator: buy order_closed with no matching pending buy, dropped")
			return
		}
		delete(co.pendingBuys, event.GID)

		co.book.NewOpen(model.OpenOrder{
			Asset:           event.Symbol,
			BuyOrderID:      event.OrderID,
			GID:             event.GID,
			PriceBuy:        event.PriceAvg,
			PriceProfit:     pending.PriceProfit,
			BuyVolumeFiat:   event.AmountFilled * event.PriceAvg,
			BuyVolumeCrypto: event.AmountFilled,
			TimestampBuy:    msToTime(event.TimestampMs),
		})
		return
	}

	matches := co.book.QueryOpen(storage.WithAsset(event.Symbol), storage.WithGID(event.GID))
	if len(matches) == 0 {
		log.WithField("symbol", event.Symbol).Error("coordinator: order_closed sell with no matching open order, dropped")
		return
	}
	co.trader.SellConfirmed(matches[0], event.PriceAvg)
}

// PendingBuy records a submitted-but-unconfirmed buy's target sell
// price, keyed by gid, so buy_confirmed can populate OpenOrder.PriceProfit.
type PendingBuy struct {
	PriceProfit float64
}

// RegisterPendingBuy must be called immediately after a buy order is
// submitted, before its order_closed confirmation can arrive.
func (co *Coordinator) RegisterPendingBuy(gid int64, priceProfit float64) {
	if co.pendingBuys == nil {
		co.pendingBuys = make(map[int64]PendingBuy)
	}
	co.pendingBuys[gid] = PendingBuy{PriceProfit: priceProfit}
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func approxEqual(a, b float64) bool {
	const epsilon = 1e-8
	diff := a - b
	return diff > -epsilon && diff < epsilon
}
