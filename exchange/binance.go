package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/StudioSol/set"
	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"

	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/service"
	"github.com/novalune/tradeengine/tools/log"
)

// Client is the concrete service.Exchange backed by
// adshao/go-binance/v2, grounded on the teacher's DataFeedSubscription
// goroutine-per-channel pattern in exchange/exchange.go.
type Client struct {
	api          *binance.Client
	baseCurrency string

	// subscribed tracks wire-format symbols with an active kline
	// stream, the same ordered, duplicate-free role the teacher's
	// DataFeedSubscription.Feeds plays (exchange/exchange.go). The
	// teacher only ever calls .Add/.Iter on this type; it exposes no
	// delete, so a symbol stays marked subscribed for the Client's
	// lifetime rather than being removed on disconnect — each symbol is
	// subscribed at most once per process, so this never blocks a
	// legitimate re-subscription.
	subscribed *set.LinkedHashSetString
}

// NewClient wraps a binance REST/WS client. apiKey/secretKey may be
// empty for read-only/backtest usage.
func NewClient(apiKey, secretKey, baseCurrency string) *Client {
	return &Client{
		api:          binance.NewClient(apiKey, secretKey),
		baseCurrency: baseCurrency,
		subscribed:   set.NewLinkedHashSetString(),
	}
}

func (c *Client) wireSymbol(asset string) string {
	return strings.ToUpper(asset) + strings.ToUpper(c.baseCurrency)
}

// SubscribeCandles opens a binance kline WS stream for symbol/interval
// and republishes events as service.PublicEvent, reconnecting with
// exponential backoff on disconnect — grounded on the teacher's
// CandlesSubscription goroutine (exchange/binance.go).
func (c *Client) SubscribeCandles(ctx context.Context, symbol, interval string) (<-chan service.PublicEvent, error) {
	wireSymbol := c.wireSymbol(symbol)
	if c.subscribed.Exists(wireSymbol) {
		return nil, fmt.Errorf("exchange: %s already has an active candle subscription", wireSymbol)
	}

	out := make(chan service.PublicEvent)
	ba := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 1 * time.Second}

	handler := func(event *binance.WsKlineEvent) {
		ba.Reset()
		candle := model.Candle{
			Symbol:   symbol,
			TimestMs: event.Kline.StartTime,
			Open:     mustFloat(event.Kline.Open),
			High:     mustFloat(event.Kline.High),
			Low:      mustFloat(event.Kline.Low),
			Close:    mustFloat(event.Kline.Close),
			Volume:   mustFloat(event.Kline.Volume),
			Complete: event.Kline.IsFinal,
		}
		select {
		case out <- service.PublicEvent{Type: "new_candle", Candle: candle}:
		case <-ctx.Done():
		}
	}
	errHandler := func(err error) {
		select {
		case out <- service.PublicEvent{Type: "error", Err: err}:
		case <-ctx.Done():
		}
	}

	doneC, stopC, err := binance.WsKlineServe(wireSymbol, interval, handler, errHandler)
	if err != nil {
		close(out)
		return nil, err
	}
	c.subscribed.Add(wireSymbol)

	go func() {
		defer close(out)

		out <- service.PublicEvent{Type: "subscribed"}

		for {
			select {
			case <-ctx.Done():
				stopC <- struct{}{}
				return
			case <-doneC:
			}

			time.Sleep(ba.Duration())

			doneC, stopC, err = binance.WsKlineServe(wireSymbol, interval, handler, errHandler)
			if err != nil {
				log.WithField("symbol", wireSymbol).Errorf("exchange: kline reconnect failed: %v", err)
				return
			}
		}
	}()

	return out, nil
}

// GetLatestRemoteCandleTimestamp fetches the single most recent kline
// and subtracts minusDelta intervals, matching spec §6's
// get_latest_remote_candle_timestamp(minus_delta).
func (c *Client) GetLatestRemoteCandleTimestamp(ctx context.Context, symbol, interval string, minusDelta int) (int64, error) {
	klines, err := c.api.NewKlinesService().
		Symbol(c.wireSymbol(symbol)).
		Interval(interval).
		Limit(1).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(klines) == 0 {
		return 0, fmt.Errorf("exchange: no klines returned for %s", symbol)
	}

	intervalMs, err := intervalToMs(interval)
	if err != nil {
		return 0, err
	}
	return klines[0].OpenTime - int64(minusDelta)*intervalMs, nil
}

// CandleHistory fetches completed candles over [start, end] ms.
func (c *Client) CandleHistory(ctx context.Context, symbol, interval string, start, end int64) ([]model.Candle, error) {
	klines, err := c.api.NewKlinesService().
		Symbol(c.wireSymbol(symbol)).
		Interval(interval).
		StartTime(start).
		EndTime(end).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, model.Candle{
			Symbol:   symbol,
			TimestMs: k.OpenTime,
			Open:     mustFloat(k.Open),
			High:     mustFloat(k.High),
			Low:      mustFloat(k.Low),
			Close:    mustFloat(k.Close),
			Volume:   mustFloat(k.Volume),
			Complete: true,
		})
	}
	return candles, nil
}

// SubscribePrivate opens the binance user-data WS stream and
// republishes account/order events as service.PrivateEvent.
func (c *Client) SubscribePrivate(ctx context.Context) (<-chan service.PrivateEvent, error) {
	listenKey, err := c.api.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan service.PrivateEvent)

	handler := func(event *binance.WsUserDataEvent) {
		var pe service.PrivateEvent
		switch event.Event {
		case binance.UserDataEventTypeOutboundAccountPosition:
			wallets := make(model.WalletSnapshot, len(event.AccountUpdate.WsAccountUpdates))
			for _, b := range event.AccountUpdate.WsAccountUpdates {
				free := mustFloat(b.Free)
				wallets[b.Asset] = model.Balance{Currency: b.Asset, Balance: free, BalanceAvailable: &free}
			}
			pe = service.PrivateEvent{Type: "wallet_update", Wallets: wallets}
		case binance.UserDataEventTypeExecutionReport:
			status := mapOrderStatus(event.OrderUpdate.Status)
			eventType := "order_confirmed"
			if status == model.StatusExecuted || status == model.StatusCanceled || status == model.StatusRejected {
				eventType = "order_closed"
			}
			var gid int64
			_, _ = fmt.Sscanf(event.OrderUpdate.ClientOrderId, "gid-%d", &gid)
			amountOrig := mustFloat(event.OrderUpdate.Volume)
			if event.OrderUpdate.Side == string(binance.SideTypeSell) {
				amountOrig = -amountOrig
			}
			pe = service.PrivateEvent{
				Type:           eventType,
				OrderID:        event.OrderUpdate.Id,
				GID:            gid,
				Symbol:         strings.TrimSuffix(event.OrderUpdate.Symbol, strings.ToUpper(c.baseCurrency)),
				AmountOrig:     amountOrig,
				AmountFilled:   mustFloat(event.OrderUpdate.AccumulativeFilledQty),
				PriceAvg:       mustFloat(event.OrderUpdate.Price),
				TimestampMs:    event.Time,
				ExchangeStatus: status,
			}
		default:
			return
		}

		select {
		case out <- pe:
		case <-ctx.Done():
		}
	}
	errHandler := func(err error) {
		log.Errorf("exchange: private stream error: %v", err)
	}

	doneC, stopC, err := binance.WsUserDataServe(listenKey, handler, errHandler)
	if err != nil {
		close(out)
		return nil, err
	}

	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
			stopC <- struct{}{}
		case <-doneC:
		}
	}()

	return out, nil
}

// Order submits a limit order, stashing gid into the client order id
// so fills can be traced back to the internal position (spec §6).
func (c *Client) Order(side model.SideType, asset string, price, amount float64, gid int64) error {
	orderSide := binance.SideTypeBuy
	if side == model.SideTypeSell {
		orderSide = binance.SideTypeSell
	}

	_, err := c.api.NewCreateOrderService().
		Symbol(c.wireSymbol(asset)).
		Side(orderSide).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(strconv.FormatFloat(amount, 'f', -1, 64)).
		Price(strconv.FormatFloat(price, 'f', -1, 64)).
		NewClientOrderID(fmt.Sprintf("gid-%d", gid)).
		Do(context.Background())
	return err
}

// GetOrderHistory fetches the full order history (not just still-open
// orders) for each of symbols, grounded on the teacher's
// Orders(pair, limit) method (exchange/binance.go). A per-symbol
// NewListOrdersService call is required since binance has no
// all-symbols order-history endpoint; check_sold_orders needs EXECUTED
// sells here, which NewListOpenOrdersService can never return since it
// only reports orders still NEW/PARTIALLY_FILLED.
func (c *Client) GetOrderHistory(ctx context.Context, symbols []string) ([]service.OrderRecord, error) {
	records := make([]service.OrderRecord, 0, len(symbols))
	for _, symbol := range symbols {
		orders, err := c.api.NewListOrdersService().Symbol(c.wireSymbol(symbol)).Do(ctx)
		if err != nil {
			return nil, err
		}
		for _, o := range orders {
			records = append(records, service.OrderRecord{
				OrderID:  o.OrderID,
				Symbol:   symbol,
				Status:   mapOrderStatus(string(o.Status)),
				PriceAvg: mustFloat(o.Price),
			})
		}
	}
	return records, nil
}

// GetMinOrderSizes fetches the exchange's LOT_SIZE minimum per symbol.
func (c *Client) GetMinOrderSizes(ctx context.Context) (map[string]float64, error) {
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}

	mins := make(map[string]float64, len(info.Symbols))
	for _, s := range info.Symbols {
		for _, f := range s.Filters {
			if f["filterType"] == "LOT_SIZE" {
				if minQty, ok := f["minQty"].(string); ok {
					mins[s.Symbol] = mustFloat(minQty)
				}
			}
		}
	}
	return mins, nil
}

// Account reports the current wallet snapshot.
func (c *Client) Account(ctx context.Context) (model.Account, error) {
	acc, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return model.Account{}, err
	}

	wallets := make(model.WalletSnapshot, len(acc.Balances))
	for _, b := range acc.Balances {
		free := mustFloat(b.Free)
		wallets[b.Asset] = model.Balance{Currency: b.Asset, Balance: free, BalanceAvailable: &free}
	}
	return model.Account{Wallets: wallets}, nil
}

func mapOrderStatus(status string) model.ExchangeOrderStatus {
	switch status {
	case "NEW":
		return model.StatusNew
	case "PARTIALLY_FILLED":
		return model.StatusPartial
	case "FILLED":
		return model.StatusExecuted
	case "CANCELED":
		return model.StatusCanceled
	case "REJECTED", "EXPIRED":
		return model.StatusRejected
	default:
		return model.StatusNew
	}
}

func mustFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func intervalToMs(interval string) (int64, error) {
	switch interval {
	case "1m":
		return time.Minute.Milliseconds(), nil
	case "5m":
		return (5 * time.Minute).Milliseconds(), nil
	case "15m":
		return (15 * time.Minute).Milliseconds(), nil
	case "1h":
		return time.Hour.Milliseconds(), nil
	case "4h":
		return (4 * time.Hour).Milliseconds(), nil
	case "1d":
		return (24 * time.Hour).Milliseconds(), nil
	default:
		return 0, fmt.Errorf("exchange: unrecognized interval %q", interval)
	}
}
