package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalune/tradeengine/config"
	"github.com/novalune/tradeengine/coordinator"
	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/orderbook"
	"github.com/novalune/tradeengine/service"
	"github.com/novalune/tradeengine/storage"
	"github.com/novalune/tradeengine/trader"
)

type fakeFeeder struct {
	out chan service.PublicEvent
}

func (f *fakeFeeder) SubscribeCandles(ctx context.Context, symbol, interval string) (<-chan service.PublicEvent, error) {
	return f.out, nil
}

func (f *fakeFeeder) GetLatestRemoteCandleTimestamp(ctx context.Context, symbol, interval string, minusDelta int) (int64, error) {
	return 0, nil
}

func (f *fakeFeeder) CandleHistory(ctx context.Context, symbol, interval string, start, end int64) ([]model.Candle, error) {
	return nil, nil
}

type fakeBroker struct{}

func (f *fakeBroker) SubscribePrivate(ctx context.Context) (<-chan service.PrivateEvent, error) {
	return nil, nil
}
func (f *fakeBroker) Order(side model.SideType, asset string, price, amount float64, gid int64) error {
	return nil
}
func (f *fakeBroker) GetOrderHistory(ctx context.Context, symbols []string) ([]service.OrderRecord, error) {
	return nil, nil
}
func (f *fakeBroker) GetMinOrderSizes(ctx context.Context) (map[string]float64, error) {
	return nil, nil
}
func (f *fakeBroker) Account(ctx context.Context) (model.Account, error) { return model.Account{}, nil }

type noopStrategy struct{}

func (noopStrategy) CheckSellOptions(book *orderbook.Book, prices model.Row, ts int64) []trader.SellOption {
	return nil
}
func (noopStrategy) CheckBuyOptions(book *orderbook.Book, prices model.Row, ts int64) []trader.BuyOption {
	return nil
}

func TestCoordinator_PrimesAfterTwoTimestampsAndTicksOnThird(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)
	book := orderbook.New(db)
	cfg := &config.Config{}
	tr := trader.New(cfg, book, db, &fakeBroker{}, nil, noopStrategy{})

	feeder := &fakeFeeder{out: make(chan service.PublicEvent, 10)}
	co := coordinator.New(feeder, &fakeBroker{}, db, book, tr, 1000, "USD", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- co.Start(ctx, "BTC", "1m") }()

	feeder.out <- service.PublicEvent{Type: "new_candle", Candle: model.Candle{Symbol: "BTC", TimestMs: 1000, Close: 100, Complete: true}}
	feeder.out <- service.PublicEvent{Type: "new_candle", Candle: model.Candle{Symbol: "BTC", TimestMs: 2000, Close: 101, Complete: true}}

	require.Eventually(t, func() bool { return co.State() == coordinator.StateTicking }, time.Second, time.Millisecond)

	feeder.out <- service.PublicEvent{Type: "new_candle", Candle: model.Candle{Symbol: "BTC", TimestMs: 3000, Close: 102, Complete: true}}

	require.Eventually(t, func() bool {
		local, _ := db.GetLocalCandleTimestamp(storage.PositionLatest)
		return local == 2000
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestCoordinator_StateStringsAreHumanReadable(t *testing.T) {
	assert.Equal(t, "CONNECTING", coordinator.StateConnecting.String())
	assert.Equal(t, "TICKING", coordinator.StateTicking.String())
}
