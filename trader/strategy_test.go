package trader_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/orderbook"
	"github.com/novalune/tradeengine/storage"
	"github.com/novalune/tradeengine/trader"
)

func TestDefaultStrategy_CheckSellOptions_TriggersOnPriceProfit(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)
	book := orderbook.New(db)
	book.NewOpen(model.OpenOrder{
		Asset: "BTC", BuyOrderID: 1, PriceBuy: 20000, PriceProfit: 21000,
		TimestampBuy: time.UnixMilli(0),
	})

	s := &trader.DefaultStrategy{ProfitRatioLimit: 2}
	options := s.CheckSellOptions(book, model.Row{"BTC": {Symbol: "BTC", Close: 21500}}, 1000)

	require.Len(t, options, 1)
	assert.Equal(t, int64(1), options[0].Order.BuyOrderID)
}

func TestDefaultStrategy_CheckSellOptions_TriggersOnHoldTimeAndRatio(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)
	book := orderbook.New(db)
	book.NewOpen(model.OpenOrder{
		Asset: "BTC", BuyOrderID: 1, PriceBuy: 20000, PriceProfit: 50000,
		TimestampBuy: time.UnixMilli(0),
	})

	s := &trader.DefaultStrategy{HoldTimeLimitMs: 500, ProfitRatioLimit: 1.01}
	options := s.CheckSellOptions(book, model.Row{"BTC": {Symbol: "BTC", Close: 20500}}, 1000)

	require.Len(t, options, 1)
}

func TestDefaultStrategy_CheckBuyOptions_RespectsAssetBuyLimit(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)
	book := orderbook.New(db)
	book.NewOpen(model.OpenOrder{Asset: "BTC", BuyOrderID: 1})

	s := &trader.DefaultStrategy{
		AmountInvestFiat:   100,
		AssetBuyLimit:      1,
		ProfitFactorTarget: 1.05,
		Candidates:         func(prices model.Row) []string { return []string{"ETH"} },
	}

	options := s.CheckBuyOptions(book, model.Row{"ETH": {Symbol: "ETH", Close: 1600}}, 1000)
	assert.Empty(t, options)
}

func TestDefaultStrategy_CheckBuyOptions_SetsProfitTarget(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)
	book := orderbook.New(db)

	s := &trader.DefaultStrategy{
		AmountInvestFiat:   100,
		ProfitFactorTarget: 1.05,
		Candidates:         func(prices model.Row) []string { return []string{"ETH"} },
	}

	options := s.CheckBuyOptions(book, model.Row{"ETH": {Symbol: "ETH", Close: 1600}}, 1000)
	require.Len(t, options, 1)
	assert.InDelta(t, 1680.0, options[0].PriceProfit, 1e-9)
}
