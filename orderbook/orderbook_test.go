package orderbook_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/orderbook"
	"github.com/novalune/tradeengine/storage"
)

func newBook(t *testing.T) *orderbook.Book {
	db, err := storage.FromMemory()
	require.NoError(t, err)
	return orderbook.New(db)
}

func TestBook_NewOpenAndQuery(t *testing.T) {
	b := newBook(t)
	b.NewOpen(model.OpenOrder{Asset: "BTC", BuyOrderID: 1, GID: 1000000001, PriceProfit: 21000})
	b.NewOpen(model.OpenOrder{Asset: "ETH", BuyOrderID: 2, GID: 1000000002, PriceProfit: 1600})

	result := b.QueryOpen(storage.WithAsset("BTC"))
	require.Len(t, result, 1)
	assert.Equal(t, int64(1), result[0].BuyOrderID)
}

func TestBook_DeleteOpen_RemovesAllPositionsForAsset(t *testing.T) {
	b := newBook(t)
	b.NewOpen(model.OpenOrder{Asset: "BTC", BuyOrderID: 1})
	b.NewOpen(model.OpenOrder{Asset: "BTC", BuyOrderID: 2})
	b.NewOpen(model.OpenOrder{Asset: "ETH", BuyOrderID: 3})

	b.DeleteOpen("BTC")

	remaining := b.OpenOrders()
	require.Len(t, remaining, 1)
	assert.Equal(t, "ETH", remaining[0].Asset)
}

func TestBook_SettleOpen_MovesToClosed(t *testing.T) {
	b := newBook(t)
	b.NewOpen(model.OpenOrder{Asset: "BTC", BuyOrderID: 1, GID: 1000000001})

	b.SettleOpen(model.ClosedOrder{
		OpenOrder:  model.OpenOrder{Asset: "BTC", BuyOrderID: 1, GID: 1000000001},
		ProfitFiat: 42.5,
	})

	assert.Empty(t, b.OpenOrders())
	closed := b.ClosedOrders()
	require.Len(t, closed, 1)
	assert.Equal(t, 42.5, closed[0].ProfitFiat)
}

func TestBook_SettleOpen_RemovesBackendRowSoReloadDoesNotResurrectIt(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)

	b := orderbook.New(db)
	b.NewOpen(model.OpenOrder{Asset: "BTC", BuyOrderID: 1, GID: 1000000001})
	b.SettleOpen(model.ClosedOrder{
		OpenOrder:  model.OpenOrder{Asset: "BTC", BuyOrderID: 1, GID: 1000000001},
		ProfitFiat: 42.5,
	})

	reloaded := orderbook.New(db)
	require.NoError(t, reloaded.Load())

	assert.Empty(t, reloaded.OpenOrders())
	require.Len(t, reloaded.ClosedOrders(), 1)
}

func TestBook_Load_ReconcilesFromBackend(t *testing.T) {
	db, err := storage.FromMemory()
	require.NoError(t, err)
	require.NoError(t, db.NewOpenOrder(model.OpenOrder{Asset: "BTC", BuyOrderID: 7}))

	b := orderbook.New(db)
	require.NoError(t, b.Load())

	result := b.QueryOpen(storage.WithBuyOrderID(7))
	require.Len(t, result, 1)
}
