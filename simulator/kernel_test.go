package simulator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalune/tradeengine/simulator"
)

func baseParams() simulator.Params {
	return simulator.Params{
		HoldTimeLimit:      10,
		ProfitRatioLimit:   1.01,
		ProfitFactorTarget: 1.05,
		AmountInvestFiat:   100,
		MakerFee:           0.1,
		TakerFee:           0.1,
	}
}

func TestKernel_CheckBuy_DebitsBudgetAndAppendsRow(t *testing.T) {
	k := simulator.NewKernel(baseParams(), 1000)

	ok := k.CheckBuy(0, 100, 1)
	require.True(t, ok)
	require.Len(t, k.Buybag, 1)
	assert.Equal(t, 900.0, k.Budget)
	assert.InDelta(t, 105.0, k.Buybag[0].PriceProfit, 1e-9)
}

func TestKernel_CheckBuy_RefusesWhenBudgetInsufficient(t *testing.T) {
	k := simulator.NewKernel(baseParams(), 50)

	ok := k.CheckBuy(0, 100, 1)
	assert.False(t, ok)
	assert.Empty(t, k.Buybag)
}

func TestKernel_CheckBuy_RespectsAssetBuyLimit(t *testing.T) {
	params := baseParams()
	params.AssetBuyLimit = 1
	k := simulator.NewKernel(params, 1000)

	require.True(t, k.CheckBuy(0, 100, 1))
	assert.False(t, k.CheckBuy(1, 50, 1))
	assert.Len(t, k.Buybag, 1)
}

func TestKernel_CheckSell_TriggersOnPriceProfitAndSettles(t *testing.T) {
	k := simulator.NewKernel(baseParams(), 1000)
	k.CheckBuy(0, 100, 1)

	k.CheckSell(0, 2, 2, []float64{105})

	assert.Empty(t, k.Buybag)
	require.Len(t, k.Soldbag, 1)
	assert.Equal(t, 105.0, k.Soldbag[0].PriceSold)
	assert.Equal(t, 0, k.Soldbag[0].AmountBuyOrdersAfter)
}

func TestKernel_CheckSell_ClampsImplausibleSpike(t *testing.T) {
	k := simulator.NewKernel(baseParams(), 1000)
	k.CheckBuy(0, 100, 1) // PriceProfit = 105

	// 200 / 105 > 1.2, so the clamp should fall back to PriceProfit (105).
	k.CheckSell(0, 2, 2, []float64{200})

	require.Len(t, k.Soldbag, 1)
	assert.Equal(t, 105.0, k.Soldbag[0].PriceSold)
}

func TestKernel_CheckSell_DoesNotTriggerBelowThresholds(t *testing.T) {
	k := simulator.NewKernel(baseParams(), 1000)
	k.CheckBuy(0, 100, 1)

	k.CheckSell(0, 2, 2, []float64{101})

	assert.Len(t, k.Buybag, 1)
	assert.Empty(t, k.Soldbag)
}

func TestKernel_CheckSell_TriggersOnHoldTimeAndRatio(t *testing.T) {
	params := baseParams()
	params.HoldTimeLimit = 5
	params.ProfitRatioLimit = 1.005
	k := simulator.NewKernel(params, 1000)
	k.CheckBuy(0, 100, 1) // PriceProfit = 105, needs price >= 105 to trigger on price alone

	// price 100.6 is below PriceProfit (105) but above the ratio limit,
	// and well past the hold-time window.
	k.CheckSell(0, 10, 10, []float64{100.6})

	assert.Empty(t, k.Buybag)
	require.Len(t, k.Soldbag, 1)
}

func TestKernel_CheckSell_BackfillsAggregatesAcrossAllSoldRowsThisStep(t *testing.T) {
	k := simulator.NewKernel(baseParams(), 1000)
	k.CheckBuy(0, 100, 1)
	k.CheckBuy(1, 200, 1)
	k.CheckBuy(2, 300, 1) // stays open

	k.CheckSell(0, 2, 2, []float64{105, 210, 100})

	require.Len(t, k.Soldbag, 2)
	assert.Equal(t, 1, k.Soldbag[0].AmountBuyOrdersAfter)
	assert.Equal(t, k.Soldbag[0].ValueCryptoInFiat, k.Soldbag[1].ValueCryptoInFiat)
	assert.Equal(t, k.Soldbag[0].TotalValue, k.Soldbag[1].TotalValue)
}
