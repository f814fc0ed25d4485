package simulator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/simulator"
)

func TestSnapshotIndices_EvenlySpaced(t *testing.T) {
	idxs := simulator.SnapshotIndices(10, 100, 5, 5)
	require.Len(t, idxs, 5)
	assert.Equal(t, int64(10), idxs[0])
	assert.Equal(t, int64(95), idxs[len(idxs)-1])
}

func TestSnapshotIndices_SingleAmountReturnsWindow(t *testing.T) {
	idxs := simulator.SnapshotIndices(10, 100, 1, 5)
	assert.Equal(t, []int64{10}, idxs)
}

const csvFixture = `timestamp_ms,asset,open,high,low,close,volume
0,BTC,100,100,100,100,10
0,ETH,10,10,10,10,100
1000,BTC,100,110,100,110,10
1000,ETH,10,10,10,10,100
2000,BTC,100,121,100,121,10
2000,ETH,10,10,10,10,100
`

func TestLoadCSV_ParsesRowsAndAssets(t *testing.T) {
	src, err := simulator.LoadCSV(strings.NewReader(csvFixture))
	require.NoError(t, err)
	assert.Equal(t, int64(3), src.Len())
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, src.Assets())

	row := src.Row(2)
	assert.Equal(t, 121.0, row["BTC"].Close)
}

func TestRunSnapshots_BuysAndSellsAcrossWindow(t *testing.T) {
	src, err := simulator.LoadCSV(strings.NewReader(csvFixture))
	require.NoError(t, err)

	params := simulator.Params{
		HoldTimeLimit:      0,
		ProfitRatioLimit:   1.1,
		ProfitFactorTarget: 1.1,
		AmountInvestFiat:   50,
		MakerFee:           0.1,
		TakerFee:           0.1,
		AssetBuyLimit:      2,
	}

	candidates := func(row model.Row, assets []string) []string {
		return []string{"BTC"}
	}

	results := simulator.RunSnapshots(params, 1000, 3, src, []int64{0}, candidates)
	require.Len(t, results, 1)
	assert.Equal(t, int64(0), results[0].StartIdx)
}
