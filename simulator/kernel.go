// Package simulator is the deterministic backtest kernel described in
// spec §4.7, grounded on the Python original's numba-jitted
// tradeforce/simulator/sells.py and simulator/utils.py. The kernel
// trades named struct rows instead of the original's flat positional
// float arrays — numba's column-index trick exists to avoid Python
// object overhead, a constraint Go's compiled structs don't share, so
// BuyRow/SoldRow fields replace the [0], [3], [4]... column offsets
// (documented as a deliberate idiom departure in DESIGN.md).
package simulator

import (
	"github.com/samber/lo"

	"github.com/novalune/tradeengine/feeutil"
)

// Params holds the subset of the simulator's `params` input map (spec
// §4.7) that the kernel reads; window and snapshot sizing are passed to
// SnapshotIndices/RunSnapshots separately.
type Params struct {
	HoldTimeLimit      int64
	ProfitRatioLimit   float64
	ProfitFactorTarget float64
	AmountInvestFiat   float64
	MakerFee           float64
	TakerFee           float64
	AssetBuyLimit      int
}

// BuyRow is one open position held by the kernel during a backtest run.
type BuyRow struct {
	AssetIdx           int
	RowIdxBought       int64
	PriceBought        float64
	PriceProfit        float64
	AmountInvestFiat   float64
	AmountInvestCrypto float64
}

// SoldRow is a BuyRow settled at a later row index, carrying the
// realized sell-side fields and the step-level aggregates spec §4.7
// backfills identically across every row sold in the same step.
type SoldRow struct {
	BuyRow
	RowIdxSold              int64
	PriceSold               float64
	AmountSoldFiatInclFee   float64
	AmountSoldCryptoInclFee float64
	AmountFeeSellFiat       float64
	AmountProfitFiat        float64
	ValueCryptoInFiat       float64
	TotalValue              float64
	AmountBuyOrdersAfter    int
	CurrentIter             int64
	CurrentIdx              int64
}

// Kernel holds one backtest run's mutable state: the open position
// bag, the sold-position ledger and the running fiat budget.
type Kernel struct {
	Params  Params
	Buybag  []BuyRow
	Soldbag []SoldRow
	Budget  float64
}

// NewKernel creates a Kernel seeded with the starting budget.
func NewKernel(params Params, budget float64) *Kernel {
	return &Kernel{Params: params, Budget: budget}
}

// CheckSell runs one step of the per-step sell loop (spec §4.7):
// iterates Buybag in ascending row-index order (ties broken by bag
// position, i.e. Go's stable slice order), applies the sell trigger
// and plausibility clamp, settles triggered rows into Soldbag, then
// backfills the step's aggregate fields identically across every row
// sold this step.
func (k *Kernel) CheckSell(currentIter, currentIdx, rowIdx int64, historyPricesRow []float64) {
	if len(k.Buybag) == 0 {
		return
	}

	sellTrigger := func(row BuyRow) bool {
		priceCurrent := historyPricesRow[row.AssetIdx]
		timeSinceBuy := rowIdx - row.RowIdxBought
		profitRatio := priceCurrent / row.PriceBought
		okToSell := timeSinceBuy > k.Params.HoldTimeLimit && profitRatio >= k.Params.ProfitRatioLimit
		return priceCurrent >= row.PriceProfit || okToSell
	}

	triggered := lo.Filter(k.Buybag, func(row BuyRow, _ int) bool { return sellTrigger(row) })
	if len(triggered) == 0 {
		return
	}

	// lo.Reject excludes every triggered row from the live Buybag by
	// position, mirroring the teacher's storage/sql.go query-filter
	// idiom (lo.Filter for inclusion, lo.Reject for exclusion).
	k.Buybag = lo.Reject(k.Buybag, func(row BuyRow, _ int) bool { return sellTrigger(row) })

	for _, row := range triggered {
		priceCurrent := historyPricesRow[row.AssetIdx]
		// Plausibility clamp (spec §4.7 step 4): guards against a
		// price-spike tick yielding an implausible sell profit.
		if priceCurrent/row.PriceProfit > 1.2 {
			priceCurrent = row.PriceProfit
		}

		volumeAfterFee, _, feeFiat := feeutil.CalcFee(row.AmountInvestCrypto, k.Params.MakerFee, k.Params.TakerFee, priceCurrent, feeutil.SideSell)
		soldFiatInclFee := round3(volumeAfterFee * priceCurrent)
		profit := soldFiatInclFee - row.AmountInvestFiat
		k.Budget += soldFiatInclFee

		k.Soldbag = append(k.Soldbag, SoldRow{
			BuyRow:                  row,
			RowIdxSold:              rowIdx,
			PriceSold:               priceCurrent,
			AmountSoldFiatInclFee:   soldFiatInclFee,
			AmountSoldCryptoInclFee: volumeAfterFee,
			AmountFeeSellFiat:       feeFiat,
			AmountProfitFiat:        profit,
			CurrentIter:             currentIter,
			CurrentIdx:              currentIdx,
		})
	}

	soldThisStep := len(triggered)

	var valueCryptoInFiat float64
	for _, row := range k.Buybag {
		valueCryptoInFiat += historyPricesRow[row.AssetIdx] * row.AmountInvestCrypto
	}
	valueCryptoInFiat = round2(valueCryptoInFiat)
	totalValue := round2(valueCryptoInFiat + k.Budget)
	buyOrdersAfter := len(k.Buybag)

	for i := len(k.Soldbag) - soldThisStep; i < len(k.Soldbag); i++ {
		k.Soldbag[i].ValueCryptoInFiat = valueCryptoInFiat
		k.Soldbag[i].TotalValue = totalValue
		k.Soldbag[i].AmountBuyOrdersAfter = buyOrdersAfter
	}
}

// CheckBuy evaluates one buy candidate at assetIdx/priceBought; it
// debits Budget by AmountInvestFiat and appends a new Buybag row with
// PriceProfit := priceBought * ProfitFactorTarget, respecting
// AssetBuyLimit (spec §4.7's per-step buy loop).
func (k *Kernel) CheckBuy(assetIdx int, priceBought float64, rowIdx int64) bool {
	if k.Params.AssetBuyLimit > 0 && len(k.Buybag) >= k.Params.AssetBuyLimit {
		return false
	}
	if k.Budget < k.Params.AmountInvestFiat {
		return false
	}

	amountInvestCrypto, _, _ := feeutil.CalcFee(k.Params.AmountInvestFiat/priceBought, k.Params.MakerFee, k.Params.TakerFee, priceBought, feeutil.SideBuy)

	k.Budget -= k.Params.AmountInvestFiat
	k.Buybag = append(k.Buybag, BuyRow{
		AssetIdx:           assetIdx,
		RowIdxBought:       rowIdx,
		PriceBought:        priceBought,
		PriceProfit:        priceBought * k.Params.ProfitFactorTarget,
		AmountInvestFiat:   k.Params.AmountInvestFiat,
		AmountInvestCrypto: amountInvestCrypto,
	})
	return true
}

func round2(v float64) float64 { return roundN(v, 100) }
func round3(v float64) float64 { return roundN(v, 1000) }

func roundN(v, scale float64) float64 {
	if v < 0 {
		return -roundN(-v, scale)
	}
	return float64(int64(v*scale+0.5)) / scale
}
