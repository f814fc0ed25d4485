package simulator

import (
	"github.com/schollz/progressbar/v3"

	"github.com/novalune/tradeengine/model"
)

// SnapshotIndices returns `amount` evenly spaced row indices between
// window and idxBoundary-size, grounded on the Python original's
// `get_snapshot_indices` (tradeforce/simulator/utils.py), which uses
// `np.linspace(window, snapshot_idx_boundary - snapshot_size, amount)`
// and truncates to int64. Go has no numpy; the same evenly-spaced
// sequence is reproduced with plain integer arithmetic.
func SnapshotIndices(window, idxBoundary, amount, size int64) []int64 {
	if amount <= 0 {
		return nil
	}
	hi := idxBoundary - size
	if amount == 1 {
		return []int64{window}
	}

	out := make([]int64, amount)
	step := float64(hi-window) / float64(amount-1)
	for i := int64(0); i < amount; i++ {
		out[i] = window + int64(float64(i)*step)
	}
	return out
}

// Snapshot is one windowed backtest run's outcome.
type Snapshot struct {
	StartIdx int64
	Kernel   *Kernel
}

// SnapshotResult holds the start index, profit total
// (calc_metrics-equivalent) and trade count of one completed snapshot run.
type SnapshotResult struct {
	StartIdx   int64
	ProfitFiat float64
	NumTrades  int
}

// CandleSource supplies one row of prices per row index, the
// simulator's offline equivalent of the live candle cache.
type CandleSource interface {
	Row(idx int64) model.Row
	Assets() []string
	Len() int64
}

// RunSnapshots runs one independent Kernel per snapshot start index,
// each over [start, start+window), matching spec §4.7's description of
// snapshots as embarrassingly parallel, non-interacting backtest runs.
func RunSnapshots(params Params, budget float64, window int64, source CandleSource, indices []int64, candidatePicker func(model.Row, []string) []string) []SnapshotResult {
	results := make([]SnapshotResult, 0, len(indices))
	assets := source.Assets()

	bar := progressbar.Default(int64(len(indices)), "running snapshots")

	for _, start := range indices {
		k := NewKernel(params, budget)
		end := start + window
		if end > source.Len() {
			end = source.Len()
		}

		for idx := start; idx < end; idx++ {
			row := source.Row(idx)
			if row.Empty() {
				continue
			}

			priceRow := make([]float64, len(assets))
			for i, asset := range assets {
				if c, ok := row[asset]; ok {
					priceRow[i] = c.Close
				}
			}

			k.CheckSell(0, idx, idx, priceRow)

			candidates := candidatePicker(row, assets)
			for _, asset := range candidates {
				c, ok := row[asset]
				if !ok {
					continue
				}
				assetIdx := indexOf(assets, asset)
				if assetIdx < 0 {
					continue
				}
				k.CheckBuy(assetIdx, c.Close, idx)
			}
		}

		results = append(results, SnapshotResult{
			StartIdx:   start,
			ProfitFiat: CalcMetrics(k.Soldbag),
			NumTrades:  len(k.Soldbag),
		})
		bar.Add(1)
	}

	return results
}

// CalcMetrics sums AmountProfitFiat across soldbag and truncates to a
// whole fiat unit, the Go equivalent of the original's `calc_metrics`
// (`np.int64(soldbag[:, 14:15].sum())` truncates toward zero, it does
// not round).
func CalcMetrics(soldbag []SoldRow) float64 {
	var total float64
	for _, row := range soldbag {
		total += row.AmountProfitFiat
	}
	return float64(int64(total))
}

func indexOf(haystack []string, needle string) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}
