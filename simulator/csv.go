package simulator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/novalune/tradeengine/model"
)

// CSVSource is an offline CandleSource backed by a flat CSV history
// dump: header `timestamp_ms,asset,open,high,low,close,volume`. This
// is spec §12's supplemented offline-backtest input, with no Python
// original to ground it on directly (tradeforce loads history from its
// own cached parquet/DB, not CSV) — modeled on the teacher's own
// candlecache.Row-keyed-by-timestamp shape so the rest of the kernel
// need not distinguish live from offline input.
type CSVSource struct {
	rows   []model.Row
	assets []string
}

// LoadCSV reads a candle history dump into a CSVSource. Rows are
// expected to already be sorted in ascending timestamp order; each
// distinct timestamp becomes one CandleSource row index.
func LoadCSV(r io.Reader) (*CSVSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 7

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("simulator: read csv header: %w", err)
	}
	if len(header) != 7 {
		return nil, fmt.Errorf("simulator: expected 7 csv columns, got %d", len(header))
	}

	bySymbol := make(map[string]bool)
	rowsByTs := make(map[int64]model.Row)
	var order []int64

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("simulator: read csv record: %w", err)
		}

		ts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("simulator: parse timestamp %q: %w", rec[0], err)
		}
		asset := rec[1]
		open, _ := strconv.ParseFloat(rec[2], 64)
		high, _ := strconv.ParseFloat(rec[3], 64)
		low, _ := strconv.ParseFloat(rec[4], 64)
		closeP, _ := strconv.ParseFloat(rec[5], 64)
		volume, _ := strconv.ParseFloat(rec[6], 64)

		row, ok := rowsByTs[ts]
		if !ok {
			row = model.Row{}
			rowsByTs[ts] = row
			order = append(order, ts)
		}
		row[asset] = model.Candle{
			Symbol: asset, TimestMs: ts,
			Open: open, High: high, Low: low, Close: closeP, Volume: volume,
			Complete: true,
		}
		bySymbol[asset] = true
	}

	src := &CSVSource{rows: make([]model.Row, len(order))}
	for i, ts := range order {
		src.rows[i] = rowsByTs[ts]
	}
	for asset := range bySymbol {
		src.assets = append(src.assets, asset)
	}
	return src, nil
}

// Row returns the candle row at idx, or an empty Row if idx is out of
// range.
func (s *CSVSource) Row(idx int64) model.Row {
	if idx < 0 || idx >= int64(len(s.rows)) {
		return model.Row{}
	}
	return s.rows[idx]
}

// Assets lists every asset symbol observed across the loaded history.
func (s *CSVSource) Assets() []string { return s.assets }

// Len reports the number of distinct row indices loaded.
func (s *CSVSource) Len() int64 { return int64(len(s.rows)) }
