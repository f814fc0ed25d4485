// Package model holds the data types shared across the trading engine:
// candles, orders, wallet balances and accounts.
package model

import "fmt"

// Candle is one OHLCV tuple for a single asset over one fixed-duration
// interval, keyed by millisecond timestamp in the candle cache.
type Candle struct {
	Symbol    string
	TimestMs  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Complete  bool
}

// Empty reports whether no OHLCV data was ever recorded for this candle.
func (c Candle) Empty() bool {
	return c.Symbol == "" && c.Open == 0 && c.Close == 0 && c.Volume == 0
}

func (c Candle) String() string {
	return fmt.Sprintf("%s@%d O:%f H:%f L:%f C:%f V:%f", c.Symbol, c.TimestMs, c.Open, c.High, c.Low, c.Close, c.Volume)
}

// Row is the mapping from asset symbol to its OHLCV tuple for a single
// completed-candle timestamp, i.e. a "candle-row" (spec §3).
type Row map[string]Candle

// Empty reports true when no asset reported data for this row, the
// "empty-tick" case from spec §7.
func (r Row) Empty() bool {
	return len(r) == 0
}
