// Package candlecache holds the bounded, timestamp-keyed ring of
// per-asset OHLCV rows that drives each tick of the trader (spec §4.2).
package candlecache

import (
	"sort"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/novalune/tradeengine/model"
)

const defaultCap = 20

// Cache is a bounded ring of candle-rows keyed by timestamp. Put
// replaces any existing field for (ts, asset); once the number of
// distinct timestamps exceeds Cap, Prune repeatedly evicts the oldest
// timestamp (min(timestamps())) until the size invariant holds again.
type Cache struct {
	mtx  sync.Mutex
	cap  int
	rows map[int64]model.Row
}

// New creates a Cache bounded at cap entries; cap <= 0 uses the
// spec-default of 20.
func New(cap int) *Cache {
	if cap <= 0 {
		cap = defaultCap
	}
	return &Cache{
		cap:  cap,
		rows: make(map[int64]model.Row),
	}
}

// Put upserts the OHLCV tuple for (ts, asset), creating the row if this
// is the first asset observed at ts.
func (c *Cache) Put(ts int64, candle model.Candle) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	row, ok := c.rows[ts]
	if !ok {
		row = make(model.Row)
		c.rows[ts] = row
	}
	row[candle.Symbol] = candle
}

// Row returns the candle-row recorded at ts, or nil if none exists.
func (c *Cache) Row(ts int64) model.Row {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.rows[ts]
}

// Timestamps returns every timestamp currently held, ascending.
func (c *Cache) Timestamps() []int64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.timestampsLocked()
}

func (c *Cache) timestampsLocked() []int64 {
	out := maps.Keys(c.rows)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len reports the number of distinct timestamps currently cached.
func (c *Cache) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.rows)
}

// Cap returns the configured maximum number of distinct timestamps.
func (c *Cache) Cap() int { return c.cap }

// Prune repeatedly evicts the minimum timestamp until the cache size
// is at or below cap (spec §4.2, §5 resource policy).
func (c *Cache) Prune() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	for len(c.rows) > c.cap {
		timestamps := c.timestampsLocked()
		delete(c.rows, timestamps[0])
	}
}
