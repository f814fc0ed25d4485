package candlecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalune/tradeengine/model"
)

func TestCache_PutReplacesExistingField(t *testing.T) {
	c := New(20)
	c.Put(1000, model.Candle{Symbol: "BTC", Close: 10})
	c.Put(1000, model.Candle{Symbol: "BTC", Close: 20})

	row := c.Row(1000)
	require.NotNil(t, row)
	assert.Equal(t, 20.0, row["BTC"].Close)
}

func TestCache_PruneEvictsOldestUntilWithinCap(t *testing.T) {
	c := New(2)
	c.Put(1000, model.Candle{Symbol: "BTC"})
	c.Put(2000, model.Candle{Symbol: "BTC"})
	c.Put(3000, model.Candle{Symbol: "BTC"})
	c.Prune()

	assert.LessOrEqual(t, c.Len(), c.Cap())
	assert.Equal(t, []int64{2000, 3000}, c.Timestamps())
}

func TestFIFORing_BoundedEviction(t *testing.T) {
	r := NewFIFORing(3)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Push(4)

	assert.Equal(t, 3, r.Len())
	assert.False(t, r.Contains(1))
	assert.True(t, r.Contains(4))
}
