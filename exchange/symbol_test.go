package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToExchangeSymbol(t *testing.T) {
	assert.Equal(t, "tBTCUSD", ToExchangeSymbol("BTC", "USD"))
}

func TestFromExchangeSymbol(t *testing.T) {
	assert.Equal(t, "BTC", FromExchangeSymbol("tBTCUSD", "USD"))
}

func TestSymbolConversion_RoundTrips(t *testing.T) {
	wire := ToExchangeSymbol("eth", "usd")
	assert.Equal(t, "ETH", FromExchangeSymbol(wire, "usd"))
}
