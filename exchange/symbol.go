// Package exchange provides the concrete service.Exchange
// implementation and the symbol-convention boundary function.
package exchange

import "strings"

// ToExchangeSymbol converts an internal bare ticker (e.g. "BTC") into
// the exchange-prefixed wire form (e.g. "tBTCUSD") using baseCurrency,
// per spec §6's convert_symbol_str.
func ToExchangeSymbol(asset, baseCurrency string) string {
	return "t" + strings.ToUpper(asset) + strings.ToUpper(baseCurrency)
}

// FromExchangeSymbol is the inverse of ToExchangeSymbol: it strips the
// leading "t" marker and the trailing base-currency suffix, returning
// the bare internal ticker.
func FromExchangeSymbol(wireSymbol, baseCurrency string) string {
	s := strings.TrimPrefix(strings.ToUpper(wireSymbol), "T")
	return strings.TrimSuffix(s, strings.ToUpper(baseCurrency))
}
