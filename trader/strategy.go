package trader

import (
	"github.com/novalune/tradeengine/model"
	"github.com/novalune/tradeengine/orderbook"
)

// DefaultStrategy applies the same sell/buy trigger rules as the
// simulator kernel (spec §4.7) to live ticks, so a strategy tuned in
// backtesting behaves identically live.
type DefaultStrategy struct {
	HoldTimeLimitMs    int64
	ProfitRatioLimit   float64
	ProfitFactorTarget float64
	AmountInvestFiat   float64
	AssetBuyLimit      int
	Candidates         func(prices model.Row) []string
}

// CheckSellOptions applies spec §4.7's sell trigger: price has reached
// its profit target, or the position has been held past
// HoldTimeLimitMs with at least ProfitRatioLimit return.
func (s *DefaultStrategy) CheckSellOptions(book *orderbook.Book, prices model.Row, timestampMs int64) []SellOption {
	var options []SellOption

	for _, open := range book.OpenOrders() {
		if open.HasSell() {
			continue
		}
		candle, ok := prices[open.Asset]
		if !ok || candle.Empty() {
			continue
		}

		priceCurrent := candle.Close
		timeSinceBuy := timestampMs - open.TimestampBuy.UnixMilli()
		profitRatio := priceCurrent / open.PriceBuy

		okToSell := timeSinceBuy > s.HoldTimeLimitMs && profitRatio >= s.ProfitRatioLimit
		if priceCurrent >= open.PriceProfit || okToSell {
			options = append(options, SellOption{Order: open})
		}
	}
	return options
}

// CheckBuyOptions proposes a buy for every candidate asset with no
// existing open position, bounded by AssetBuyLimit — the buy-loop spec
// §4.7 references but doesn't show in the excerpted source. It does not
// check the available budget.
func (s *DefaultStrategy) CheckBuyOptions(book *orderbook.Book, prices model.Row, timestampMs int64) []BuyOption {
	if s.Candidates == nil || s.AmountInvestFiat <= 0 {
		return nil
	}

	open := book.OpenOrders()
	if s.AssetBuyLimit > 0 && len(open) >= s.AssetBuyLimit {
		return nil
	}

	held := make(map[string]bool, len(open))
	for _, o := range open {
		held[o.Asset] = true
	}

	var options []BuyOption
	for _, asset := range s.Candidates(prices) {
		if held[asset] {
			continue
		}
		candle, ok := prices[asset]
		if !ok || candle.Empty() {
			continue
		}

		options = append(options, BuyOption{
			Asset:       asset,
			Price:       candle.Close,
			AmountFiat:  s.AmountInvestFiat,
			PriceProfit: candle.Close * s.ProfitFactorTarget,
		})

		if s.AssetBuyLimit > 0 && len(open)+len(options) >= s.AssetBuyLimit {
			break
		}
	}
	return options
}
