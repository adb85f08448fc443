package market

import (
	"fmt"

	"github.com/kirillm/rebalance-bot/internal/exchange"
)

// OrderBookSnapshot нормализованный снимок стакана для пары
type OrderBookSnapshot struct {
	Symbol       string  `json:"symbol"`
	BestBid      float64 `json:"best_bid"`
	BestAsk      float64 `json:"best_ask"`
	Mid          float64 `json:"mid"`
	SpreadBps    float64 `json:"spread_bps"`
	BidDepthUSD  float64 `json:"bid_depth_usd"`
	AskDepthUSD  float64 `json:"ask_depth_usd"`
	Imbalance    float64 `json:"imbalance"` // (bid-ask)/(bid+ask), [-1,1]
	LevelsPerSide int    `json:"levels_per_side"`
}

// BuildOrderBookSnapshot сводит сырой стакан в числовой снимок
func BuildOrderBookSnapshot(book *exchange.OrderBook) (*OrderBookSnapshot, error) {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, fmt.Errorf("empty order book for %s", book.Symbol)
	}

	bestBid := book.Bids[0].Price
	bestAsk := book.Asks[0].Price
	mid := (bestBid + bestAsk) / 2

	var bidDepth, askDepth float64
	for _, lvl := range book.Bids {
		bidDepth += lvl.Price * lvl.Size
	}
	for _, lvl := range book.Asks {
		askDepth += lvl.Price * lvl.Size
	}

	snap := &OrderBookSnapshot{
		Symbol:        book.Symbol,
		BestBid:       bestBid,
		BestAsk:       bestAsk,
		Mid:           mid,
		BidDepthUSD:   bidDepth,
		AskDepthUSD:   askDepth,
		LevelsPerSide: len(book.Bids),
	}
	if mid > 0 {
		snap.SpreadBps = (bestAsk - bestBid) / mid * 10000
	}
	if total := bidDepth + askDepth; total > 0 {
		snap.Imbalance = (bidDepth - askDepth) / total
	}

	return snap, nil
}
