package analyst

import (
	"context"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

const orderBookInstructions = `You are a crypto market-microstructure analyst.
You receive an order-book snapshot for a single trading pair: best bid/ask,
mid price, spread in basis points, aggregated bid/ask depth in USD and the
depth imbalance.

Rules:
- Judge near-term pressure: positive imbalance and tight spread lean bullish,
  heavy ask depth and wide spread lean bearish.
- score 0 means strong sell pressure, 5 balanced, 10 strong buy pressure.
- comment is one or two sentences, no markdown.`

// OrderBook оценивает давление в стакане торговой пары
func (a *Analysts) OrderBook(ctx context.Context, agent *domain.Agent, runID, symbol string) Note {
	snapshot, err := a.signals.OrderBook(ctx, symbol)
	if err != nil {
		a.log.Warn().Err(err).
			Str("run_id", runID).
			Str("symbol", symbol).
			Msg("⚠️ Стакан недоступен, orderbook-аналитик пропущен")
		return FallbackNote()
	}

	input, err := marshalInput(snapshot)
	if err != nil {
		a.log.Warn().Err(err).Str("run_id", runID).Msg("orderbook prompt build failed")
		return FallbackNote()
	}

	return a.call(ctx, agent, runID, domain.AnalystOrderBook, symbol, orderBookInstructions, input)
}
