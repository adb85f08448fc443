package analyst

import (
	"context"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

const performanceInstructions = `You are a trading-performance reviewer.
You receive the portfolio's recently closed limit orders together with the
merged analyst reports from the current review cycle.

Rules:
- Judge whether recent rebalancing activity has been effective and whether
  the current reports support more of the same behaviour.
- score 0 means the recent strategy clearly fails, 5 inconclusive,
  10 clearly effective.
- comment is one or two sentences, no markdown.`

// Performance оценивает эффективность последних сделок агента.
// Выполняется строго после объединения остальных отчетов.
func (a *Analysts) Performance(ctx context.Context, agent *domain.Agent, runID string, report Report) Note {
	orders, err := a.orders.GetRecentClosed(agent.ID, domain.PerformanceOrdersLimit)
	if err != nil {
		a.log.Warn().Err(err).
			Str("run_id", runID).
			Int64("agent_id", agent.ID).
			Msg("⚠️ История ордеров недоступна, performance-аналитик пропущен")
		return FallbackNote()
	}

	input, err := marshalInput(map[string]interface{}{
		"recent_orders": orders,
		"reports":       report,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("run_id", runID).Msg("performance prompt build failed")
		return FallbackNote()
	}

	return a.call(ctx, agent, runID, domain.AnalystPerformance, agent.Symbol(), performanceInstructions, input)
}
