package analyst

import (
	"context"
	"fmt"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

const newsInstructions = `You are a crypto news analyst.
You receive recent headlines about a single token and must judge their
aggregate sentiment and likely short-term price impact.

Rules:
- Base your judgement only on the supplied headlines.
- score 0 means maximally bearish, 5 neutral, 10 maximally bullish.
- If the headlines are sparse or contradictory, stay close to 5.
- comment is one or two sentences, no markdown.`

// News оценивает новостной фон токена. Сбой получения заголовков
// или вызова модели деградирует в fallback-заметку.
func (a *Analysts) News(ctx context.Context, agent *domain.Agent, runID, token string) Note {
	headlines, err := a.signals.News(ctx, token)
	if err != nil {
		a.log.Warn().Err(err).
			Str("run_id", runID).
			Str("token", token).
			Msg("⚠️ Заголовки недоступны, news-аналитик пропущен")
		return FallbackNote()
	}

	input, err := marshalInput(map[string]interface{}{
		"token":     token,
		"headlines": headlines,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("run_id", runID).Msg("news prompt build failed")
		return FallbackNote()
	}

	instructions := newsInstructions
	if agent.Instructions != "" {
		instructions = fmt.Sprintf("%s\n\nPortfolio owner notes:\n%s", newsInstructions, agent.Instructions)
	}

	return a.call(ctx, agent, runID, domain.AnalystNews, token, instructions, input)
}
