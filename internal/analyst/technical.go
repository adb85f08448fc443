package analyst

import (
	"context"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

const technicalInstructions = `You are a crypto technical analyst.
You receive a snapshot of numeric indicators for a single token computed
from hourly candles: multi-horizon returns, moving-average distance, MACD
histogram, realized volatility, ATR, Bollinger bandwidth, Donchian range,
volume z-score, RSI, stochastic oscillator, BTC correlation and a regime
label.

Rules:
- Judge the short-term technical posture of the token.
- score 0 means strongly bearish technicals, 5 neutral, 10 strongly bullish.
- Weigh the regime label together with momentum and volatility readings.
- comment is one or two sentences, no markdown.`

// Technical оценивает техническую картину токена по снимку индикаторов
func (a *Analysts) Technical(ctx context.Context, agent *domain.Agent, runID, token string) Note {
	snapshot, err := a.signals.Technical(ctx, token)
	if err != nil {
		a.log.Warn().Err(err).
			Str("run_id", runID).
			Str("token", token).
			Msg("⚠️ Индикаторы недоступны, technical-аналитик пропущен")
		return FallbackNote()
	}

	input, err := marshalInput(snapshot)
	if err != nil {
		a.log.Warn().Err(err).Str("run_id", runID).Msg("technical prompt build failed")
		return FallbackNote()
	}

	return a.call(ctx, agent, runID, domain.AnalystTechnical, token, technicalInstructions, input)
}
