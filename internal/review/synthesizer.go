package review

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/ai"
	"github.com/kirillm/rebalance-bot/internal/analyst"
	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/portfolio"
)

const decisionInstructions = `You are a crypto portfolio manager making the final
rebalancing call for a two-leg portfolio.

You receive:
- allocation_floors: minimum percentage each token must keep;
- risk_profile: the owner's risk appetite (conservative, balanced, aggressive);
- portfolio: current legs with USD values, allocations and PnL;
- reports: per-token analyst notes (news, tech, orderbook);
- performance: a review of recently closed orders;
- previous_decisions: up to five of your own past decisions, newest first.

Rules:
- newAllocation is the target percentage of the FIRST portfolio leg.
- Never set an allocation that would push any token below its floor.
- Size allocation moves according to risk_profile: small steps for
  conservative, larger ones only for aggressive.
- Prefer continuity: do not flip direction without strong new evidence.
- If the supplied data is insufficient or contradictory, return the error
  variant instead of guessing.
- shortReport is two or three sentences, no markdown.`

// Synthesizer выполняет финальный decision-запрос цикла ревью.
// Не ретраит: повтор — это следующий цикл по расписанию.
type Synthesizer struct {
	model   analyst.Model
	results domain.ReviewResultRepository
	log     zerolog.Logger
}

// NewSynthesizer создает синтезатор решений
func NewSynthesizer(model analyst.Model, results domain.ReviewResultRepository, log zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		model:   model,
		results: results,
		log:     log.With().Str("component", "synthesizer").Logger(),
	}
}

// Synthesize собирает финальный промпт и разбирает решение модели.
// Любой сбой вызова или разбора — null decision: ошибка наверх, строка
// результата не пишется, ордер не планируется. Вариант {error} от модели —
// валидное решение, оно сохраняется с заполненным error_message.
func (s *Synthesizer) Synthesize(ctx context.Context, agent *domain.Agent, runID string, snap *portfolio.Snapshot, report analyst.Report, perf analyst.Note) (*domain.ReviewResult, error) {
	previous, err := s.results.GetRecent(agent.ID, domain.PreviousDecisionsLimit)
	if err != nil {
		// непрерывность желательна, но не обязательна
		s.log.Warn().Err(err).Int64("agent_id", agent.ID).Msg("⚠️ Прошлые решения недоступны")
		previous = nil
	}
	previousDecisions := make([]domain.RebalanceDecision, 0, len(previous))
	for _, r := range previous {
		previousDecisions = append(previousDecisions, r.Decision())
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"allocation_floors":  agent.Tokens,
		"risk_profile":       agent.RiskProfile,
		"portfolio":          snap,
		"reports":            report,
		"performance":        perf,
		"previous_decisions": previousDecisions,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal decision input: %w", err)
	}

	instructions := decisionInstructions
	if agent.Instructions != "" {
		instructions = fmt.Sprintf("%s\n\nPortfolio owner notes:\n%s", decisionInstructions, agent.Instructions)
	}

	resp, err := s.model.Respond(ctx, ai.Request{
		Model:        agent.Model,
		Instructions: instructions,
		Input:        string(payload),
		SchemaName:   ai.SchemaNameDecision,
		Schema:       ai.DecisionSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decision request failed: %v", domain.ErrNullDecision, err)
	}

	var decision domain.RebalanceDecision
	if err := json.Unmarshal([]byte(resp.Text), &decision); err != nil {
		s.log.Error().
			Str("run_id", runID).
			Str("raw", resp.Text).
			Msg("Неразборчивое решение модели")
		return nil, fmt.Errorf("%w: unparseable decision payload: %v", domain.ErrNullDecision, err)
	}
	if err := decision.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNullDecision, err)
	}

	result := &domain.ReviewResult{
		AgentID:       agent.ID,
		RunID:         runID,
		Rebalance:     decision.Rebalance,
		NewAllocation: decision.NewAllocation,
		ShortReport:   decision.ShortReport,
		ErrorMessage:  decision.Error,
	}
	if err := s.results.Save(result); err != nil {
		return nil, fmt.Errorf("failed to save review result: %w", err)
	}

	s.log.Info().
		Str("run_id", runID).
		Int64("agent_id", agent.ID).
		Bool("rebalance", decision.Rebalance).
		Msg("✅ Решение синтезировано")

	return result, nil
}
