package analyst

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/ai"
	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/market"
)

// Note результат одного вызова аналитика
type Note struct {
	Comment string  `json:"comment"`
	Score   float64 `json:"score"`
}

// FallbackNote возвращается вместо результата при любом сбое аналитика.
// Сбой одного аналитика не прерывает цикл ревью.
func FallbackNote() Note {
	return Note{Comment: "Analysis unavailable", Score: 0}
}

// TokenReport собранные заметки аналитиков по одному субъекту (токен или пара)
type TokenReport struct {
	News      *Note `json:"news,omitempty"`
	Tech      *Note `json:"tech,omitempty"`
	OrderBook *Note `json:"orderbook,omitempty"`
}

// Report карта отчетов, ключ — токен или торговая пара
type Report map[string]*TokenReport

// Signals подмножество рыночных провайдеров, нужное аналитикам
type Signals interface {
	Technical(ctx context.Context, token string) (*market.TechnicalSnapshot, error)
	OrderBook(ctx context.Context, symbol string) (*market.OrderBookSnapshot, error)
	News(ctx context.Context, token string) ([]market.Headline, error)
}

// Model интерфейс decision-модели
type Model interface {
	Respond(ctx context.Context, req ai.Request) (*ai.Response, error)
}

// Analysts выполняет отдельные аналитические вызовы для цикла ревью
type Analysts struct {
	model   Model
	signals Signals
	orders  domain.LimitOrderRepository
	audit   domain.AnalysisLogRepository
	log     zerolog.Logger
}

// New создает набор аналитиков
func New(model Model, signals Signals, orders domain.LimitOrderRepository, audit domain.AnalysisLogRepository, log zerolog.Logger) *Analysts {
	return &Analysts{
		model:   model,
		signals: signals,
		orders:  orders,
		audit:   audit,
		log:     log.With().Str("component", "analyst").Logger(),
	}
}

// call отправляет запрос модели и разбирает заметку аналитика.
// Аудит-запись пишется для каждого вызова, который дошел до модели,
// включая вызовы с неразборчивым ответом. Сбой до запроса аудита не оставляет.
func (a *Analysts) call(ctx context.Context, agent *domain.Agent, runID, analyst, subject, instructions, input string) Note {
	resp, err := a.model.Respond(ctx, ai.Request{
		Model:        agent.Model,
		Instructions: instructions,
		Input:        input,
		SchemaName:   ai.SchemaNameAnalystNote,
		Schema:       ai.AnalystNoteSchema(),
	})
	if err != nil {
		a.log.Warn().Err(err).
			Str("run_id", runID).
			Str("analyst", analyst).
			Str("subject", subject).
			Msg("⚠️ Вызов аналитика не удался, используем fallback")
		if resp != nil && resp.Raw != "" {
			a.saveAudit(agent.ID, runID, analyst, subject, nil, input, resp.Raw)
		}
		return FallbackNote()
	}

	var note Note
	if err := json.Unmarshal([]byte(resp.Text), &note); err != nil {
		a.log.Warn().Err(err).
			Str("run_id", runID).
			Str("analyst", analyst).
			Str("subject", subject).
			Msg("⚠️ Неразборчивый ответ аналитика, используем fallback")
		a.saveAudit(agent.ID, runID, analyst, subject, nil, input, resp.Raw)
		return FallbackNote()
	}

	a.saveAudit(agent.ID, runID, analyst, subject, &note, input, resp.Raw)
	return note
}

func (a *Analysts) saveAudit(agentID int64, runID, analyst, subject string, note *Note, prompt, response string) {
	row := &domain.AnalysisLog{
		AgentID:  agentID,
		RunID:    runID,
		Analyst:  analyst,
		Subject:  subject,
		Prompt:   prompt,
		Response: response,
	}
	if note != nil {
		row.Comment = &note.Comment
		row.Score = &note.Score
	}
	if err := a.audit.Save(row); err != nil {
		a.log.Error().Err(err).
			Str("run_id", runID).
			Str("analyst", analyst).
			Msg("Не удалось сохранить аудит-запись аналитика")
	}
}

// marshalInput сериализует входные данные промпта
func marshalInput(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt input: %w", err)
	}
	return string(data), nil
}
