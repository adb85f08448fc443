package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/kirillm/rebalance-bot/internal/analyst"
	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/portfolio"
)

// SnapshotBuilder строит снимок портфеля агента
type SnapshotBuilder interface {
	Build(ctx context.Context, agent *domain.Agent) (*portfolio.Snapshot, error)
}

// OrderPlanner превращает решение в размещенный лимитный ордер
type OrderPlanner interface {
	Plan(ctx context.Context, agent *domain.Agent, snap *portfolio.Snapshot, newAllocation float64, reviewResultID int64) (*domain.LimitOrder, error)
}

// Notifier уведомляет оператора о завершенных решениях
type Notifier interface {
	NotifyDecision(agent *domain.Agent, result *domain.ReviewResult, order *domain.LimitOrder)
}

// Orchestrator выполняет один цикл ревью агента: параллельный сбор
// аналитики, performance-обзор, синтез решения и планирование ордера.
type Orchestrator struct {
	analysts  *analyst.Analysts
	synth     *Synthesizer
	snapshots SnapshotBuilder
	planner   OrderPlanner
	notifier  Notifier
	workers   int
	log       zerolog.Logger
}

// NewOrchestrator создает оркестратор циклов ревью
func NewOrchestrator(analysts *analyst.Analysts, synth *Synthesizer, snapshots SnapshotBuilder, planner OrderPlanner, notifier Notifier, workers int, log zerolog.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		analysts:  analysts,
		synth:     synth,
		snapshots: snapshots,
		planner:   planner,
		notifier:  notifier,
		workers:   workers,
		log:       log.With().Str("component", "review").Logger(),
	}
}

// Run выполняет один цикл ревью для агента.
// Порядок фаз фиксирован: параллельные аналитики -> performance -> синтез ->
// планировщик. Сбой отдельного аналитика деградирует в fallback и цикл
// продолжается; сбой синтеза прерывает цикл без ордера.
func (o *Orchestrator) Run(ctx context.Context, agent *domain.Agent) error {
	if !agent.IsActive() {
		return fmt.Errorf("agent %d: %w", agent.ID, domain.ErrAgentNotActive)
	}

	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Int64("agent_id", agent.ID).Logger()
	log.Info().Str("symbol", agent.Symbol()).Msg("🔍 Цикл ревью запущен")

	snap, err := o.snapshots.Build(ctx, agent)
	if err != nil {
		return fmt.Errorf("review %s: snapshot failed: %w", runID, err)
	}

	report := o.fanOut(ctx, agent, runID)

	// Performance строго после объединения остальных отчетов
	perf := o.analysts.Performance(ctx, agent, runID, report)

	result, err := o.synth.Synthesize(ctx, agent, runID, snap, report, perf)
	if err != nil {
		return fmt.Errorf("review %s: %w", runID, err)
	}

	if result.ErrorMessage != "" {
		log.Warn().Str("error", result.ErrorMessage).Msg("Модель вернула отказ от решения")
		o.notify(agent, result, nil)
		return nil
	}

	var order *domain.LimitOrder
	if result.Rebalance {
		order, err = o.planner.Plan(ctx, agent, snap, *result.NewAllocation, result.ID)
		if err != nil {
			return fmt.Errorf("review %s: planner failed: %w", runID, err)
		}
	}

	o.notify(agent, result, order)
	log.Info().Bool("rebalance", result.Rebalance).Bool("order_placed", order != nil).Msg("✅ Цикл ревью завершен")
	return nil
}

// fanOut параллельно запускает news/tech аналитиков по каждому
// не-стейблкоину и orderbook-аналитика по паре. Карта отчетов
// преаллоцирована, каждая горутина пишет только в свое поле,
// поэтому блокировки не нужны.
func (o *Orchestrator) fanOut(ctx context.Context, agent *domain.Agent, runID string) analyst.Report {
	symbol := agent.Symbol()

	report := analyst.Report{symbol: {}}
	var tokens []string
	for _, at := range agent.Tokens {
		if domain.IsStablecoin(at.Token) {
			continue
		}
		tokens = append(tokens, at.Token)
		report[at.Token] = &analyst.TokenReport{}
	}

	p := pool.New().WithMaxGoroutines(o.workers)
	for _, token := range tokens {
		token := token
		p.Go(func() {
			note := o.analysts.News(ctx, agent, runID, token)
			report[token].News = &note
		})
		p.Go(func() {
			note := o.analysts.Technical(ctx, agent, runID, token)
			report[token].Tech = &note
		})
	}
	p.Go(func() {
		note := o.analysts.OrderBook(ctx, agent, runID, symbol)
		report[symbol].OrderBook = &note
	})
	p.Wait()

	return report
}

func (o *Orchestrator) notify(agent *domain.Agent, result *domain.ReviewResult, order *domain.LimitOrder) {
	if o.notifier == nil {
		return
	}
	o.notifier.NotifyDecision(agent, result, order)
}
