package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/portfolio"
)

// Границы интервала ревью
const (
	minReviewInterval = 5 * time.Minute
	maxReviewInterval = 7 * 24 * time.Hour
)

// SnapshotBuilder строит снимок портфеля для фиксации стартового баланса
type SnapshotBuilder interface {
	Build(ctx context.Context, agent *domain.Agent) (*portfolio.Snapshot, error)
}

// Service управляет жизненным циклом агентов.
// Вся валидация входа выполняется до любых внешних вызовов.
type Service struct {
	agents    domain.AgentRepository
	snapshots SnapshotBuilder
	log       zerolog.Logger
}

// NewService создает сервис агентов
func NewService(agents domain.AgentRepository, snapshots SnapshotBuilder, log zerolog.Logger) *Service {
	return &Service{
		agents:    agents,
		snapshots: snapshots,
		log:       log.With().Str("component", "agents").Logger(),
	}
}

// Create валидирует и сохраняет нового агента в статусе draft
func (s *Service) Create(agent *domain.Agent) error {
	if err := validate(agent); err != nil {
		return err
	}

	agent.Status = domain.AgentStatusDraft
	agent.StartBalanceUSD = 0
	if err := s.agents.Create(agent); err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	s.log.Info().
		Int64("agent_id", agent.ID).
		Str("name", agent.Name).
		Str("symbol", agent.Symbol()).
		Msg("📝 Агент создан")
	return nil
}

// Activate включает агента и фиксирует стартовый USD-баланс портфеля.
// Стартовый баланс — база для расчета PnL на всех последующих ревью.
func (s *Service) Activate(ctx context.Context, id int64) error {
	agent, err := s.agents.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to load agent %d: %w", id, err)
	}
	if agent.IsActive() {
		return nil
	}

	snap, err := s.snapshots.Build(ctx, agent)
	if err != nil {
		return fmt.Errorf("failed to snapshot portfolio for activation: %w", err)
	}

	if err := s.agents.UpdateStatus(id, domain.AgentStatusActive, snap.TotalValueUSD); err != nil {
		return fmt.Errorf("failed to activate agent %d: %w", id, err)
	}

	s.log.Info().
		Int64("agent_id", id).
		Float64("start_balance_usd", snap.TotalValueUSD).
		Msg("✅ Агент активирован")
	return nil
}

// Deactivate выключает агента. Его открытые ордера отменит reconcile-джоба.
func (s *Service) Deactivate(id int64) error {
	agent, err := s.agents.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to load agent %d: %w", id, err)
	}
	if agent.Status == domain.AgentStatusInactive {
		return nil
	}

	if err := s.agents.UpdateStatus(id, domain.AgentStatusInactive, 0); err != nil {
		return fmt.Errorf("failed to deactivate agent %d: %w", id, err)
	}

	s.log.Info().Int64("agent_id", id).Msg("🗑 Агент деактивирован")
	return nil
}

// validate проверяет входные данные агента до любых внешних вызовов
func validate(agent *domain.Agent) error {
	if agent.Name == "" {
		return fmt.Errorf("%w: empty agent name", domain.ErrInvalidInput)
	}
	if agent.Model == "" {
		return fmt.Errorf("%w: empty model identifier", domain.ErrInvalidInput)
	}
	if len(agent.Tokens) < 2 {
		return fmt.Errorf("%w: agent needs at least 2 tokens", domain.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(agent.Tokens))
	var floorSum float64
	for _, at := range agent.Tokens {
		if at.Token == "" {
			return fmt.Errorf("%w: empty token", domain.ErrInvalidInput)
		}
		if seen[at.Token] {
			return fmt.Errorf("%w: duplicate token %s", domain.ErrTokenConflict, at.Token)
		}
		seen[at.Token] = true

		if at.MinAllocation < 0 || at.MinAllocation > 100 {
			return fmt.Errorf("%w: floor %.2f for %s out of [0,100]", domain.ErrInvalidAllocation, at.MinAllocation, at.Token)
		}
		floorSum += at.MinAllocation
	}
	if floorSum > 100 {
		return fmt.Errorf("%w: floors sum to %.2f%%", domain.ErrInvalidAllocation, floorSum)
	}

	switch agent.RiskProfile {
	case "":
		agent.RiskProfile = domain.RiskBalanced
	case domain.RiskConservative, domain.RiskBalanced, domain.RiskAggressive:
	default:
		return fmt.Errorf("%w: unknown risk profile %q", domain.ErrInvalidInput, agent.RiskProfile)
	}

	if agent.ReviewInterval < minReviewInterval || agent.ReviewInterval > maxReviewInterval {
		return fmt.Errorf("%w: review interval %s out of [%s, %s]",
			domain.ErrInvalidInput, agent.ReviewInterval, minReviewInterval, maxReviewInterval)
	}

	return nil
}
