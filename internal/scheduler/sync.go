package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

// AgentSource источник активных агентов
type AgentSource interface {
	GetActive() ([]domain.Agent, error)
}

// AgentSync держит расписание ревью в соответствии со списком активных
// агентов. Агент, активированный после старта процесса, получает запись
// на следующем проходе синхронизации без рестарта; деактивированный
// снимается с расписания.
type AgentSync struct {
	sched           *Scheduler
	agents          AgentSource
	defaultInterval time.Duration
	makeJob         func(agent domain.Agent) Job
	log             zerolog.Logger

	mu      sync.Mutex
	entries map[int64]cron.EntryID
}

// NewAgentSync создает синхронизатор расписания ревью
func NewAgentSync(sched *Scheduler, agents AgentSource, defaultInterval time.Duration, makeJob func(agent domain.Agent) Job, log zerolog.Logger) *AgentSync {
	return &AgentSync{
		sched:           sched,
		agents:          agents,
		defaultInterval: defaultInterval,
		makeJob:         makeJob,
		log:             log.With().Str("component", "scheduler").Logger(),
		entries:         make(map[int64]cron.EntryID),
	}
}

func (s *AgentSync) Name() string {
	return "review-schedule-sync"
}

// Run выполняет один проход синхронизации: добавляет записи для новых
// активных агентов и снимает записи деактивированных. Сбой выборки
// агентов оставляет расписание как есть до следующего прохода.
func (s *AgentSync) Run(_ context.Context) error {
	active, err := s.agents.GetActive()
	if err != nil {
		return fmt.Errorf("failed to load active agents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]bool, len(active))
	for _, agent := range active {
		seen[agent.ID] = true
		if _, ok := s.entries[agent.ID]; ok {
			continue
		}

		interval := agent.ReviewInterval
		if interval <= 0 {
			interval = s.defaultInterval
		}
		id, err := s.sched.AddEvery(interval, s.makeJob(agent))
		if err != nil {
			return err
		}
		s.entries[agent.ID] = id
	}

	for agentID, id := range s.entries {
		if seen[agentID] {
			continue
		}
		s.sched.Remove(id)
		delete(s.entries, agentID)
		s.log.Info().Int64("agent_id", agentID).Msg("🗑 Ревью снято с расписания")
	}

	return nil
}
