package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/portfolio"
)

type fakeAgentRepo struct {
	domain.AgentRepository
	agents       map[int64]*domain.Agent
	created      int
	statusCalls  int
	lastStatus   domain.AgentStatus
	lastStartUSD float64
}

func newFakeAgentRepo(agents ...*domain.Agent) *fakeAgentRepo {
	f := &fakeAgentRepo{agents: make(map[int64]*domain.Agent)}
	for _, a := range agents {
		f.agents[a.ID] = a
	}
	return f
}

func (f *fakeAgentRepo) Create(agent *domain.Agent) error {
	f.created++
	agent.ID = int64(f.created)
	f.agents[agent.ID] = agent
	return nil
}

func (f *fakeAgentRepo) GetByID(id int64) (*domain.Agent, error) {
	agent, ok := f.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return agent, nil
}

func (f *fakeAgentRepo) UpdateStatus(id int64, status domain.AgentStatus, startBalanceUSD float64) error {
	f.statusCalls++
	f.lastStatus = status
	f.lastStartUSD = startBalanceUSD
	f.agents[id].Status = status
	return nil
}

type fakeSnapshots struct {
	total float64
	err   error
}

func (f *fakeSnapshots) Build(context.Context, *domain.Agent) (*portfolio.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &portfolio.Snapshot{TotalValueUSD: f.total}, nil
}

func validAgent() *domain.Agent {
	return &domain.Agent{
		UserID:         1,
		Name:           "BTC portfolio",
		Model:          "gpt-test",
		ReviewInterval: time.Hour,
		Tokens: []domain.AgentToken{
			{Token: "BTC", MinAllocation: 20},
			{Token: "USDT", MinAllocation: 10},
		},
	}
}

func TestCreate_Valid(t *testing.T) {
	repo := newFakeAgentRepo()
	svc := NewService(repo, &fakeSnapshots{}, zerolog.Nop())

	agent := validAgent()
	require.NoError(t, svc.Create(agent))

	assert.Equal(t, domain.AgentStatusDraft, agent.Status)
	assert.Equal(t, domain.RiskBalanced, agent.RiskProfile, "empty risk profile defaults to balanced")
	assert.NotZero(t, agent.ID)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Agent)
		wantErr error
	}{
		{
			name:    "single token",
			mutate:  func(a *domain.Agent) { a.Tokens = a.Tokens[:1] },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "duplicate tokens",
			mutate: func(a *domain.Agent) {
				a.Tokens = []domain.AgentToken{{Token: "BTC"}, {Token: "BTC"}}
			},
			wantErr: domain.ErrTokenConflict,
		},
		{
			name:    "floor above 100",
			mutate:  func(a *domain.Agent) { a.Tokens[0].MinAllocation = 120 },
			wantErr: domain.ErrInvalidAllocation,
		},
		{
			name:    "negative floor",
			mutate:  func(a *domain.Agent) { a.Tokens[1].MinAllocation = -5 },
			wantErr: domain.ErrInvalidAllocation,
		},
		{
			name: "floors sum above 100",
			mutate: func(a *domain.Agent) {
				a.Tokens[0].MinAllocation = 60
				a.Tokens[1].MinAllocation = 50
			},
			wantErr: domain.ErrInvalidAllocation,
		},
		{
			name:    "interval too short",
			mutate:  func(a *domain.Agent) { a.ReviewInterval = time.Minute },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "empty name",
			mutate:  func(a *domain.Agent) { a.Name = "" },
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown risk profile",
			mutate:  func(a *domain.Agent) { a.RiskProfile = "reckless" },
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeAgentRepo()
			svc := NewService(repo, &fakeSnapshots{}, zerolog.Nop())

			agent := validAgent()
			tt.mutate(agent)

			err := svc.Create(agent)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			// невалидный вход отклоняется до любых внешних вызовов
			assert.Zero(t, repo.created)
		})
	}
}

func TestActivate_RecordsStartBalance(t *testing.T) {
	agent := validAgent()
	agent.ID = 1
	agent.Status = domain.AgentStatusDraft
	repo := newFakeAgentRepo(agent)
	svc := NewService(repo, &fakeSnapshots{total: 1234.5}, zerolog.Nop())

	require.NoError(t, svc.Activate(context.Background(), 1))

	assert.Equal(t, domain.AgentStatusActive, repo.lastStatus)
	assert.Equal(t, 1234.5, repo.lastStartUSD)
}

func TestActivate_AlreadyActiveIsNoop(t *testing.T) {
	agent := validAgent()
	agent.ID = 1
	agent.Status = domain.AgentStatusActive
	repo := newFakeAgentRepo(agent)
	svc := NewService(repo, &fakeSnapshots{total: 500}, zerolog.Nop())

	require.NoError(t, svc.Activate(context.Background(), 1))
	assert.Zero(t, repo.statusCalls)
}

func TestActivate_SnapshotFailureAborts(t *testing.T) {
	agent := validAgent()
	agent.ID = 1
	repo := newFakeAgentRepo(agent)
	svc := NewService(repo, &fakeSnapshots{err: errors.New("exchange down")}, zerolog.Nop())

	require.Error(t, svc.Activate(context.Background(), 1))
	assert.Zero(t, repo.statusCalls)
}

func TestDeactivate(t *testing.T) {
	agent := validAgent()
	agent.ID = 1
	agent.Status = domain.AgentStatusActive
	repo := newFakeAgentRepo(agent)
	svc := NewService(repo, &fakeSnapshots{}, zerolog.Nop())

	require.NoError(t, svc.Deactivate(1))
	assert.Equal(t, domain.AgentStatusInactive, repo.lastStatus)

	// повторная деактивация без дополнительных записей
	repo.statusCalls = 0
	require.NoError(t, svc.Deactivate(1))
	assert.Zero(t, repo.statusCalls)
}
