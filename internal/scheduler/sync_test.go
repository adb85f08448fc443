package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

type fakeAgentSource struct {
	agents []domain.Agent
	err    error
}

func (f *fakeAgentSource) GetActive() ([]domain.Agent, error) {
	return f.agents, f.err
}

type noopJob struct {
	name string
}

func (j *noopJob) Name() string { return j.name }

func (j *noopJob) Run(context.Context) error { return nil }

func newSync(source *fakeAgentSource) *AgentSync {
	sched := New(context.Background(), zerolog.Nop())
	return NewAgentSync(sched, source, 30*time.Minute, func(agent domain.Agent) Job {
		return &noopJob{name: fmt.Sprintf("review-agent-%d", agent.ID)}
	}, zerolog.Nop())
}

func TestAgentSync_ActivatedAgentScheduledWithoutRestart(t *testing.T) {
	source := &fakeAgentSource{agents: []domain.Agent{
		{ID: 1, Status: domain.AgentStatusActive, ReviewInterval: time.Hour},
	}}
	sync := newSync(source)

	require.NoError(t, sync.Run(context.Background()))
	require.Len(t, sync.entries, 1)

	// агент 2 активирован после старта: следующий проход добавляет запись
	source.agents = append(source.agents, domain.Agent{ID: 2, Status: domain.AgentStatusActive})
	require.NoError(t, sync.Run(context.Background()))
	assert.Len(t, sync.entries, 2)
	assert.Contains(t, sync.entries, int64(2))
}

func TestAgentSync_RepeatedRunIsIdempotent(t *testing.T) {
	source := &fakeAgentSource{agents: []domain.Agent{
		{ID: 1, Status: domain.AgentStatusActive, ReviewInterval: time.Hour},
	}}
	sync := newSync(source)

	require.NoError(t, sync.Run(context.Background()))
	first := sync.entries[1]
	require.NoError(t, sync.Run(context.Background()))
	assert.Len(t, sync.entries, 1)
	assert.Equal(t, first, sync.entries[1], "existing entry must not be re-registered")
}

func TestAgentSync_DeactivatedAgentRemoved(t *testing.T) {
	source := &fakeAgentSource{agents: []domain.Agent{
		{ID: 1, Status: domain.AgentStatusActive, ReviewInterval: time.Hour},
		{ID: 2, Status: domain.AgentStatusActive},
	}}
	sync := newSync(source)

	require.NoError(t, sync.Run(context.Background()))
	require.Len(t, sync.entries, 2)

	source.agents = source.agents[:1]
	require.NoError(t, sync.Run(context.Background()))
	assert.Len(t, sync.entries, 1)
	assert.Contains(t, sync.entries, int64(1))
}

func TestAgentSync_SourceFailureKeepsSchedule(t *testing.T) {
	source := &fakeAgentSource{agents: []domain.Agent{
		{ID: 1, Status: domain.AgentStatusActive, ReviewInterval: time.Hour},
	}}
	sync := newSync(source)
	require.NoError(t, sync.Run(context.Background()))

	source.err = errors.New("db down")
	require.Error(t, sync.Run(context.Background()))
	assert.Len(t, sync.entries, 1, "schedule stays intact until the next successful pass")
}
