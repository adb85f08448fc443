package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

// AgentRepository реализует работу с агентами
type AgentRepository struct {
	db *sql.DB
}

// NewAgentRepository создает новый репозиторий агентов
func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create сохраняет нового агента
func (r *AgentRepository) Create(agent *domain.Agent) error {
	tokens, err := json.Marshal(agent.Tokens)
	if err != nil {
		return fmt.Errorf("marshal agent tokens: %w", err)
	}

	agent.CreatedAt = time.Now()
	agent.UpdatedAt = agent.CreatedAt

	query := `
		INSERT INTO agents (user_id, name, tokens, risk_profile, review_interval_minutes, instructions, model, status, start_balance_usd, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		agent.UserID,
		agent.Name,
		tokens,
		agent.RiskProfile,
		int(agent.ReviewInterval.Minutes()),
		agent.Instructions,
		agent.Model,
		agent.Status,
		agent.StartBalanceUSD,
		agent.CreatedAt,
		agent.UpdatedAt,
	).Scan(&agent.ID)
}

// GetByID получает агента по id
func (r *AgentRepository) GetByID(id int64) (*domain.Agent, error) {
	query := `
		SELECT id, user_id, name, tokens, risk_profile, review_interval_minutes, instructions, model, status, start_balance_usd, created_at, updated_at
		FROM agents
		WHERE id = $1
	`
	agent, err := scanAgent(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return agent, err
}

// GetActive получает всех активных агентов
func (r *AgentRepository) GetActive() ([]domain.Agent, error) {
	query := `
		SELECT id, user_id, name, tokens, risk_profile, review_interval_minutes, instructions, model, status, start_balance_usd, created_at, updated_at
		FROM agents
		WHERE status = $1
		ORDER BY id
	`
	rows, err := r.db.Query(query, domain.AgentStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// UpdateStatus обновляет статус агента.
// Стартовый баланс перезаписывается только при активации.
func (r *AgentRepository) UpdateStatus(id int64, status domain.AgentStatus, startBalanceUSD float64) error {
	var query string
	var err error
	if status == domain.AgentStatusActive {
		query = `UPDATE agents SET status = $1, start_balance_usd = $2, updated_at = NOW() WHERE id = $3`
		_, err = r.db.Exec(query, status, startBalanceUSD, id)
	} else {
		query = `UPDATE agents SET status = $1, updated_at = NOW() WHERE id = $2`
		_, err = r.db.Exec(query, status, id)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var agent domain.Agent
	var tokens []byte
	var intervalMinutes int

	err := row.Scan(
		&agent.ID,
		&agent.UserID,
		&agent.Name,
		&tokens,
		&agent.RiskProfile,
		&intervalMinutes,
		&agent.Instructions,
		&agent.Model,
		&agent.Status,
		&agent.StartBalanceUSD,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tokens, &agent.Tokens); err != nil {
		return nil, fmt.Errorf("unmarshal agent tokens: %w", err)
	}
	agent.ReviewInterval = time.Duration(intervalMinutes) * time.Minute

	return &agent, nil
}
