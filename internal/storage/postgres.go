package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/storage/repository"
)

// PostgresStorage фасад для работы с PostgreSQL через репозитории
type PostgresStorage struct {
	db       *sql.DB
	agents   *repository.AgentRepository
	orders   *repository.LimitOrderRepository
	results  *repository.ReviewResultRepository
	analysis *repository.AnalysisLogRepository
}

func NewPostgresStorage(host string, port int, user, password, dbname, sslmode string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*PostgresStorage, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabaseConnection, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	storage := &PostgresStorage{
		db:       db,
		agents:   repository.NewAgentRepository(db),
		orders:   repository.NewLimitOrderRepository(db),
		results:  repository.NewReviewResultRepository(db),
		analysis: repository.NewAnalysisLogRepository(db),
	}

	if err := storage.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) migrate() error {
	migrations := []string{
		// Агенты: портфель хранится как JSONB-массив {token, min_allocation}
		`CREATE TABLE IF NOT EXISTS agents (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			name VARCHAR(100) NOT NULL,
			tokens JSONB NOT NULL,
			risk_profile VARCHAR(20) NOT NULL DEFAULT 'balanced',
			review_interval_minutes INTEGER NOT NULL DEFAULT 60,
			instructions TEXT NOT NULL DEFAULT '',
			model VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			start_balance_usd DECIMAL(20, 8) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Лимитные ордера: строки никогда не удаляются (аудит)
		`CREATE TABLE IF NOT EXISTS limit_orders (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			agent_id BIGINT NOT NULL REFERENCES agents(id),
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			manually_edited BOOLEAN NOT NULL DEFAULT false,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			review_result_id BIGINT NOT NULL DEFAULT 0,
			exchange_order_id VARCHAR(100) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Результаты ревью (append-only)
		`CREATE TABLE IF NOT EXISTS review_results (
			id BIGSERIAL PRIMARY KEY,
			agent_id BIGINT NOT NULL REFERENCES agents(id),
			run_id VARCHAR(36) NOT NULL,
			rebalance BOOLEAN NOT NULL,
			new_allocation DECIMAL(10, 4),
			short_report TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Аудит вызовов аналитиков (append-only)
		`CREATE TABLE IF NOT EXISTS analysis_logs (
			id BIGSERIAL PRIMARY KEY,
			agent_id BIGINT NOT NULL REFERENCES agents(id),
			run_id VARCHAR(36) NOT NULL,
			analyst VARCHAR(20) NOT NULL,
			subject VARCHAR(20) NOT NULL,
			comment TEXT,
			score DECIMAL(5, 2),
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Индексы
		`CREATE INDEX IF NOT EXISTS idx_agents_user_id ON agents(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status)`,
		`CREATE INDEX IF NOT EXISTS idx_limit_orders_status ON limit_orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_limit_orders_agent_id ON limit_orders(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_review_results_agent_id ON review_results(agent_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_logs_run_id ON analysis_logs(run_id)`,
		// Один открытый локальный ордер на один биржевой id
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_limit_orders_open_exchange_id
			ON limit_orders(exchange_order_id) WHERE status = 'open'`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Agents репозиторий агентов
func (s *PostgresStorage) Agents() domain.AgentRepository {
	return s.agents
}

// Orders репозиторий лимитных ордеров
func (s *PostgresStorage) Orders() domain.LimitOrderRepository {
	return s.orders
}

// Results репозиторий результатов ревью
func (s *PostgresStorage) Results() domain.ReviewResultRepository {
	return s.results
}

// Analysis репозиторий аудита аналитиков
func (s *PostgresStorage) Analysis() domain.AnalysisLogRepository {
	return s.analysis
}

// Close закрывает соединение с базой
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
