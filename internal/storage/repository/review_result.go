package repository

import (
	"database/sql"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

// ReviewResultRepository реализует работу с результатами ревью (append-only)
type ReviewResultRepository struct {
	db *sql.DB
}

// NewReviewResultRepository создает новый репозиторий результатов ревью
func NewReviewResultRepository(db *sql.DB) *ReviewResultRepository {
	return &ReviewResultRepository{db: db}
}

// Save сохраняет результат цикла ревью
func (r *ReviewResultRepository) Save(result *domain.ReviewResult) error {
	query := `
		INSERT INTO review_results (agent_id, run_id, rebalance, new_allocation, short_report, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRow(
		query,
		result.AgentID,
		result.RunID,
		result.Rebalance,
		result.NewAllocation,
		result.ShortReport,
		result.ErrorMessage,
	).Scan(&result.ID, &result.CreatedAt)
}

// GetRecent получает последние результаты агента, новые первыми
func (r *ReviewResultRepository) GetRecent(agentID int64, limit int) ([]domain.ReviewResult, error) {
	query := `
		SELECT id, agent_id, run_id, rebalance, new_allocation, short_report, error_message, created_at
		FROM review_results
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(query, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ReviewResult
	for rows.Next() {
		var result domain.ReviewResult
		err := rows.Scan(
			&result.ID,
			&result.AgentID,
			&result.RunID,
			&result.Rebalance,
			&result.NewAllocation,
			&result.ShortReport,
			&result.ErrorMessage,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
