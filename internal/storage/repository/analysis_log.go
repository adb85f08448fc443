package repository

import (
	"database/sql"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

// AnalysisLogRepository реализует аудит вызовов аналитиков (append-only)
type AnalysisLogRepository struct {
	db *sql.DB
}

// NewAnalysisLogRepository создает новый репозиторий аудита аналитиков
func NewAnalysisLogRepository(db *sql.DB) *AnalysisLogRepository {
	return &AnalysisLogRepository{db: db}
}

// Save сохраняет запись одного вызова аналитика
func (r *AnalysisLogRepository) Save(log *domain.AnalysisLog) error {
	query := `
		INSERT INTO analysis_logs (agent_id, run_id, analyst, subject, comment, score, prompt, response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	return r.db.QueryRow(
		query,
		log.AgentID,
		log.RunID,
		log.Analyst,
		log.Subject,
		log.Comment,
		log.Score,
		log.Prompt,
		log.Response,
	).Scan(&log.ID, &log.CreatedAt)
}

// GetByRun получает все записи аудита одного цикла ревью
func (r *AnalysisLogRepository) GetByRun(runID string) ([]domain.AnalysisLog, error) {
	query := `
		SELECT id, agent_id, run_id, analyst, subject, comment, score, prompt, response, created_at
		FROM analysis_logs
		WHERE run_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.AnalysisLog
	for rows.Next() {
		var log domain.AnalysisLog
		err := rows.Scan(
			&log.ID,
			&log.AgentID,
			&log.RunID,
			&log.Analyst,
			&log.Subject,
			&log.Comment,
			&log.Score,
			&log.Prompt,
			&log.Response,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
