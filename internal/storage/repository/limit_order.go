package repository

import (
	"database/sql"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

// LimitOrderRepository реализует работу с лимитными ордерами.
// Строки не удаляются: терминальные ордера остаются как аудит-след.
type LimitOrderRepository struct {
	db *sql.DB
}

// NewLimitOrderRepository создает новый репозиторий лимитных ордеров
func NewLimitOrderRepository(db *sql.DB) *LimitOrderRepository {
	return &LimitOrderRepository{db: db}
}

const limitOrderColumns = `id, user_id, agent_id, symbol, side, quantity, price, manually_edited, status, review_result_id, exchange_order_id, created_at, updated_at`

// Create сохраняет размещенный ордер в статусе open
func (r *LimitOrderRepository) Create(order *domain.LimitOrder) error {
	query := `
		INSERT INTO limit_orders (user_id, agent_id, symbol, side, quantity, price, manually_edited, status, review_result_id, exchange_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(
		query,
		order.UserID,
		order.AgentID,
		order.Symbol,
		order.Side,
		order.Quantity,
		order.Price,
		order.ManuallyEdited,
		order.Status,
		order.ReviewResultID,
		order.ExchangeOrderID,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

// GetOpen получает все открытые ордера
func (r *LimitOrderRepository) GetOpen() ([]domain.LimitOrder, error) {
	query := `
		SELECT ` + limitOrderColumns + `
		FROM limit_orders
		WHERE status = $1
		ORDER BY id
	`
	return r.queryOrders(query, domain.OrderStatusOpen)
}

// GetOpenBySymbol получает открытые ордера пользователя по паре
func (r *LimitOrderRepository) GetOpenBySymbol(userID int64, symbol string) ([]domain.LimitOrder, error) {
	query := `
		SELECT ` + limitOrderColumns + `
		FROM limit_orders
		WHERE status = $1 AND user_id = $2 AND symbol = $3
		ORDER BY id
	`
	return r.queryOrders(query, domain.OrderStatusOpen, userID, symbol)
}

// UpdateStatus переводит ордер в новый статус.
// Терминальные строки не трогаются: переход назад в open невозможен.
func (r *LimitOrderRepository) UpdateStatus(id int64, status domain.OrderStatus) error {
	query := `
		UPDATE limit_orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'open'
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

// GetRecentClosed получает последние терминальные ордера агента
func (r *LimitOrderRepository) GetRecentClosed(agentID int64, limit int) ([]domain.LimitOrder, error) {
	query := `
		SELECT ` + limitOrderColumns + `
		FROM limit_orders
		WHERE agent_id = $1 AND status IN ('filled', 'canceled')
		ORDER BY updated_at DESC
		LIMIT $2
	`
	return r.queryOrders(query, agentID, limit)
}

func (r *LimitOrderRepository) queryOrders(query string, args ...any) ([]domain.LimitOrder, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.LimitOrder
	for rows.Next() {
		var order domain.LimitOrder
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.AgentID,
			&order.Symbol,
			&order.Side,
			&order.Quantity,
			&order.Price,
			&order.ManuallyEdited,
			&order.Status,
			&order.ReviewResultID,
			&order.ExchangeOrderID,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
