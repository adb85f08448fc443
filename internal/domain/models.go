package domain

import "time"

// AgentStatus статус жизненного цикла агента
type AgentStatus string

const (
	AgentStatusDraft    AgentStatus = "draft"
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
)

// AgentToken токен в портфеле агента с минимальной долей
type AgentToken struct {
	Token         string  `json:"token"`
	MinAllocation float64 `json:"min_allocation"` // процент, 0-100
}

// Agent представляет торгового агента (портфельный workflow пользователя)
type Agent struct {
	ID              int64         `db:"id"`
	UserID          int64         `db:"user_id"`
	Name            string        `db:"name"`
	Tokens          []AgentToken  `db:"tokens"` // JSONB, минимум 2 токена
	RiskProfile     string        `db:"risk_profile"`
	ReviewInterval  time.Duration `db:"review_interval_minutes"`
	Instructions    string        `db:"instructions"`
	Model           string        `db:"model"`
	Status          AgentStatus   `db:"status"`
	StartBalanceUSD float64       `db:"start_balance_usd"` // фиксируется при активации, база для PnL
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// IsActive проверяет, активен ли агент
func (a *Agent) IsActive() bool {
	return a.Status == AgentStatusActive
}

// BaseToken возвращает торгуемый токен (первая нога портфеля)
func (a *Agent) BaseToken() string {
	if len(a.Tokens) == 0 {
		return ""
	}
	return a.Tokens[0].Token
}

// QuoteToken возвращает контр-токен (вторая нога портфеля)
func (a *Agent) QuoteToken() string {
	if len(a.Tokens) < 2 {
		return ""
	}
	return a.Tokens[1].Token
}

// Symbol возвращает торговую пару агента (например BTCUSDT)
func (a *Agent) Symbol() string {
	return a.BaseToken() + a.QuoteToken()
}

// OrderStatus статус лимитного ордера.
// Машина состояний: open -> filled | canceled, терминальные состояния необратимы.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
)

// IsTerminal проверяет, является ли статус терминальным
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCanceled
}

// LimitOrder представляет лимитный ордер, отслеживаемый локально
type LimitOrder struct {
	ID              int64       `db:"id"`
	UserID          int64       `db:"user_id"`
	AgentID         int64       `db:"agent_id"`
	Symbol          string      `db:"symbol"`
	Side            string      `db:"side"` // "BUY" or "SELL"
	Quantity        float64     `db:"quantity"`
	Price           float64     `db:"price"`
	ManuallyEdited  bool        `db:"manually_edited"`
	Status          OrderStatus `db:"status"`
	ReviewResultID  int64       `db:"review_result_id"` // 0 для ручных ордеров
	ExchangeOrderID string      `db:"exchange_order_id"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

// RebalanceDecision решение модели по ребалансировке.
// Tagged union: заполнен ровно один вариант —
// {rebalance:false, shortReport} | {rebalance:true, newAllocation, shortReport} | {error}.
type RebalanceDecision struct {
	Rebalance     bool     `json:"rebalance"`
	NewAllocation *float64 `json:"newAllocation,omitempty"` // процент первой ноги, [0,100]
	ShortReport   string   `json:"shortReport,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// IsError проверяет, вернула ли модель вариант с ошибкой
func (d *RebalanceDecision) IsError() bool {
	return d.Error != ""
}

// Validate проверяет инварианты tagged union
func (d *RebalanceDecision) Validate() error {
	if d.Error != "" {
		if d.Rebalance || d.NewAllocation != nil {
			return ErrInvalidDecision
		}
		return nil
	}
	if d.ShortReport == "" {
		return ErrInvalidDecision
	}
	if d.Rebalance {
		if d.NewAllocation == nil || *d.NewAllocation < 0 || *d.NewAllocation > 100 {
			return ErrInvalidDecision
		}
		return nil
	}
	if d.NewAllocation != nil {
		return ErrInvalidDecision
	}
	return nil
}

// ReviewResult результат одного цикла ревью портфеля (append-only)
type ReviewResult struct {
	ID            int64     `db:"id"`
	AgentID       int64     `db:"agent_id"`
	RunID         string    `db:"run_id"`
	Rebalance     bool      `db:"rebalance"`
	NewAllocation *float64  `db:"new_allocation"`
	ShortReport   string    `db:"short_report"`
	ErrorMessage  string    `db:"error_message"`
	CreatedAt     time.Time `db:"created_at"`
}

// Decision восстанавливает решение из сохраненного результата
func (r *ReviewResult) Decision() RebalanceDecision {
	return RebalanceDecision{
		Rebalance:     r.Rebalance,
		NewAllocation: r.NewAllocation,
		ShortReport:   r.ShortReport,
		Error:         r.ErrorMessage,
	}
}

// AnalysisLog результат одного вызова аналитика (append-only, для аудита)
type AnalysisLog struct {
	ID        int64     `db:"id"`
	AgentID   int64     `db:"agent_id"`
	RunID     string    `db:"run_id"`
	Analyst   string    `db:"analyst"` // news, technical, orderbook, performance
	Subject   string    `db:"subject"` // токен или торговая пара
	Comment   *string   `db:"comment"`
	Score     *float64  `db:"score"` // 0-10 по соглашению
	Prompt    string    `db:"prompt"`
	Response  string    `db:"response"`
	CreatedAt time.Time `db:"created_at"`
}
