package domain

// AgentRepository определяет интерфейс для работы с агентами
type AgentRepository interface {
	Create(agent *Agent) error
	GetByID(id int64) (*Agent, error)
	GetActive() ([]Agent, error)
	UpdateStatus(id int64, status AgentStatus, startBalanceUSD float64) error
}

// LimitOrderRepository определяет интерфейс для работы с лимитными ордерами.
// Create — единственный способ появления ордера (статус open);
// UpdateStatus — единственный способ перехода в терминальное состояние.
type LimitOrderRepository interface {
	Create(order *LimitOrder) error
	GetOpen() ([]LimitOrder, error)
	GetOpenBySymbol(userID int64, symbol string) ([]LimitOrder, error)
	UpdateStatus(id int64, status OrderStatus) error
	GetRecentClosed(agentID int64, limit int) ([]LimitOrder, error)
}

// ReviewResultRepository определяет интерфейс для работы с результатами ревью
type ReviewResultRepository interface {
	Save(result *ReviewResult) error
	GetRecent(agentID int64, limit int) ([]ReviewResult, error)
}

// AnalysisLogRepository определяет интерфейс для аудита вызовов аналитиков
type AnalysisLogRepository interface {
	Save(log *AnalysisLog) error
	GetByRun(runID string) ([]AnalysisLog, error)
}
