package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDecision возвращается когда ответ модели нарушает схему решения
	ErrInvalidDecision = errors.New("invalid rebalance decision")

	// ErrNullDecision возвращается когда ответ модели не удалось распарсить
	ErrNullDecision = errors.New("null decision")

	// ErrAgentNotActive возвращается при попытке ревью неактивного агента
	ErrAgentNotActive = errors.New("agent is not active")

	// ErrTokenConflict возвращается при дублирующихся токенах в портфеле агента
	ErrTokenConflict = errors.New("token conflict")

	// ErrInvalidAllocation возвращается при некорректных минимальных долях
	ErrInvalidAllocation = errors.New("invalid allocation")

	// ErrExchangeAPI возвращается при ошибке API биржи
	ErrExchangeAPI = errors.New("exchange API error")

	// ErrDatabaseConnection возвращается при ошибке подключения к БД
	ErrDatabaseConnection = errors.New("database connection error")
)
