package domain

// Trade sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Analyst kinds
const (
	AnalystNews        = "news"
	AnalystTechnical   = "technical"
	AnalystOrderBook   = "orderbook"
	AnalystPerformance = "performance"
)

// Risk profiles
const (
	RiskConservative = "conservative"
	RiskBalanced     = "balanced"
	RiskAggressive   = "aggressive"
)

// Стейблкоины не анализируются (news/technical по ним не имеют смысла)
var Stablecoins = map[string]bool{
	"USDT": true,
	"USDC": true,
	"DAI":  true,
	"FDUSD": true,
}

// IsStablecoin проверяет, является ли токен стейблкоином
func IsStablecoin(token string) bool {
	return Stablecoins[token]
}

// USDReferenceQuote котировочный стейблкоин для USD-оценки токенов.
// Оценка и индикаторы всегда идут через референсную пару token+USDT,
// а не через котировочную ногу агента: обе ноги портфеля могут быть
// волатильными токенами.
const USDReferenceQuote = "USDT"

// USDReferenceSymbol возвращает референсную пару для USD-оценки токена
func USDReferenceSymbol(token string) string {
	return token + USDReferenceQuote
}

// Order types
const (
	OrderTypeLimit = "Limit"
)

// Review constants
const (
	// PreviousDecisionsLimit сколько прошлых решений передается модели для непрерывности
	PreviousDecisionsLimit = 5

	// PerformanceOrdersLimit сколько последних закрытых ордеров видит performance-аналитик
	PerformanceOrdersLimit = 10

	// PriceNudgePercent сдвиг цены от midpoint в пользу исполнения (BUY ниже, SELL выше)
	PriceNudgePercent = 0.1

	// DefaultMinOrderValueUSD порог минимальной стоимости ордера, если биржа не сообщила свой
	DefaultMinOrderValueUSD = 10.0
)

// Bybit constants
const (
	BybitCategorySpot   = "spot"
	BybitAccountUnified = "UNIFIED"
	BybitRecvWindow     = "5000"
)
