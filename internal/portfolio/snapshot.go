package portfolio

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/exchange"
)

// Leg одна нога портфеля агента
type Leg struct {
	Token        string  `json:"token"`
	Quantity     float64 `json:"quantity"`
	PriceUSD     float64 `json:"price_usd"`
	ValueUSD     float64 `json:"value_usd"`
	AllocationPc float64 `json:"allocation_pct"`
}

// Snapshot снимок портфеля агента в момент ревью
type Snapshot struct {
	Legs          []Leg   `json:"legs"`
	TotalValueUSD float64 `json:"total_value_usd"`
	PnLUSD        float64 `json:"pnl_usd"`
	PnLPercent    float64 `json:"pnl_percent"`
}

// Allocation возвращает текущую долю токена в процентах
func (s *Snapshot) Allocation(token string) float64 {
	for _, leg := range s.Legs {
		if leg.Token == token {
			return leg.AllocationPc
		}
	}
	return 0
}

// Quantity возвращает количество токена в портфеле
func (s *Snapshot) Quantity(token string) float64 {
	for _, leg := range s.Legs {
		if leg.Token == token {
			return leg.Quantity
		}
	}
	return 0
}

// Price возвращает USD-цену токена, зафиксированную в снимке
func (s *Snapshot) Price(token string) float64 {
	for _, leg := range s.Legs {
		if leg.Token == token {
			return leg.PriceUSD
		}
	}
	return 0
}

// Exchange подмножество биржевого клиента для построения снимка
type Exchange interface {
	GetWalletBalances(ctx context.Context) (map[string]float64, error)
	GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error)
}

// Builder строит снимки портфеля по балансам кошелька и текущим ценам
type Builder struct {
	exchange Exchange
	log      zerolog.Logger
}

// NewBuilder создает билдер снимков портфеля
func NewBuilder(ex Exchange, log zerolog.Logger) *Builder {
	return &Builder{
		exchange: ex,
		log:      log.With().Str("component", "portfolio").Logger(),
	}
}

// Build собирает снимок портфеля агента: балансы кошелька по ногам агента,
// USD-оценка через референсные пары token+USDT, доли и PnL относительно
// стартового баланса. Стейблкоины оцениваются 1:1 к доллару. Оценка не
// зависит от котировочной ноги агента: для портфеля из двух волатильных
// токенов обе ноги оцениваются через свои референсные пары.
func (b *Builder) Build(ctx context.Context, agent *domain.Agent) (*Snapshot, error) {
	balances, err := b.exchange.GetWalletBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balances: %w", err)
	}

	snapshot := &Snapshot{Legs: make([]Leg, 0, len(agent.Tokens))}

	for _, at := range agent.Tokens {
		qty := balances[at.Token]

		price := 1.0
		if !domain.IsStablecoin(at.Token) {
			ticker, err := b.exchange.GetTicker(ctx, domain.USDReferenceSymbol(at.Token))
			if err != nil {
				return nil, fmt.Errorf("failed to get price for %s: %w", at.Token, err)
			}
			price = ticker.Last
		}

		value := qty * price
		snapshot.Legs = append(snapshot.Legs, Leg{
			Token:    at.Token,
			Quantity: qty,
			PriceUSD: price,
			ValueUSD: value,
		})
		snapshot.TotalValueUSD += value
	}

	if snapshot.TotalValueUSD > 0 {
		for i := range snapshot.Legs {
			snapshot.Legs[i].AllocationPc = snapshot.Legs[i].ValueUSD / snapshot.TotalValueUSD * 100
		}
	}

	if agent.StartBalanceUSD > 0 {
		snapshot.PnLUSD = snapshot.TotalValueUSD - agent.StartBalanceUSD
		snapshot.PnLPercent = snapshot.PnLUSD / agent.StartBalanceUSD * 100
	}

	b.log.Debug().
		Int64("agent_id", agent.ID).
		Float64("total_usd", snapshot.TotalValueUSD).
		Float64("pnl_usd", snapshot.PnLUSD).
		Msg("📊 Снимок портфеля построен")

	return snapshot, nil
}
