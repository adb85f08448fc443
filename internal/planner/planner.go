package planner

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/exchange"
	"github.com/kirillm/rebalance-bot/internal/portfolio"
)

// Exchange подмножество биржевого клиента, нужное планировщику
type Exchange interface {
	GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error)
	GetInstrumentInfo(ctx context.Context, symbol string) (*exchange.InstrumentInfo, error)
	PlaceLimitOrder(ctx context.Context, symbol, side string, quantity, price string) (string, error)
}

// Planner превращает решение о ребалансировке в валидный лимитный ордер.
// Планировщик — единственный создатель строк LimitOrder; переходы из open
// делает только reconcile-джоба.
type Planner struct {
	exchange Exchange
	orders   domain.LimitOrderRepository
	log      zerolog.Logger
}

// New создает планировщик ордеров
func New(ex Exchange, orders domain.LimitOrderRepository, log zerolog.Logger) *Planner {
	return &Planner{
		exchange: ex,
		orders:   orders,
		log:      log.With().Str("component", "planner").Logger(),
	}
}

// Plan считает ордер для достижения целевой аллокации и размещает его.
// Возвращает nil без ошибки, если расхождение ниже минимальной стоимости
// ордера (no-op). Строка LimitOrder создается в статусе open только после
// успешного размещения на бирже; при сбое размещения строка не создается.
func (p *Planner) Plan(ctx context.Context, agent *domain.Agent, snap *portfolio.Snapshot, newAllocation float64, reviewResultID int64) (*domain.LimitOrder, error) {
	if newAllocation < 0 || newAllocation > 100 {
		return nil, fmt.Errorf("%w: allocation %.2f out of [0,100]", domain.ErrInvalidAllocation, newAllocation)
	}

	symbol := agent.Symbol()
	base := agent.BaseToken()

	filters, err := p.symbolFilters(ctx, symbol)
	if err != nil {
		return nil, err
	}

	current := snap.TotalValueUSD * snap.Allocation(base) / 100
	target := snap.TotalValueUSD * newAllocation / 100
	diff := target - current

	if math.Abs(diff) < filters.MinNotional() {
		p.log.Info().
			Int64("agent_id", agent.ID).
			Str("symbol", symbol).
			Float64("diff_usd", diff).
			Float64("min_notional", filters.MinNotional()).
			Msg("Расхождение ниже порога, ордер не нужен")
		return nil, nil
	}

	side := domain.SideBuy
	if diff < 0 {
		side = domain.SideSell
	}

	// Количество считается из USD-расхождения и USD-цены базовой ноги
	// снимка: цена пары может быть номинирована не в долларах
	basePrice := snap.Price(base)
	if basePrice <= 0 {
		return nil, fmt.Errorf("%w: non-positive snapshot price for %s", domain.ErrInvalidInput, base)
	}

	ticker, err := p.exchange.GetTicker(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker for %s: %w", symbol, err)
	}
	if ticker.Last <= 0 {
		return nil, fmt.Errorf("%w: non-positive price for %s", domain.ErrExchangeAPI, symbol)
	}

	quantity := math.Abs(diff) / basePrice
	price := nudgedPrice(ticker.Mid(), side)

	return p.submit(ctx, agent, filters, symbol, side, quantity, price, false, reviewResultID)
}

// PlaceManual размещает ордер с параметрами, заданными оператором.
// Количество и цена проходят то же округление к сетке биржи,
// строка помечается manually_edited для аудита.
func (p *Planner) PlaceManual(ctx context.Context, agent *domain.Agent, side string, quantity, price float64) (*domain.LimitOrder, error) {
	if side != domain.SideBuy && side != domain.SideSell {
		return nil, fmt.Errorf("%w: side %q", domain.ErrInvalidInput, side)
	}
	if quantity <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: quantity and price must be positive", domain.ErrInvalidInput)
	}

	symbol := agent.Symbol()
	filters, err := p.symbolFilters(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return p.submit(ctx, agent, filters, symbol, side, quantity, price, true, 0)
}

func (p *Planner) symbolFilters(ctx context.Context, symbol string) (*exchange.SymbolFilters, error) {
	info, err := p.exchange.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument info for %s: %w", symbol, err)
	}
	return exchange.NewSymbolFilters(info)
}

func (p *Planner) submit(ctx context.Context, agent *domain.Agent, filters *exchange.SymbolFilters, symbol, side string, quantity, price float64, manual bool, reviewResultID int64) (*domain.LimitOrder, error) {
	qtyStr := filters.RoundQty(quantity)
	priceStr := filters.RoundPrice(price, side)

	qtyRounded, err := strconv.ParseFloat(qtyStr, 64)
	if err != nil || qtyRounded <= 0 {
		return nil, fmt.Errorf("%w: quantity %.10f rounds to zero on %s grid", domain.ErrInvalidInput, quantity, symbol)
	}
	priceRounded, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || priceRounded <= 0 {
		return nil, fmt.Errorf("%w: price %.10f invalid after rounding on %s grid", domain.ErrInvalidInput, price, symbol)
	}

	exchangeOrderID, err := p.exchange.PlaceLimitOrder(ctx, symbol, side, qtyStr, priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s order on %s: %w", side, symbol, err)
	}

	order := &domain.LimitOrder{
		UserID:          agent.UserID,
		AgentID:         agent.ID,
		Symbol:          symbol,
		Side:            side,
		Quantity:        qtyRounded,
		Price:           priceRounded,
		ManuallyEdited:  manual,
		Status:          domain.OrderStatusOpen,
		ReviewResultID:  reviewResultID,
		ExchangeOrderID: exchangeOrderID,
	}

	if err := p.orders.Create(order); err != nil {
		// Ордер уже на бирже, потерянную строку подберет оператор по аудиту
		p.log.Error().Err(err).
			Str("exchange_order_id", exchangeOrderID).
			Str("symbol", symbol).
			Msg("Ордер размещен, но не сохранен локально")
		return nil, fmt.Errorf("order %s placed but not persisted: %w", exchangeOrderID, err)
	}

	p.log.Info().
		Int64("agent_id", agent.ID).
		Str("symbol", symbol).
		Str("side", side).
		Str("qty", qtyStr).
		Str("price", priceStr).
		Bool("manual", manual).
		Str("exchange_order_id", exchangeOrderID).
		Msg("✅ Лимитный ордер размещен")

	return order, nil
}

// nudgedPrice сдвигает цену от midpoint в пользу исполнения:
// покупка чуть ниже, продажа чуть выше, чтобы не пересечь свой же спред
func nudgedPrice(mid float64, side string) float64 {
	nudge := mid * domain.PriceNudgePercent / 100
	if side == domain.SideBuy {
		return mid - nudge
	}
	return mid + nudge
}
