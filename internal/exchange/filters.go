package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

// SymbolFilters ограничения биржи для пары: сетка количества и цены,
// минимальная стоимость ордера. Ордер вне сетки биржа отклоняет,
// поэтому округление всегда идет К сетке, а не к ближайшему значению.
type SymbolFilters struct {
	qtyStep     decimal.Decimal
	tickSize    decimal.Decimal
	minNotional float64
}

// NewSymbolFilters парсит фильтры из метаданных инструмента
func NewSymbolFilters(info *InstrumentInfo) (*SymbolFilters, error) {
	qtyStep, err := decimal.NewFromString(info.QtyStep)
	if err != nil {
		return nil, fmt.Errorf("invalid qty step %q: %w", info.QtyStep, err)
	}
	tickSize, err := decimal.NewFromString(info.TickSize)
	if err != nil {
		return nil, fmt.Errorf("invalid tick size %q: %w", info.TickSize, err)
	}
	if qtyStep.IsZero() || tickSize.IsZero() {
		return nil, fmt.Errorf("zero step in instrument info for %s", info.Symbol)
	}

	minNotional := info.MinOrderAmt
	if minNotional <= 0 {
		minNotional = domain.DefaultMinOrderValueUSD
	}

	return &SymbolFilters{
		qtyStep:     qtyStep,
		tickSize:    tickSize,
		minNotional: minNotional,
	}, nil
}

// MinNotional минимальная стоимость ордера в quote-валюте
func (f *SymbolFilters) MinNotional() float64 {
	return f.minNotional
}

// RoundQty округляет количество вниз к шагу лота.
// Вниз — чтобы никогда не продать/купить больше, чем рассчитано.
func (f *SymbolFilters) RoundQty(qty float64) string {
	return roundToStep(decimal.NewFromFloat(qty), f.qtyStep, false).String()
}

// RoundPrice округляет цену к тику: для покупки вниз, для продажи вверх,
// чтобы округление не двигало цену против заложенного сдвига.
func (f *SymbolFilters) RoundPrice(price float64, side string) string {
	up := side == domain.SideSell
	return roundToStep(decimal.NewFromFloat(price), f.tickSize, up).String()
}

// roundToStep притягивает значение к сетке с заданным шагом.
// Значение уже на сетке не меняется (округление идемпотентно).
func roundToStep(value, step decimal.Decimal, up bool) decimal.Decimal {
	quotient := value.Div(step)
	if up {
		quotient = quotient.Ceil()
	} else {
		quotient = quotient.Floor()
	}
	return quotient.Mul(step)
}
