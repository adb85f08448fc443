package portfolio

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/exchange"
)

type fakeExchange struct {
	balances  map[string]float64
	prices    map[string]float64
	requested []string
	err       error
}

func (f *fakeExchange) GetWalletBalances(context.Context) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.balances, nil
}

func (f *fakeExchange) GetTicker(_ context.Context, symbol string) (*exchange.Ticker, error) {
	f.requested = append(f.requested, symbol)
	price, ok := f.prices[symbol]
	if !ok {
		return nil, errors.New("no ticker")
	}
	return &exchange.Ticker{Symbol: symbol, Last: price}, nil
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuild_AllocationsAndPnL(t *testing.T) {
	agent := &domain.Agent{
		ID:              1,
		StartBalanceUSD: 150,
		Tokens: []domain.AgentToken{
			{Token: "BTC", MinAllocation: 20},
			{Token: "USDT", MinAllocation: 10},
		},
	}
	ex := &fakeExchange{
		balances: map[string]float64{"BTC": 0.001, "USDT": 150},
		prices:   map[string]float64{"BTCUSDT": 50000},
	}

	snap, err := NewBuilder(ex, zerolog.Nop()).Build(context.Background(), agent)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !approxEqual(snap.TotalValueUSD, 200) {
		t.Errorf("total = %v, want 200", snap.TotalValueUSD)
	}
	if !approxEqual(snap.Allocation("BTC"), 25) {
		t.Errorf("BTC allocation = %v, want 25", snap.Allocation("BTC"))
	}
	if !approxEqual(snap.Allocation("USDT"), 75) {
		t.Errorf("USDT allocation = %v, want 75", snap.Allocation("USDT"))
	}
	// стейблкоин оценивается 1:1, тикер для него не запрашивается
	if !approxEqual(snap.Quantity("USDT"), 150) {
		t.Errorf("USDT quantity = %v, want 150", snap.Quantity("USDT"))
	}
	if !approxEqual(snap.PnLUSD, 50) {
		t.Errorf("pnl = %v, want 50", snap.PnLUSD)
	}
	if !approxEqual(snap.PnLPercent, 100.0/3) {
		t.Errorf("pnl pct = %v, want %v", snap.PnLPercent, 100.0/3)
	}
}

func TestBuild_TwoVolatileLegsPricedViaReferencePairs(t *testing.T) {
	agent := &domain.Agent{
		ID: 2,
		Tokens: []domain.AgentToken{
			{Token: "BTC", MinAllocation: 10},
			{Token: "ETH", MinAllocation: 20},
		},
	}
	ex := &fakeExchange{
		balances: map[string]float64{"BTC": 0.001, "ETH": 0.05},
		prices:   map[string]float64{"BTCUSDT": 50000, "ETHUSDT": 2000},
	}

	snap, err := NewBuilder(ex, zerolog.Nop()).Build(context.Background(), agent)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// обе ноги оцениваются через свои USD-пары, а не через пару агента
	for _, symbol := range ex.requested {
		if symbol == "BTCETH" || symbol == "ETHETH" {
			t.Errorf("leg priced via agent pair %q instead of a USD reference pair", symbol)
		}
	}
	if len(ex.requested) != 2 {
		t.Fatalf("requested symbols = %v, want BTCUSDT and ETHUSDT", ex.requested)
	}

	if !approxEqual(snap.Price("ETH"), 2000) {
		t.Errorf("ETH price = %v, want 2000", snap.Price("ETH"))
	}
	if !approxEqual(snap.TotalValueUSD, 150) {
		t.Errorf("total = %v, want 150", snap.TotalValueUSD)
	}
	if !approxEqual(snap.Allocation("ETH"), 200.0/3) {
		t.Errorf("ETH allocation = %v, want %v", snap.Allocation("ETH"), 200.0/3)
	}
}

func TestBuild_MissingBalanceIsZeroLeg(t *testing.T) {
	agent := &domain.Agent{
		Tokens: []domain.AgentToken{
			{Token: "ETH", MinAllocation: 0},
			{Token: "USDT", MinAllocation: 0},
		},
	}
	ex := &fakeExchange{
		balances: map[string]float64{"USDT": 100},
		prices:   map[string]float64{"ETHUSDT": 3000},
	}

	snap, err := NewBuilder(ex, zerolog.Nop()).Build(context.Background(), agent)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !approxEqual(snap.Quantity("ETH"), 0) {
		t.Errorf("ETH quantity = %v, want 0", snap.Quantity("ETH"))
	}
	if !approxEqual(snap.Allocation("USDT"), 100) {
		t.Errorf("USDT allocation = %v, want 100", snap.Allocation("USDT"))
	}
	// нулевой стартовый баланс не дает деления на ноль
	if snap.PnLPercent != 0 {
		t.Errorf("pnl pct = %v, want 0", snap.PnLPercent)
	}
}

func TestBuild_BalanceFetchFailure(t *testing.T) {
	agent := &domain.Agent{Tokens: []domain.AgentToken{{Token: "BTC"}, {Token: "USDT"}}}
	ex := &fakeExchange{err: errors.New("wallet API down")}

	if _, err := NewBuilder(ex, zerolog.Nop()).Build(context.Background(), agent); err == nil {
		t.Fatal("expected error when wallet fetch fails")
	}
}
