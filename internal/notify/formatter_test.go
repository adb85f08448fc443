package notify

import (
	"strings"
	"testing"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

func notifyAgent() *domain.Agent {
	return &domain.Agent{
		Name: "BTC Portfolio",
		Tokens: []domain.AgentToken{
			{Token: "BTC"},
			{Token: "USDT"},
		},
	}
}

func TestFormatDecision(t *testing.T) {
	alloc := 45.5
	tests := []struct {
		name   string
		result *domain.ReviewResult
		order  *domain.LimitOrder
		want   []string
	}{
		{
			name:   "no rebalance",
			result: &domain.ReviewResult{Rebalance: false, ShortReport: "market is ranging"},
			want:   []string{"BTC Portfolio", "BTCUSDT", "No rebalance", "market is ranging"},
		},
		{
			name:   "rebalance with order",
			result: &domain.ReviewResult{Rebalance: true, NewAllocation: &alloc, ShortReport: "momentum building"},
			order:  &domain.LimitOrder{Side: "BUY", Quantity: 0.001, Symbol: "BTCUSDT", Price: 49950},
			want:   []string{"45.50% BTC", "BUY", "0.001", "49950"},
		},
		{
			name:   "rebalance below threshold",
			result: &domain.ReviewResult{Rebalance: true, NewAllocation: &alloc, ShortReport: "minor drift"},
			want:   []string{"45.50% BTC", "no order placed"},
		},
		{
			name:   "model declined",
			result: &domain.ReviewResult{ErrorMessage: "conflicting signals"},
			want:   []string{"declined", "conflicting signals"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDecision(notifyAgent(), tt.result, tt.order)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("FormatDecision() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestFormatOrderTransition(t *testing.T) {
	order := &domain.LimitOrder{Side: "SELL", Quantity: 0.5, Symbol: "ETHUSDT", Price: 3000}

	filled := FormatOrderTransition(order, domain.OrderStatusFilled)
	if !strings.Contains(filled, "filled") || !strings.Contains(filled, "ETHUSDT") {
		t.Errorf("unexpected filled message: %q", filled)
	}

	canceled := FormatOrderTransition(order, domain.OrderStatusCanceled)
	if !strings.Contains(canceled, "canceled") {
		t.Errorf("unexpected canceled message: %q", canceled)
	}
}
