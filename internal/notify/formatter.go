package notify

import (
	"fmt"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

// FormatDecision форматирует сообщение о завершенном решении
func FormatDecision(agent *domain.Agent, result *domain.ReviewResult, order *domain.LimitOrder) string {
	header := fmt.Sprintf("🤖 **%s** (%s)\n", agent.Name, agent.Symbol())

	if result.ErrorMessage != "" {
		return header + fmt.Sprintf("⚠️ Model declined to decide: %s", result.ErrorMessage)
	}

	if !result.Rebalance {
		return header + fmt.Sprintf("✅ No rebalance needed.\n%s", result.ShortReport)
	}

	msg := header + fmt.Sprintf("🔄 Rebalance to %.2f%% %s.\n%s", *result.NewAllocation, agent.BaseToken(), result.ShortReport)
	if order != nil {
		msg += fmt.Sprintf("\n\n📝 Order: %s %.8g %s @ %.8g", order.Side, order.Quantity, order.Symbol, order.Price)
	} else {
		msg += "\n\nDrift below minimum order value, no order placed."
	}
	return msg
}

// FormatOrderTransition форматирует сообщение о переходе ордера
func FormatOrderTransition(order *domain.LimitOrder, status domain.OrderStatus) string {
	icon := "✅"
	verb := "filled"
	if status == domain.OrderStatusCanceled {
		icon = "🗑"
		verb = "canceled"
	}
	return fmt.Sprintf("%s Order %s: %s %.8g %s @ %.8g", icon, verb, order.Side, order.Quantity, order.Symbol, order.Price)
}
