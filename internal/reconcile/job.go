package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/domain"
	"github.com/kirillm/rebalance-bot/internal/exchange"
)

// Exchange подмножество биржевого клиента, нужное reconcile-джобе
type Exchange interface {
	GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OpenOrder, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// Notifier уведомляет оператора о переходах ордеров
type Notifier interface {
	NotifyOrderTransition(order *domain.LimitOrder, status domain.OrderStatus)
}

// Job сверяет локальные open-ордера с биржей.
// Единственный писатель переходов open -> filled | canceled; терминальные
// состояния назад не переводятся. Пропущенная из-за сбоя группа будет
// обработана следующим проходом: система предпочитает eventual consistency
// немедленному, но возможно неверному переходу.
type Job struct {
	exchange Exchange
	orders   domain.LimitOrderRepository
	agents   domain.AgentRepository
	notifier Notifier
	log      zerolog.Logger
}

// NewJob создает reconcile-джобу
func NewJob(ex Exchange, orders domain.LimitOrderRepository, agents domain.AgentRepository, notifier Notifier, log zerolog.Logger) *Job {
	return &Job{
		exchange: ex,
		orders:   orders,
		agents:   agents,
		notifier: notifier,
		log:      log.With().Str("component", "reconcile").Logger(),
	}
}

type orderGroup struct {
	userID int64
	symbol string
}

// Run выполняет один проход сверки по всем (user, symbol) группам
// с локально открытыми ордерами
func (j *Job) Run(ctx context.Context) error {
	open, err := j.orders.GetOpen()
	if err != nil {
		return fmt.Errorf("failed to load open orders: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	groups := make(map[orderGroup]struct{})
	for _, order := range open {
		groups[orderGroup{userID: order.UserID, symbol: order.Symbol}] = struct{}{}
	}

	j.log.Debug().Int("orders", len(open)).Int("groups", len(groups)).Msg("🔄 Проход сверки запущен")

	for group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		j.reconcileGroup(ctx, group)
	}
	return nil
}

// reconcileGroup сверяет одну (user, symbol) группу.
// Ордера группы перечитываются из базы непосредственно перед сверкой:
// строка, закрывшаяся после общей выборки, не трогается повторно.
// Сбой любого из запросов пропускает группу целиком без изменений:
// лучше оставить ордер open до следующего прохода, чем угадывать.
func (j *Job) reconcileGroup(ctx context.Context, group orderGroup) {
	orders, err := j.orders.GetOpenBySymbol(group.userID, group.symbol)
	if err != nil {
		j.log.Warn().Err(err).
			Int64("user_id", group.userID).
			Str("symbol", group.symbol).
			Msg("⚠️ Локальные ордера группы недоступны, группа пропущена")
		return
	}
	if len(orders) == 0 {
		return
	}

	exchangeOpen, err := j.exchange.GetOpenOrders(ctx, group.symbol)
	if err != nil {
		j.log.Warn().Err(err).
			Int64("user_id", group.userID).
			Str("symbol", group.symbol).
			Msg("⚠️ Открытые ордера недоступны, группа пропущена")
		return
	}

	stillOpen := make(map[string]bool, len(exchangeOpen))
	for _, o := range exchangeOpen {
		stillOpen[o.OrderID] = true
	}

	for i := range orders {
		order := &orders[i]

		// Ордер исчез из открытых и мы его не отменяли: считаем исполненным.
		// Биржа не различает fill и внешнюю отмену для исчезнувших ордеров.
		if !stillOpen[order.ExchangeOrderID] {
			j.transition(order, domain.OrderStatusFilled)
			continue
		}

		if j.agentInactive(order.AgentID) {
			j.cancelStale(ctx, order)
		}
	}
}

// cancelStale отменяет ордер неактивного агента, который все еще открыт.
// Unknown-order от биржи означает, что ордер уже разрешился без нас.
func (j *Job) cancelStale(ctx context.Context, order *domain.LimitOrder) {
	err := j.exchange.CancelOrder(ctx, order.Symbol, order.ExchangeOrderID)
	switch {
	case err == nil:
		j.transition(order, domain.OrderStatusCanceled)
	case exchange.IsUnknownOrder(err):
		j.transition(order, domain.OrderStatusFilled)
	default:
		// ретраибельное условие, ордер остается open до следующего прохода
		j.log.Warn().Err(err).
			Int64("order_id", order.ID).
			Str("exchange_order_id", order.ExchangeOrderID).
			Msg("⚠️ Отмена не удалась, ордер остается открытым")
	}
}

func (j *Job) agentInactive(agentID int64) bool {
	agent, err := j.agents.GetByID(agentID)
	if err != nil {
		// без уверенности в статусе владельца ордер не трогаем
		j.log.Warn().Err(err).Int64("agent_id", agentID).Msg("Статус агента недоступен")
		return false
	}
	return !agent.IsActive()
}

func (j *Job) transition(order *domain.LimitOrder, status domain.OrderStatus) {
	if err := j.orders.UpdateStatus(order.ID, status); err != nil {
		j.log.Error().Err(err).
			Int64("order_id", order.ID).
			Str("status", string(status)).
			Msg("Не удалось обновить статус ордера")
		return
	}
	j.log.Info().
		Int64("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("status", string(status)).
		Msg("✅ Статус ордера обновлен")
	if j.notifier != nil {
		j.notifier.NotifyOrderTransition(order, status)
	}
}
