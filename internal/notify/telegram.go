package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/kirillm/rebalance-bot/internal/domain"
)

// Telegram отправляет оператору уведомления о решениях и переходах ордеров.
// Только исходящие сообщения: команды и диалоги не обрабатываются.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegram создает нотификатор поверх Telegram Bot API
func NewTelegram(token string, chatID int64, log zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{
		api:    api,
		chatID: chatID,
		log:    log.With().Str("component", "notify").Logger(),
	}, nil
}

// NotifyDecision уведомляет о завершенном решении цикла ревью
func (t *Telegram) NotifyDecision(agent *domain.Agent, result *domain.ReviewResult, order *domain.LimitOrder) {
	t.send(FormatDecision(agent, result, order))
}

// NotifyOrderTransition уведомляет о переходе ордера в терминальный статус
func (t *Telegram) NotifyOrderTransition(order *domain.LimitOrder, status domain.OrderStatus) {
	t.send(FormatOrderTransition(order, status))
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.api.Send(msg); err != nil {
		// уведомление не критично, торговый цикл не зависит от доставки
		t.log.Warn().Err(err).Msg("⚠️ Не удалось отправить уведомление")
	}
}
