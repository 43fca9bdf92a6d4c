package notify

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER - Repricing alerts
// ═══════════════════════════════════════════════════════════════════════════════

type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a notifier posting to a single chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram notifier ready")
	return &Telegram{api: api, chatID: chatID}, nil
}

// NotifyReprice posts one repricing alert. Delivery failures are logged
// and swallowed: notifications never interfere with the repricing loop.
func (t *Telegram) NotifyReprice(item common.Address, oldPrice, newPrice *big.Int) {
	arrow := "📈"
	if newPrice.Cmp(oldPrice) < 0 {
		arrow = "📉"
	}

	text := fmt.Sprintf("%s Repriced %s\n%s → %s", arrow, item.Hex(), oldPrice, newPrice)

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram notification failed")
	}
}
