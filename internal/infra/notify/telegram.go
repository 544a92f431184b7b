// Package notify шлёт сотрудникам оповещения о заканчивающихся материалах.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/usage"
)

// Sender: подмножество *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	api       Sender
	adminChat int64
}

var _ usage.Listener = (*Telegram)(nil)

func NewTelegram(token string, adminChat int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return NewTelegramWithSender(api, adminChat), nil
}

func NewTelegramWithSender(api Sender, adminChat int64) *Telegram {
	return &Telegram{api: api, adminChat: adminChat}
}

// UsageCommitted: о каждом списании не пишем, только о низком остатке.
func (t *Telegram) UsageCommitted(context.Context, usage.CommitResult) error { return nil }

func (t *Telegram) StockLow(_ context.Context, m materials.Material) error {
	if t.adminChat == 0 {
		return nil
	}
	_, err := t.api.Send(tgbotapi.NewMessage(t.adminChat, LowStockText(m)))
	return err
}

func LowStockText(m materials.Material) string {
	if !m.Stock.IsPositive() {
		return fmt.Sprintf("⚠️ Materials:\n— %s is out of stock.", m.Name)
	}
	return fmt.Sprintf("⚠️ Materials:\n— %s — %s %s left (threshold %s).",
		m.Name, m.Stock.String(), m.Unit, m.LowStockThreshold.String())
}
