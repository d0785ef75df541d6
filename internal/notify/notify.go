package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mgpai22/headcut/internal/logging"
)

// delivers short status messages to a user
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sending Telegram bot messages
type Telegram struct {
	bot sender
}

func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

// bot against a custom API endpoint, e.g. "https://api.telegram.org/bot%s/%s"
func NewTelegramWithEndpoint(token, endpoint string, client *http.Client) (*Telegram, error) {
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

func (t *Telegram) Notify(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// Notifier that only logs, used when no bot token is configured
type Log struct {
	Logger *logging.Logger
}

func (l Log) Notify(_ context.Context, chatID int64, text string) error {
	l.Logger.Or().Infow("Notification", "chat_id", chatID, "text", text)
	return nil
}

// message for a finished rerender
func RenderReady(url string, templates []string) string {
	var sb strings.Builder
	sb.WriteString("Your video is ready")
	if len(templates) > 1 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(templates, ", "))
	}
	sb.WriteString(":\n")
	sb.WriteString(url)
	return sb.String()
}

// message for a failed rerender
func RenderFailed(err error) string {
	return fmt.Sprintf("Rendering failed: %v", err)
}
