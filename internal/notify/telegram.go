package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends messages to one chat through a bot. Actions become inline URL buttons.
type Telegram struct {
	token    string
	chatID   int64
	endpoint string

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegram creates a Telegram sender. The bot connects lazily on the first send.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if strings.TrimSpace(token) == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram: %w: token and chat_id are required", ErrNotConfigured)
	}
	return &Telegram{token: token, chatID: chatID, endpoint: tgbotapi.APIEndpoint}, nil
}

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	bot, err := t.client()
	if err != nil {
		return err
	}

	tgMsg := tgbotapi.NewMessage(t.chatID, renderHTML(msg))
	tgMsg.ParseMode = tgbotapi.ModeHTML
	tgMsg.DisableNotification = msg.Priority < PriorityNormal
	tgMsg.DisableWebPagePreview = true
	if len(msg.Actions) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(msg.Actions))
		for _, action := range msg.Actions {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(action.Label, action.URL))
		}
		tgMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := bot.Send(tgMsg); err != nil {
		tgMsg.ParseMode = ""
		tgMsg.Text = renderPlain(msg)
		if _, err := bot.Send(tgMsg); err != nil {
			return fmt.Errorf("telegram send failed: %w", err)
		}
	}
	slog.Info("telegram notification sent", "title", msg.Title, "priority", int(msg.Priority))
	return nil
}

func (t *Telegram) client() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	slog.Info("telegram bot connected", "username", bot.Self.UserName)
	t.bot = bot
	return bot, nil
}

func renderHTML(msg Message) string {
	var b strings.Builder
	if msg.Priority == PriorityEmergency {
		b.WriteString("<b>[URGENT]</b> ")
	}
	if msg.Title != "" {
		b.WriteString("<b>" + html.EscapeString(msg.Title) + "</b>\n")
	}
	b.WriteString(html.EscapeString(msg.Body))
	return b.String()
}

func renderPlain(msg Message) string {
	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n" + text
	}
	for _, action := range msg.Actions {
		text += fmt.Sprintf("\n%s: %s", action.Label, action.URL)
	}
	return text
}
