package infrastructure

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tenantbot/internal/interfaces"
)

// TelegramNotifier forwards operator alerts to one Telegram chat through a bot.
type TelegramNotifier struct {
	Bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewTelegramNotifier returns a log-only notifier when the bot is not
// configured or the token is rejected, so alerts never block startup.
func NewTelegramNotifier(token string, chatID int64, log *zap.Logger) interfaces.Notifier {
	return newTelegramNotifier(token, chatID, tgbotapi.APIEndpoint, log)
}

func newTelegramNotifier(token string, chatID int64, endpoint string, log *zap.Logger) interfaces.Notifier {
	if token == "" || chatID == 0 {
		return &LogNotifier{log: log}
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		log.Warn("Telegram alert bot unavailable, alerts go to the log", zap.Error(err))
		return &LogNotifier{log: log}
	}
	log.Info("Telegram alert bot ready", zap.String("bot", bot.Self.UserName))
	return &TelegramNotifier{Bot: bot, chatID: chatID, log: log}
}

func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram alert: %w", err)
	}
	return nil
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(ctx context.Context, text string) error {
	l.log.Warn("Operator alert", zap.String("alert", text))
	return nil
}
