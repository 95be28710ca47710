// cmd/bot/main.go
package main

import (
	"card-rewards/internal/app"
	"card-rewards/internal/bot"
	"card-rewards/internal/config"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg := config.MustLoad()
	slog.SetDefault(config.NewLogger(cfg))

	if cfg.TelegramToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		slog.Error("Failed to init Telegram bot", "error", err)
		os.Exit(1)
	}
	// long polling не работает при активном webhook
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Warn("Failed to delete webhook", "error", err)
	}

	slog.Info("Bot started", "username", api.Self.UserName)
	bot.New(a.Cards, a.Users).Poll(ctx, api)
	slog.Info("Bot stopped")
}
