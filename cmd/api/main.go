// cmd/api/main.go
package main

import (
	"card-rewards/internal/app"
	"card-rewards/internal/auth"
	"card-rewards/internal/bot"
	"card-rewards/internal/config"
	"card-rewards/internal/handler"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg := config.MustLoad()
	slog.SetDefault(config.NewLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	deps := handler.RouterDeps{
		Cards:  a.Cards,
		Users:  a.Users,
		Tokens: auth.NewTokenService(cfg),
	}

	// Telegram webhook: бот отвечает через этот же сервер
	if cfg.TelegramToken != "" && cfg.WebhookURL != "" {
		if cfg.WebhookSecret == "" {
			slog.Error("WEBHOOK_SECRET must be set together with WEBHOOK_URL")
			os.Exit(1)
		}
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			slog.Error("Failed to init Telegram bot", "error", err)
			os.Exit(1)
		}
		if err := bot.SetWebhook(api, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			slog.Error("Failed to set webhook", "error", err)
			os.Exit(1)
		}
		deps.Telegram = bot.New(a.Cards, a.Users).WebhookHandler(api, cfg.WebhookSecret)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("🚀 Server started", "addr", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server stopped with error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
	slog.Info("Server stopped")
}
