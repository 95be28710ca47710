package bot

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Poll reads updates with long polling until ctx is cancelled.
func (b *Bot) Poll(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, api, update)
		}
	}
}

// secretHeader carries the secret_token given to setWebhook on every update.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// SetWebhook points Telegram at baseURL + "/telegram" and asks it to sign
// every update with secret.
func SetWebhook(api *tgbotapi.BotAPI, baseURL, secret string) error {
	if secret == "" {
		return errors.New("webhook secret is empty")
	}
	webhookURL := baseURL + "/telegram"
	params := tgbotapi.Params{"url": webhookURL, "secret_token": secret}
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	slog.Info("Telegram webhook set", "url", webhookURL)
	return nil
}

// WebhookHandler answers updates Telegram posts to the API server. Requests
// without the matching secret header get 401.
func (b *Bot) WebhookHandler(api Sender, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(secretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			slog.Warn("Webhook request with bad secret", "ip", c.ClientIP())
			c.Status(http.StatusUnauthorized)
			return
		}

		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			slog.Error("Failed to parse update", "error", err)
			c.Status(http.StatusBadRequest)
			return
		}
		b.HandleUpdate(c.Request.Context(), api, update)
		c.Status(http.StatusOK)
	}
}
