package bot

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"card-rewards/internal/catalog"
	"card-rewards/internal/domain"
	"card-rewards/internal/service"
	"card-rewards/internal/storage/memory"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func newTestBot(t *testing.T) (*Bot, *memory.Storage) {
	t.Helper()
	cat, err := catalog.New([]domain.Card{
		{ID: "alpha", Name: "Alpha Card", Brand: "Alpha Bank", Rewards: domain.RewardTable{domain.Dining: 3, domain.Groceries: 1}},
		{ID: "beta", Name: "Beta Card", Brand: "Beta Bank", Rewards: domain.RewardTable{domain.Dining: 1, domain.Groceries: 5}},
		{ID: "gamma", Name: "Gamma Card", Brand: "Gamma Bank", Rewards: domain.RewardTable{domain.Dining: 1.5}},
	})
	require.NoError(t, err)
	store := memory.NewStorage()
	return New(service.NewCards(store, cat), store), store
}

func TestReplyHelpAndCategories(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()

	assert.Equal(t, helpText, b.Reply(ctx, 1, "/start"))
	assert.Equal(t, helpText, b.Reply(ctx, 1, "/help@cards_bot"))

	cats := b.Reply(ctx, 1, "/categories")
	assert.Contains(t, cats, "`onlineShopping` — Online Shopping")

	assert.Equal(t, "Unknown command. Send /help", b.Reply(ctx, 1, "hello"))
}

func TestReplyCardFlow(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()
	const tg = int64(555)

	assert.Contains(t, b.Reply(ctx, tg, "/cards"), "No cards yet")
	assert.Contains(t, b.Reply(ctx, tg, "/best dining"), "No cards yet")

	assert.Equal(t, "✅ Saved: Alpha Card, Beta Card", b.Reply(ctx, tg, "/add alpha, beta"))
	// повторное добавление ничего не ломает
	assert.Equal(t, "✅ Saved: Alpha Card", b.Reply(ctx, tg, "/add alpha"))
	assert.Contains(t, b.Reply(ctx, tg, "/add nope"), "unknown card id")
	assert.Contains(t, b.Reply(ctx, tg, "/add"), "Use: /add")

	cards := b.Reply(ctx, tg, "/cards")
	assert.Contains(t, cards, "Alpha Card, Alpha Bank (`alpha`)")
	assert.Contains(t, cards, "Beta Card, Beta Bank (`beta`)")

	catalogReply := b.Reply(ctx, tg, "/catalog")
	assert.Contains(t, catalogReply, "`gamma`")
	assert.NotContains(t, catalogReply, "`alpha`")

	assert.Equal(t, "🏆 *Best cards for Groceries*\n1. Beta Card: 5%\n2. Alpha Card: 1%", b.Reply(ctx, tg, "/best groceries"))
	assert.Equal(t, "🏆 *Best cards for Dining*\n1. Alpha Card: 3%\n2. Beta Card: 1%", b.Reply(ctx, tg, "/best Dining"))
	assert.Contains(t, b.Reply(ctx, tg, "/best casino"), "unknown category")
	assert.Contains(t, b.Reply(ctx, tg, "/best"), "Use: /best")

	assert.Equal(t, "✅ Card removed", b.Reply(ctx, tg, "/remove alpha"))
	assert.Equal(t, "📭 You don't have that card", b.Reply(ctx, tg, "/remove alpha"))
	assert.Contains(t, b.Reply(ctx, tg, "/remove"), "Use: /remove")
}

func TestReplyIsPerTelegramUser(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()

	b.Reply(ctx, 1, "/add alpha")
	assert.Contains(t, b.Reply(ctx, 2, "/cards"), "No cards yet")
}

func TestReplyUnknownCatalogEntry(t *testing.T) {
	b, store := newTestBot(t)
	ctx := context.Background()

	user, err := store.FindOrCreateTelegramUser(ctx, 9)
	require.NoError(t, err)
	_, _, err = store.AddOwnedCard(ctx, user.ID, "retired")
	require.NoError(t, err)
	b.Reply(ctx, 9, "/add gamma")

	assert.Equal(t, "🏆 *Best cards for Dining*\n1. Gamma Card: 1.5%\n2. Unknown: 0%", b.Reply(ctx, 9, "/best dining"))
	assert.Contains(t, b.Reply(ctx, 9, "/cards"), "Unknown (`retired`)")
}

func TestHandleUpdate(t *testing.T) {
	b, _ := newTestBot(t)
	sender := &fakeSender{}

	b.HandleUpdate(context.Background(), sender, tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: "/add alpha",
			Chat: &tgbotapi.Chat{ID: 77},
			From: &tgbotapi.User{ID: 5},
		},
	})
	b.HandleUpdate(context.Background(), sender, tgbotapi.Update{})

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(77), sender.sent[0].ChatID)
	assert.Equal(t, "✅ Saved: Alpha Card", sender.sent[0].Text)
	assert.Equal(t, tgbotapi.ModeMarkdown, sender.sent[0].ParseMode)
}

func TestWebhookHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	b, store := newTestBot(t)
	sender := &fakeSender{}

	router := gin.New()
	router.POST("/telegram", b.WebhookHandler(sender, "s3cret"))

	post := func(body, secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/telegram", bytes.NewBufferString(body))
		if secret != "" {
			req.Header.Set(secretHeader, secret)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("signed update is answered", func(t *testing.T) {
		body := `{"update_id":1,"message":{"message_id":1,"text":"/help","chat":{"id":10,"type":"private"},"from":{"id":3,"is_bot":false,"first_name":"A"}}}`
		w := post(body, "s3cret")
		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, helpText, sender.sent[0].Text)
	})

	t.Run("bad json", func(t *testing.T) {
		w := post("{", "s3cret")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("forged update is rejected", func(t *testing.T) {
		body := `{"update_id":2,"message":{"message_id":2,"text":"/add alpha","chat":{"id":11,"type":"private"},"from":{"id":42,"is_bot":false,"first_name":"B"}}}`
		for _, secret := range []string{"", "wrong"} {
			w := post(body, secret)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		}
		require.Len(t, sender.sent, 1)

		user, err := store.FindOrCreateTelegramUser(context.Background(), 42)
		require.NoError(t, err)
		owned, err := store.ListOwnedCards(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Empty(t, owned)
	})
}

func TestWebhookHandlerWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	b, _ := newTestBot(t)
	sender := &fakeSender{}

	router := gin.New()
	router.POST("/telegram", b.WebhookHandler(sender, ""))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/telegram", bytes.NewBufferString(`{"update_id":1}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, sender.sent)
}

func TestSanitizeInputAndEncoding(t *testing.T) {
	assert.Equal(t, "/best dining", SanitizeInput("  /best  dining\n"))

	assert.Equal(t, "plain", fixEncoding("plain"))
	// "Привет" в windows-1251
	assert.Equal(t, "Привет", fixEncoding(string([]byte{0xcf, 0xf0, 0xe8, 0xe2, 0xe5, 0xf2})))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "0", formatRate(0))
	assert.Equal(t, "1.5", formatRate(1.5))
	assert.Equal(t, "10", formatRate(10))
	assert.Equal(t, "2.25", formatRate(2.25))
}
