// Package bot answers Telegram commands on top of the card service.
package bot

import (
	"card-rewards/internal/domain"
	"card-rewards/internal/ranking"
	"card-rewards/internal/service"
	"card-rewards/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/encoding/charmap"
)

const helpText = "💳 *Card rewards*\n\n" +
	"Commands:\n" +
	"`/cards` — your cards\n" +
	"`/catalog [text]` — search cards you can add\n" +
	"`/add apple-card, amex-gold` — add cards by id\n" +
	"`/remove apple-card` — remove a card\n" +
	"`/best dining` — which card to use\n" +
	"`/categories` — category keys"

// catalog replies get long fast; Telegram caps messages at 4096 chars
const maxCatalogLines = 25

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	cards *service.Cards
	users storage.UserStorage
}

func New(cards *service.Cards, users storage.UserStorage) *Bot {
	return &Bot{cards: cards, users: users}
}

// HandleUpdate answers one update. Updates without a text message are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, api Sender, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	telegramID := update.Message.From.ID
	text := SanitizeInput(fixEncoding(update.Message.Text))
	slog.Info("📥 Message received", "telegram_id", telegramID, "text", text)

	msg := tgbotapi.NewMessage(chatID, b.Reply(ctx, telegramID, text))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := api.Send(msg); err != nil {
		slog.Error("Send failed", "chat_id", chatID, "error", err)
	}
}

// Reply maps one command to its answer text.
func (b *Bot) Reply(ctx context.Context, telegramID int64, text string) string {
	command, args, _ := strings.Cut(text, " ")
	// в группах команда приходит как /best@card_bot
	command, _, _ = strings.Cut(command, "@")
	args = strings.TrimSpace(args)

	if command == "/start" || command == "/help" {
		return helpText
	}
	if command == "/categories" {
		return categoriesText()
	}

	user, err := b.users.FindOrCreateTelegramUser(ctx, telegramID)
	if err != nil {
		slog.Error("Telegram user lookup failed", "telegram_id", telegramID, "error", err)
		return "❌ Error: try again later"
	}

	var (
		reply     string
		handleErr error
	)
	switch command {
	case "/cards":
		reply, handleErr = b.handleCards(ctx, user.ID)
	case "/catalog":
		reply, handleErr = b.handleCatalog(ctx, user.ID, args)
	case "/add":
		reply, handleErr = b.handleAdd(ctx, user.ID, args)
	case "/remove":
		reply, handleErr = b.handleRemove(ctx, user.ID, args)
	case "/best":
		reply, handleErr = b.handleBest(ctx, user.ID, args)
	default:
		reply = "Unknown command. Send /help"
	}

	if handleErr != nil {
		slog.Error("Command failed", "command", command, "user_id", user.ID, "error", handleErr)
		return "❌ Error: " + userMessage(handleErr)
	}
	return reply
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrUnknownCard):
		return "unknown card id, see /catalog"
	case errors.Is(err, domain.ErrUnknownCategory):
		return "unknown category, see /categories"
	default:
		return "try again later"
	}
}

func categoriesText() string {
	lines := []string{"🗂 *Categories*"}
	for _, c := range domain.Categories {
		lines = append(lines, fmt.Sprintf("- `%s` — %s", c, c.Label()))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) handleCards(ctx context.Context, userID int64) (string, error) {
	owned, err := b.cards.ListOwned(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(owned) == 0 {
		return "📭 No cards yet. Find one with /catalog and add it with /add", nil
	}

	lines := []string{"💳 *Your cards*"}
	for _, rec := range owned {
		if rec.Card == nil {
			lines = append(lines, fmt.Sprintf("- Unknown (`%s`)", rec.CardID))
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s, %s (`%s`)", rec.Card.Name, rec.Card.Brand, rec.CardID))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) handleCatalog(ctx context.Context, userID int64, query string) (string, error) {
	cards, err := b.cards.Available(ctx, userID, query)
	if err != nil {
		return "", err
	}
	if len(cards) == 0 {
		return "📭 Nothing found", nil
	}

	lines := []string{"🔍 *Cards you can add*"}
	for i, card := range cards {
		if i == maxCatalogLines {
			lines = append(lines, fmt.Sprintf("…and %d more, narrow the search", len(cards)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("- %s (`%s`)", card.Name, card.ID))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) handleAdd(ctx context.Context, userID int64, args string) (string, error) {
	var ids []string
	for _, part := range strings.Split(args, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	if len(ids) == 0 {
		return "❌ Use: /add apple-card, amex-gold", nil
	}

	records, err := b.cards.Add(ctx, userID, ids...)
	if err != nil {
		return "", err
	}
	names := make([]string, len(records))
	for i, rec := range records {
		names[i] = rec.CardID
		if rec.Card != nil {
			names[i] = rec.Card.Name
		}
	}
	return "✅ Saved: " + strings.Join(names, ", "), nil
}

func (b *Bot) handleRemove(ctx context.Context, userID int64, cardID string) (string, error) {
	if cardID == "" {
		return "❌ Use: /remove apple-card", nil
	}
	removed, err := b.cards.RemoveByCardID(ctx, userID, cardID)
	if err != nil {
		return "", err
	}
	if !removed {
		return "📭 You don't have that card", nil
	}
	return "✅ Card removed", nil
}

func (b *Bot) handleBest(ctx context.Context, userID int64, args string) (string, error) {
	if args == "" {
		return "❌ Use: /best dining (see /categories)", nil
	}
	category, err := domain.ParseCategory(args)
	if err != nil {
		return "", err
	}

	entries, err := b.cards.Rank(ctx, userID, category)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "📭 No cards yet. Add some with /add", nil
	}

	lines := []string{fmt.Sprintf("🏆 *Best cards for %s*", category.Label())}
	for i, rc := range ranking.View(entries) {
		lines = append(lines, fmt.Sprintf("%d. %s: %s%%", i+1, rc.DisplayName, formatRate(rc.RewardRate)))
	}
	return strings.Join(lines, "\n"), nil
}

func formatRate(r float64) string {
	s := fmt.Sprintf("%.2f", r)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// SanitizeInput заменяет любые пробельные символы обычным пробелом и схлопывает их.
func SanitizeInput(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func fixEncoding(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	// Пробуем перекодировать из windows-1251
	decoder := charmap.Windows1251.NewDecoder()
	fixed, err := decoder.String(s)
	if err == nil && utf8.ValidString(fixed) {
		return fixed
	}

	return strings.ToValidUTF8(s, "")
}
