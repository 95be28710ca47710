// Package service joins the ownership store, the card catalog and the
// ranking engine. Both the HTTP API and the Telegram bot go through it.
package service

import (
	"card-rewards/internal/catalog"
	"card-rewards/internal/domain"
	"card-rewards/internal/ranking"
	"card-rewards/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrUnknownCard = errors.New("unknown card")

type Cards struct {
	store   storage.OwnedCardStorage
	catalog *catalog.Catalog
}

func NewCards(store storage.OwnedCardStorage, cat *catalog.Catalog) *Cards {
	return &Cards{store: store, catalog: cat}
}

func (s *Cards) Catalog() *catalog.Catalog {
	return s.catalog
}

// ListOwned returns the user's records with their catalog card attached.
// Records pointing at ids the catalog no longer has keep Card == nil.
func (s *Cards) ListOwned(ctx context.Context, userID int64) ([]domain.OwnedCard, error) {
	records, err := s.store.ListOwnedCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned cards: %w", err)
	}
	for i := range records {
		s.attach(&records[i])
	}
	return records, nil
}

func (s *Cards) attach(rec *domain.OwnedCard) {
	card, ok := s.catalog.FindCard(rec.CardID)
	if !ok {
		slog.Warn("Owned card missing from catalog", "record_id", rec.ID, "card_id", rec.CardID)
		rec.Card = nil
		return
	}
	rec.Card = &card
}

// Add adds every card id to the user's set. All ids are checked against the
// catalog before anything is written. Ids the user already owns are
// returned as their existing records.
func (s *Cards) Add(ctx context.Context, userID int64, cardIDs ...string) ([]domain.OwnedCard, error) {
	ids := make([]string, 0, len(cardIDs))
	seen := make(map[string]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		id = strings.TrimSpace(id)
		if _, ok := s.catalog.FindCard(id); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCard, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	records := make([]domain.OwnedCard, 0, len(ids))
	for _, id := range ids {
		rec, created, err := s.store.AddOwnedCard(ctx, userID, id)
		if err != nil {
			return nil, fmt.Errorf("add card %q: %w", id, err)
		}
		if created {
			slog.Info("Card added", "user_id", userID, "card_id", id)
		}
		s.attach(&rec)
		records = append(records, rec)
	}
	return records, nil
}

// Remove deletes records by record id. Unknown ids are skipped; the count of
// records actually removed is returned.
func (s *Cards) Remove(ctx context.Context, userID int64, recordIDs ...string) (int, error) {
	removed := 0
	for _, id := range recordIDs {
		ok, err := s.store.RemoveOwnedCard(ctx, userID, strings.TrimSpace(id))
		if err != nil {
			return removed, fmt.Errorf("remove record %q: %w", id, err)
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Cards removed", "user_id", userID, "count", removed)
	}
	return removed, nil
}

func (s *Cards) RemoveByCardID(ctx context.Context, userID int64, cardID string) (bool, error) {
	removed, err := s.store.RemoveOwnedCardByCardID(ctx, userID, strings.TrimSpace(cardID))
	if err != nil {
		return false, fmt.Errorf("remove card %q: %w", cardID, err)
	}
	return removed, nil
}

// Rank lists the user's cards and orders them for category.
func (s *Cards) Rank(ctx context.Context, userID int64, category domain.Category) ([]domain.RankedEntry, error) {
	owned, err := s.ListOwned(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ranking.Rank(owned, category), nil
}

// Available searches the catalog and drops cards the user already owns.
func (s *Cards) Available(ctx context.Context, userID int64, query string) ([]domain.Card, error) {
	records, err := s.store.ListOwnedCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned cards: %w", err)
	}
	owned := make([]string, len(records))
	for i, rec := range records {
		owned[i] = rec.CardID
	}
	return catalog.Available(s.catalog.Search(query), owned), nil
}
