// Package memory is an in-process implementation of the storage interfaces,
// used by tests and by STORAGE=memory for local runs.
package memory

import (
	"card-rewards/internal/domain"
	"card-rewards/internal/storage"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Storage struct {
	mu     sync.Mutex
	owned  map[int64][]domain.OwnedCard
	users  []domain.User
	nextID int64
	now    func() time.Time
}

func NewStorage() *Storage {
	return &Storage{
		owned:  make(map[int64][]domain.OwnedCard),
		nextID: 1,
		now:    time.Now,
	}
}

var (
	_ storage.OwnedCardStorage = (*Storage)(nil)
	_ storage.UserStorage      = (*Storage)(nil)
)

// === OwnedCardStorage ===

func (s *Storage) ListOwnedCards(_ context.Context, userID int64) ([]domain.OwnedCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.owned[userID]
	out := make([]domain.OwnedCard, len(records))
	copy(out, records)
	return out, nil
}

func (s *Storage) AddOwnedCard(_ context.Context, userID int64, cardID string) (domain.OwnedCard, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.owned[userID] {
		if rec.CardID == cardID {
			return rec, false, nil
		}
	}

	rec := domain.OwnedCard{
		ID:        uuid.NewString(),
		UserID:    userID,
		CardID:    cardID,
		CreatedAt: s.now().UTC(),
	}
	s.owned[userID] = append(s.owned[userID], rec)
	return rec, true, nil
}

func (s *Storage) RemoveOwnedCard(_ context.Context, userID int64, recordID string) (bool, error) {
	return s.removeWhere(userID, func(rec domain.OwnedCard) bool { return rec.ID == recordID }), nil
}

func (s *Storage) RemoveOwnedCardByCardID(_ context.Context, userID int64, cardID string) (bool, error) {
	return s.removeWhere(userID, func(rec domain.OwnedCard) bool { return rec.CardID == cardID }), nil
}

func (s *Storage) removeWhere(userID int64, match func(domain.OwnedCard) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.owned[userID]
	for i, rec := range records {
		if match(rec) {
			// новый слайс, чтобы не портить копии, отданные из ListOwnedCards
			kept := make([]domain.OwnedCard, 0, len(records)-1)
			kept = append(kept, records[:i]...)
			kept = append(kept, records[i+1:]...)
			s.owned[userID] = kept
			return true
		}
	}
	return false
}

// === UserStorage ===

func (s *Storage) CreateUser(_ context.Context, email, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return nil, storage.ErrEmailTaken
		}
	}
	u := domain.User{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.nextID++
	s.users = append(s.users, u)
	return &u, nil
}

func (s *Storage) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Storage) FindOrCreateTelegramUser(_ context.Context, telegramID int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			found := u
			return &found, nil
		}
	}
	tgID := telegramID
	u := domain.User{
		ID:         s.nextID,
		TelegramID: &tgID,
		CreatedAt:  s.now().UTC(),
	}
	s.nextID++
	s.users = append(s.users, u)
	return &u, nil
}
