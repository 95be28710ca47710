// internal/storage/storage.go
package storage

import (
	"card-rewards/internal/domain"
	"context"
	"errors"
)

var ErrEmailTaken = errors.New("email already registered")

// OwnedCardStorage хранит, какие карты из каталога добавил пользователь.
// Records come back without the embedded Card; the service attaches it.
type OwnedCardStorage interface {
	ListOwnedCards(ctx context.Context, userID int64) ([]domain.OwnedCard, error)
	// AddOwnedCard is idempotent: for an already owned card it returns the
	// existing record and created=false.
	AddOwnedCard(ctx context.Context, userID int64, cardID string) (rec domain.OwnedCard, created bool, err error)
	// RemoveOwnedCard is a no-op (false, nil) when recordID is not owned by userID.
	RemoveOwnedCard(ctx context.Context, userID int64, recordID string) (bool, error)
	RemoveOwnedCardByCardID(ctx context.Context, userID int64, cardID string) (bool, error)
}

type UserStorage interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error)
	// FindUserByEmail returns nil, nil when there is no such user.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindOrCreateTelegramUser(ctx context.Context, telegramID int64) (*domain.User, error)
}
