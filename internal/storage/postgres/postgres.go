// internal/storage/postgres/postgres.go
package postgres

import (
	"card-rewards/internal/domain"
	"card-rewards/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

const uniqueViolation = "23505"

type Storage struct {
	db *pgxpool.Pool
}

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

var (
	_ storage.OwnedCardStorage = (*Storage)(nil)
	_ storage.UserStorage      = (*Storage)(nil)
)

// Connect opens a pool and waits for the database to answer a ping.
// Контейнер с БД часто поднимается позже сервиса, поэтому пингуем с повторами.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			slog.Warn("Postgres ping failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// sanitizeString убирает невидимые символы, которые приходят из мессенджеров
func sanitizeString(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			result = append(result, ' ')
		} else if unicode.IsPrint(r) {
			result = append(result, r)
		}
	}
	return strings.Join(strings.Fields(string(result)), " ")
}

// === OwnedCardStorage ===

func (s *Storage) ListOwnedCards(ctx context.Context, userID int64) ([]domain.OwnedCard, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, card_id, created_at
		FROM user_cards
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query owned cards: %w", err)
	}
	defer rows.Close()

	records := []domain.OwnedCard{}
	for rows.Next() {
		rec := domain.OwnedCard{UserID: userID}
		if err := rows.Scan(&rec.ID, &rec.CardID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan owned card: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// AddOwnedCard is idempotent: an owned card comes back as the existing record
// with created == false.
func (s *Storage) AddOwnedCard(ctx context.Context, userID int64, cardID string) (domain.OwnedCard, bool, error) {
	cardID = sanitizeString(cardID)

	// между INSERT и SELECT запись могут удалить, тогда вставляем ещё раз
	const attempts = 2
	for range attempts {
		rec, created, err := s.addOwnedCardOnce(ctx, userID, cardID)
		if errors.Is(err, errRecordVanished) {
			slog.Debug("Owned card removed concurrently, retrying insert", "user_id", userID, "card_id", cardID)
			continue
		}
		return rec, created, err
	}
	return domain.OwnedCard{}, false, fmt.Errorf("add owned card %q: %w", cardID, errRecordVanished)
}

var errRecordVanished = errors.New("owned card removed during add")

func (s *Storage) addOwnedCardOnce(ctx context.Context, userID int64, cardID string) (domain.OwnedCard, bool, error) {
	rec := domain.OwnedCard{UserID: userID, CardID: cardID}

	err := s.db.QueryRow(ctx, `
		INSERT INTO user_cards (id, user_id, card_id)
		VALUES ($1::uuid, $2, $3)
		ON CONFLICT (user_id, card_id) DO NOTHING
		RETURNING id::text, created_at
	`, uuid.NewString(), userID, cardID).Scan(&rec.ID, &rec.CreatedAt)
	if err == nil {
		slog.Debug("Owned card added", "user_id", userID, "card_id", cardID)
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.OwnedCard{}, false, fmt.Errorf("insert owned card: %w", err)
	}

	// уже есть — возвращаем существующую запись
	err = s.db.QueryRow(ctx, `
		SELECT id::text, created_at FROM user_cards
		WHERE user_id = $1 AND card_id = $2
	`, userID, cardID).Scan(&rec.ID, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OwnedCard{}, false, errRecordVanished
	}
	if err != nil {
		return domain.OwnedCard{}, false, fmt.Errorf("find existing owned card: %w", err)
	}
	return rec, false, nil
}

func (s *Storage) RemoveOwnedCard(ctx context.Context, userID int64, recordID string) (bool, error) {
	// не-UUID не может совпасть ни с одной записью, а Postgres на нём упадёт
	if _, err := uuid.Parse(recordID); err != nil {
		return false, nil
	}
	result, err := s.db.Exec(ctx, `
		DELETE FROM user_cards WHERE user_id = $1 AND id = $2::uuid
	`, userID, recordID)
	if err != nil {
		return false, fmt.Errorf("delete owned card: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *Storage) RemoveOwnedCardByCardID(ctx context.Context, userID int64, cardID string) (bool, error) {
	cardID = sanitizeString(cardID)
	result, err := s.db.Exec(ctx, `
		DELETE FROM user_cards WHERE user_id = $1 AND card_id = $2
	`, userID, cardID)
	if err != nil {
		return false, fmt.Errorf("delete owned card by card id: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// === UserStorage ===

func (s *Storage) CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u := domain.User{Email: email, PasswordHash: passwordHash}

	err := s.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash) VALUES ($1, $2)
		RETURNING id, created_at
	`, email, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, storage.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.scanUser(s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, telegram_id, created_at
		FROM users WHERE email = $1
	`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Storage) FindOrCreateTelegramUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	u, err := s.scanUser(s.db.QueryRow(ctx, `
		INSERT INTO users (telegram_id) VALUES ($1)
		ON CONFLICT (telegram_id) DO UPDATE SET telegram_id = EXCLUDED.telegram_id
		RETURNING id, email, password_hash, telegram_id, created_at
	`, telegramID))
	if err != nil {
		return nil, fmt.Errorf("create or get telegram user: %w", err)
	}
	return u, nil
}

func (s *Storage) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		email *string
		hash  *string
	)
	if err := row.Scan(&u.ID, &email, &hash, &u.TelegramID, &u.CreatedAt); err != nil {
		return nil, err
	}
	if email != nil {
		u.Email = *email
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	return &u, nil
}
