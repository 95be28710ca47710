// Package cache wraps an OwnedCardStorage with a Redis read-through cache.
package cache

import (
	"card-rewards/internal/domain"
	"card-rewards/internal/storage"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of *redis.Client the cache needs.
type Client interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// OwnedCards caches each user's list under owned_cards:<userID>. Every
// change to the set bumps owned_cards_ver:<userID>, and a cached list is only
// served while its version matches, so a fill racing a write cannot pin the
// old list. Redis errors never reach the caller; the wrapped storage answers
// instead.
type OwnedCards struct {
	next   storage.OwnedCardStorage
	client Client
	ttl    time.Duration
}

var _ storage.OwnedCardStorage = (*OwnedCards)(nil)

func NewOwnedCards(next storage.OwnedCardStorage, client Client, ttl time.Duration) *OwnedCards {
	return &OwnedCards{next: next, client: client, ttl: ttl}
}

func ownedKey(userID int64) string {
	return fmt.Sprintf("owned_cards:%d", userID)
}

func versionKey(userID int64) string {
	return fmt.Sprintf("owned_cards_ver:%d", userID)
}

type entry struct {
	Version int64              `json:"version"`
	Records []domain.OwnedCard `json:"records"`
}

func (c *OwnedCards) ListOwnedCards(ctx context.Context, userID int64) ([]domain.OwnedCard, error) {
	key := ownedKey(userID)

	// версию читаем до похода в хранилище: запись, сделанная позже, её поднимет
	version, cached, hit, ok := c.read(ctx, userID)
	if hit {
		return cached, nil
	}

	records, err := c.next.ListOwnedCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return records, nil
	}

	data, err := json.Marshal(entry{Version: version, Records: records})
	if err == nil {
		err = c.client.Set(ctx, key, data, c.ttl).Err()
	}
	if err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
	return records, nil
}

// read returns the current version and, when the stored entry carries that
// version, its records with hit set. ok is false when Redis could not be read.
func (c *OwnedCards) read(ctx context.Context, userID int64) (version int64, records []domain.OwnedCard, hit, ok bool) {
	key := ownedKey(userID)
	vals, err := c.client.MGet(ctx, key, versionKey(userID)).Result()
	if err != nil || len(vals) != 2 {
		slog.Warn("Cache read failed", "key", key, "error", err)
		return 0, nil, false, false
	}

	if raw, isStr := vals[1].(string); isStr {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.Warn("Corrupt cache version", "key", versionKey(userID), "value", raw)
			return 0, nil, false, false
		}
	}

	raw, isStr := vals[0].(string)
	if !isStr {
		return version, nil, false, true
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		slog.Warn("Corrupt cache entry, reloading", "key", key)
		return version, nil, false, true
	}
	if e.Version != version {
		return version, nil, false, true
	}
	if e.Records == nil {
		e.Records = []domain.OwnedCard{}
	}
	for i := range e.Records {
		e.Records[i].UserID = userID
		e.Records[i].Card = nil
	}
	return version, e.Records, true, true
}

func (c *OwnedCards) AddOwnedCard(ctx context.Context, userID int64, cardID string) (domain.OwnedCard, bool, error) {
	rec, created, err := c.next.AddOwnedCard(ctx, userID, cardID)
	if err == nil && created {
		c.invalidate(ctx, userID)
	}
	return rec, created, err
}

func (c *OwnedCards) RemoveOwnedCard(ctx context.Context, userID int64, recordID string) (bool, error) {
	removed, err := c.next.RemoveOwnedCard(ctx, userID, recordID)
	if err == nil && removed {
		c.invalidate(ctx, userID)
	}
	return removed, err
}

func (c *OwnedCards) RemoveOwnedCardByCardID(ctx context.Context, userID int64, cardID string) (bool, error) {
	removed, err := c.next.RemoveOwnedCardByCardID(ctx, userID, cardID)
	if err == nil && removed {
		c.invalidate(ctx, userID)
	}
	return removed, err
}

func (c *OwnedCards) invalidate(ctx context.Context, userID int64) {
	if err := c.client.Incr(ctx, versionKey(userID)).Err(); err != nil {
		slog.Warn("Cache version bump failed", "user_id", userID, "error", err)
	}
	if err := c.client.Del(ctx, ownedKey(userID)).Err(); err != nil {
		slog.Warn("Cache invalidation failed", "user_id", userID, "error", err)
	}
}
