// internal/domain/models.go
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrUnknownCategory = errors.New("unknown category")

// Category — ключ категории трат, закрытое перечисление
type Category string

const (
	Groceries        Category = "groceries"
	Dining           Category = "dining"
	Gas              Category = "gas"
	Travel           Category = "travel"
	Transit          Category = "transit"
	Drugstores       Category = "drugstores"
	OnlineShopping   Category = "onlineShopping"
	Entertainment    Category = "entertainment"
	Streaming        Category = "streaming"
	Wholesale        Category = "wholesale"
	Wireless         Category = "wireless"
	DepartmentStores Category = "departmentStores"
	HomeImprovement  Category = "homeImprovement"
	Other            Category = "other"
)

// Categories lists every selectable category in display order.
var Categories = []Category{
	Groceries, Dining, Gas, Travel, Transit, Drugstores, OnlineShopping,
	Entertainment, Streaming, Wholesale, Wireless, DepartmentStores, HomeImprovement, Other,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label turns "onlineShopping" into "Online Shopping".
func (c Category) Label() string {
	var b strings.Builder
	for i, r := range string(c) {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	// Caser хранит состояние, поэтому создаём на каждый вызов
	return cases.Title(language.English).String(b.String())
}

// ParseCategory matches case-insensitively, so "onlineshopping" and "ONLINESHOPPING" both work.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// RewardTable — процент кэшбэка по категориям. Может быть неполной.
type RewardTable map[Category]float64

// Rate is the only place the "missing category earns 0" rule lives.
func (t RewardTable) Rate(c Category) float64 {
	if t == nil {
		return 0
	}
	return t[c]
}

type Card struct {
	ID      string      `json:"id" yaml:"id"`
	Name    string      `json:"name" yaml:"name"`
	Brand   string      `json:"brand" yaml:"brand"`
	Rewards RewardTable `json:"rewards" yaml:"rewards"`
}

// OwnedCard — запись о том, что пользователь добавил карту из каталога.
// Card is nil when the catalog no longer knows CardID.
type OwnedCard struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"-"`
	CardID    string    `json:"card_id"`
	Card      *Card     `json:"card,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RankedEntry struct {
	Record OwnedCard
	Reward float64
}

// RankedCard is what clients render for a ranking.
type RankedCard struct {
	CardID      string  `json:"card_id"`
	DisplayName string  `json:"display_name"`
	Brand       string  `json:"brand"`
	RewardRate  float64 `json:"reward_rate"`
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TelegramID   *int64    `json:"telegram_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
