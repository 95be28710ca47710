// Package catalog holds the static reference table of cards a user can add.
package catalog

import (
	_ "embed"
	"fmt"
	"maps"
	"math"
	"strings"
	"sync"

	"card-rewards/internal/domain"

	"github.com/goccy/go-yaml"
)

//go:embed cards.yaml
var embedded []byte

type Catalog struct {
	cards []domain.Card
	byID  map[string]int
}

type file struct {
	Cards []struct {
		ID      string             `yaml:"id"`
		Name    string             `yaml:"name"`
		Brand   string             `yaml:"brand"`
		Rewards map[string]float64 `yaml:"rewards"`
	} `yaml:"cards"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary. It panics if the
// embedded file is broken, which tests catch.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse builds a catalog from YAML and validates it.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	cards, err := f.toCards()
	if err != nil {
		return nil, err
	}
	return New(cards)
}

func (f file) toCards() ([]domain.Card, error) {
	cards := make([]domain.Card, 0, len(f.Cards))
	for _, raw := range f.Cards {
		rewards := make(domain.RewardTable, len(raw.Rewards))
		for key, rate := range raw.Rewards {
			cat, err := domain.ParseCategory(key)
			if err != nil {
				return nil, fmt.Errorf("card %q: %w", raw.ID, err)
			}
			rewards[cat] = rate
		}
		cards = append(cards, domain.Card{
			ID:      raw.ID,
			Name:    raw.Name,
			Brand:   raw.Brand,
			Rewards: rewards,
		})
	}
	return cards, nil
}

// New validates cards and indexes them by id.
func New(cards []domain.Card) (*Catalog, error) {
	c := &Catalog{
		cards: make([]domain.Card, 0, len(cards)),
		byID:  make(map[string]int, len(cards)),
	}
	for _, card := range cards {
		if strings.TrimSpace(card.ID) == "" {
			return nil, fmt.Errorf("card id cannot be empty")
		}
		if _, dup := c.byID[card.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %q", card.ID)
		}
		for cat, rate := range card.Rewards {
			if !cat.Valid() {
				return nil, fmt.Errorf("card %q: %w: %s", card.ID, domain.ErrUnknownCategory, cat)
			}
			if math.IsNaN(rate) || math.IsInf(rate, 0) {
				return nil, fmt.Errorf("card %q: rate for %s is not a finite number", card.ID, cat)
			}
			if rate < 0 {
				return nil, fmt.Errorf("card %q: negative rate for %s", card.ID, cat)
			}
		}
		c.byID[card.ID] = len(c.cards)
		c.cards = append(c.cards, clone(card))
	}
	return c, nil
}

// FindCard reports false when id is not in the catalog. Absence is not a fault.
func (c *Catalog) FindCard(id string) (domain.Card, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Card{}, false
	}
	return clone(c.cards[i]), true
}

// Cards returns every card in file order. The result shares nothing with
// the catalog.
func (c *Catalog) Cards() []domain.Card {
	out := make([]domain.Card, len(c.cards))
	for i, card := range c.cards {
		out[i] = clone(card)
	}
	return out
}

// clone copies the reward table so callers can't write through to the catalog.
func clone(card domain.Card) domain.Card {
	card.Rewards = maps.Clone(card.Rewards)
	return card
}

func (c *Catalog) Len() int {
	return len(c.cards)
}

// Search matches query against name and brand, ignoring case.
// An empty query returns the whole catalog.
func (c *Catalog) Search(query string) []domain.Card {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Cards()
	}
	var out []domain.Card
	for _, card := range c.cards {
		if strings.Contains(strings.ToLower(card.Name), q) || strings.Contains(strings.ToLower(card.Brand), q) {
			out = append(out, clone(card))
		}
	}
	return out
}

// Available filters out cards whose id is in owned.
func Available(cards []domain.Card, owned []string) []domain.Card {
	skip := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		skip[id] = struct{}{}
	}
	out := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		if _, ok := skip[card.ID]; !ok {
			out = append(out, card)
		}
	}
	return out
}
