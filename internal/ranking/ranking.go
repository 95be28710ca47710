// Package ranking orders a user's cards by reward rate for a spending category.
//
// Everything here is a pure function of its arguments: no I/O, no shared
// state, identical output for identical input.
package ranking

import (
	"cmp"
	"slices"

	"card-rewards/internal/domain"
)

// Reward is the rate a record earns in category. A record whose card could
// not be resolved from the catalog earns 0.
func Reward(record domain.OwnedCard, category domain.Category) float64 {
	if record.Card == nil {
		return 0
	}
	return record.Card.Rewards.Rate(category)
}

// Rank returns owned sorted best to worst for category. Records with equal
// rewards keep their input order. The input slice is left untouched.
func Rank(owned []domain.OwnedCard, category domain.Category) []domain.RankedEntry {
	entries := make([]domain.RankedEntry, len(owned))
	for i, record := range owned {
		entries[i] = domain.RankedEntry{Record: record, Reward: Reward(record, category)}
	}
	slices.SortStableFunc(entries, func(a, b domain.RankedEntry) int {
		return cmp.Compare(b.Reward, a.Reward)
	})
	return entries
}

// Best returns the top entry, or false when nothing is owned.
func Best(owned []domain.OwnedCard, category domain.Category) (domain.RankedEntry, bool) {
	ranked := Rank(owned, category)
	if len(ranked) == 0 {
		return domain.RankedEntry{}, false
	}
	return ranked[0], true
}

// View projects entries into what clients render.
func View(entries []domain.RankedEntry) []domain.RankedCard {
	out := make([]domain.RankedCard, len(entries))
	for i, e := range entries {
		rc := domain.RankedCard{
			CardID:      e.Record.CardID,
			DisplayName: "Unknown",
			RewardRate:  e.Reward,
		}
		if e.Record.Card != nil {
			rc.DisplayName = e.Record.Card.Name
			rc.Brand = e.Record.Card.Brand
		}
		out[i] = rc
	}
	return out
}
