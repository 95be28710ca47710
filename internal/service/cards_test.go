package service

import (
	"context"
	"errors"
	"testing"

	"card-rewards/internal/catalog"
	"card-rewards/internal/domain"
	"card-rewards/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListOwnedCards(ctx context.Context, userID int64) ([]domain.OwnedCard, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]domain.OwnedCard)
	return records, args.Error(1)
}

func (m *MockStore) AddOwnedCard(ctx context.Context, userID int64, cardID string) (domain.OwnedCard, bool, error) {
	args := m.Called(ctx, userID, cardID)
	return args.Get(0).(domain.OwnedCard), args.Bool(1), args.Error(2)
}

func (m *MockStore) RemoveOwnedCard(ctx context.Context, userID int64, recordID string) (bool, error) {
	args := m.Called(ctx, userID, recordID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) RemoveOwnedCardByCardID(ctx context.Context, userID int64, cardID string) (bool, error) {
	args := m.Called(ctx, userID, cardID)
	return args.Bool(0), args.Error(1)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]domain.Card{
		{ID: "A", Name: "Alpha", Brand: "Alpha Bank", Rewards: domain.RewardTable{domain.Dining: 3, domain.Groceries: 1}},
		{ID: "B", Name: "Beta", Brand: "Beta Bank", Rewards: domain.RewardTable{domain.Dining: 1, domain.Groceries: 5}},
		{ID: "C", Name: "Gamma", Brand: "Alpha Bank", Rewards: domain.RewardTable{}},
	})
	require.NoError(t, err)
	return cat
}

func TestCards_Add(t *testing.T) {
	ctx := context.Background()
	svc := NewCards(memory.NewStorage(), testCatalog(t))

	t.Run("adds and attaches catalog card", func(t *testing.T) {
		records, err := svc.Add(ctx, 1, "A", " B ")
		require.NoError(t, err)
		require.Len(t, records, 2)
		require.NotNil(t, records[0].Card)
		assert.Equal(t, "Alpha", records[0].Card.Name)
		assert.Equal(t, "B", records[1].CardID)
	})

	t.Run("adding twice keeps one record", func(t *testing.T) {
		before, err := svc.ListOwned(ctx, 1)
		require.NoError(t, err)

		again, err := svc.Add(ctx, 1, "A", "A")
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, before[0].ID, again[0].ID)

		after, err := svc.ListOwned(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("unknown card rejects the whole batch", func(t *testing.T) {
		_, err := svc.Add(ctx, 2, "C", "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownCard))

		owned, err := svc.ListOwned(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, owned)
	})
}

func TestCards_Remove(t *testing.T) {
	ctx := context.Background()
	svc := NewCards(memory.NewStorage(), testCatalog(t))

	records, err := svc.Add(ctx, 1, "A", "B", "C")
	require.NoError(t, err)

	n, err := svc.Remove(ctx, 1, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = svc.Remove(ctx, 1, records[0].ID, records[2].ID, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	owned, err := svc.ListOwned(ctx, 1)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "B", owned[0].CardID)

	removed, err := svc.RemoveByCardID(ctx, 1, "B")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.RemoveByCardID(ctx, 1, "B")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCards_Rank(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	svc := NewCards(store, testCatalog(t))

	_, err := svc.Add(ctx, 1, "A", "B", "C")
	require.NoError(t, err)
	// запись, которой нет в каталоге, ранжируется с нулём
	_, _, err = store.AddOwnedCard(ctx, 1, "retired")
	require.NoError(t, err)

	ranked, err := svc.Rank(ctx, 1, domain.Dining)
	require.NoError(t, err)
	require.Len(t, ranked, 4)
	assert.Equal(t, "A", ranked[0].Record.CardID)
	assert.Equal(t, "B", ranked[1].Record.CardID)
	assert.Equal(t, "C", ranked[2].Record.CardID)
	assert.Equal(t, "retired", ranked[3].Record.CardID)
	assert.Nil(t, ranked[3].Record.Card)
	assert.Equal(t, 0.0, ranked[3].Reward)

	ranked, err = svc.Rank(ctx, 1, domain.Groceries)
	require.NoError(t, err)
	assert.Equal(t, "B", ranked[0].Record.CardID)
	assert.Equal(t, 5.0, ranked[0].Reward)

	empty, err := svc.Rank(ctx, 99, domain.Gas)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCards_RankStoreFailure(t *testing.T) {
	store := new(MockStore)
	store.On("ListOwnedCards", mock.Anything, int64(1)).Return(nil, errors.New("connection reset"))
	svc := NewCards(store, testCatalog(t))

	ranked, err := svc.Rank(context.Background(), 1, domain.Dining)
	assert.Error(t, err)
	assert.Nil(t, ranked)
	store.AssertExpectations(t)
}

func TestCards_AddStoreFailure(t *testing.T) {
	store := new(MockStore)
	store.On("AddOwnedCard", mock.Anything, int64(1), "A").Return(domain.OwnedCard{}, false, errors.New("timeout"))
	svc := NewCards(store, testCatalog(t))

	_, err := svc.Add(context.Background(), 1, "A")
	assert.ErrorContains(t, err, "timeout")
	store.AssertExpectations(t)
}

func TestCards_Available(t *testing.T) {
	ctx := context.Background()
	svc := NewCards(memory.NewStorage(), testCatalog(t))

	_, err := svc.Add(ctx, 1, "A")
	require.NoError(t, err)

	all, err := svc.Available(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "B", all[0].ID)
	assert.Equal(t, "C", all[1].ID)

	alpha, err := svc.Available(ctx, 1, "alpha")
	require.NoError(t, err)
	require.Len(t, alpha, 1)
	assert.Equal(t, "C", alpha[0].ID)
}
