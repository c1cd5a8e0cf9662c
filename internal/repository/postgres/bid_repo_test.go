package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/repository"
	"github.com/dom/calcutta-auction/internal/repository/postgres"
	"github.com/dom/calcutta-auction/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBidRepository_Ledger(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewBidRepository(testDB.DB)
	ctx := context.Background()

	session := createSessionRow(t, testDB.DB, nil)
	alice, bob := uuid.New(), uuid.New()
	start := time.Now()

	place := func(bidder uuid.UUID, amount int64, offset time.Duration) {
		require.NoError(t, repo.Create(ctx, &domain.Bid{
			ID:        uuid.New(),
			SessionID: session.ID,
			TeamID:    "east-1",
			BidderID:  bidder,
			Amount:    decimal.NewFromInt(amount),
			CreatedAt: start.Add(offset),
		}))
	}
	place(alice, 100, 0)
	place(bob, 150, time.Second)
	place(alice, 120, 2*time.Second)

	bids, err := repo.ListForTeam(ctx, session.ID, "east-1")
	require.NoError(t, err)
	require.Len(t, bids, 3)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(150), bids[0].Amount)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(120), bids[1].Amount)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(100), bids[2].Amount)

	winner, err := repo.MarkWinning(ctx, session.ID, "east-1", bob, decimal.NewFromInt(150))
	require.NoError(t, err)
	assert.Equal(t, bob, winner.BidderID)
	assert.True(t, winner.IsWinningBid)

	winning, err := repo.ListWinning(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, winning, 1)
	assert.Equal(t, winner.ID, winning[0].ID)

	require.NoError(t, repo.UnmarkWinning(ctx, session.ID, "east-1"))
	winning, err = repo.ListWinning(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, winning)

	_, err = repo.MarkWinning(ctx, session.ID, "east-1", alice, decimal.NewFromInt(999))
	assert.True(t, repository.IsNotFound(err))
}

func TestOwnershipRepository_SaleAndUndo(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewOwnershipRepository(testDB.DB)
	ctx := context.Background()

	session := createSessionRow(t, testDB.DB, nil)
	require.NoError(t, repo.CreateMany(ctx, []*domain.TeamOwnership{
		{ID: uuid.New(), SessionID: session.ID, TeamID: "east-1", PurchasePrice: decimal.Zero},
		{ID: uuid.New(), SessionID: session.ID, TeamID: "east-2", PurchasePrice: decimal.Zero},
	}))

	_, err := repo.MostRecentSale(ctx, session.ID)
	assert.True(t, repository.IsNotFound(err))

	owner := uuid.New()
	now := time.Now()
	require.NoError(t, repo.SetOwner(ctx, session.ID, "east-1", owner, decimal.NewFromInt(80), now))
	require.NoError(t, repo.SetOwner(ctx, session.ID, "east-2", owner, decimal.NewFromInt(40), now.Add(time.Second)))

	latest, err := repo.MostRecentSale(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "east-2", latest.TeamID)

	require.NoError(t, repo.Clear(ctx, session.ID, "east-2"))
	latest, err = repo.MostRecentSale(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "east-1", latest.TeamID)

	rows, err := repo.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1].OwnerID)
	assert.True(t, rows[1].PurchasePrice.IsZero())
}
