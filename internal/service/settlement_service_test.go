package service_test

import (
	"testing"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/dom/calcutta-auction/internal/settlement"
	"github.com/dom/calcutta-auction/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sellCurrent opens bidding on the current team, takes one bid and sells it.
func (f *auctionFixture) sellCurrent(t *testing.T, user *domain.User, amount int64) {
	t.Helper()
	_, err := f.services.Auction.Open(f.ctx, f.session.ID, f.commissioner.ID)
	require.NoError(t, err)
	f.bid(t, user, amount)
	_, err = f.services.Auction.Close(f.ctx, f.session.ID, f.commissioner.ID)
	require.NoError(t, err)
	_, err = f.services.Auction.Sell(f.ctx, f.session.ID, f.commissioner.ID)
	require.NoError(t, err)
}

func (f *auctionFixture) record(t *testing.T, teamID, round string, outcome domain.ResultOutcome) {
	t.Helper()
	_, err := f.services.Settlement.RecordResult(f.ctx, service.RecordResultInput{
		SessionID: f.session.ID,
		ActorID:   f.commissioner.ID,
		TeamID:    teamID,
		RoundKey:  round,
		Result:    outcome,
	})
	require.NoError(t, err)
}

func balanceOf(report *service.Settlement, id uuid.UUID) settlement.Balance {
	for _, b := range report.Balances {
		if b.ParticipantID == id {
			return b
		}
	}
	return settlement.Balance{}
}

func TestSettlementService_RecordResult(t *testing.T) {
	f := newAuctionFixture(t, untimedSettings())

	tests := []struct {
		name    string
		input   service.RecordResultInput
		wantErr error
	}{
		{
			name: "not commissioner",
			input: service.RecordResultInput{
				ActorID: f.alice.ID, TeamID: "east-1", RoundKey: "R32", Result: domain.ResultWon,
			},
			wantErr: domain.ErrNotCommissioner,
		},
		{
			name: "team outside the session",
			input: service.RecordResultInput{
				ActorID: f.commissioner.ID, TeamID: "south-9", RoundKey: "R32", Result: domain.ResultWon,
			},
			wantErr: domain.ErrTeamNotFound,
		},
		{
			name: "unknown round",
			input: service.RecordResultInput{
				ActorID: f.commissioner.ID, TeamID: "east-1", RoundKey: "F4", Result: domain.ResultWon,
			},
			wantErr: domain.ErrInvalidResult,
		},
		{
			name: "unknown outcome",
			input: service.RecordResultInput{
				ActorID: f.commissioner.ID, TeamID: "east-1", RoundKey: "R32", Result: "tied",
			},
			wantErr: domain.ErrInvalidResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.SessionID = f.session.ID
			_, err := f.services.Settlement.RecordResult(f.ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("later result replaces earlier", func(t *testing.T) {
		f.record(t, "east-2", "S16", domain.ResultWon)
		f.record(t, "east-2", "S16", domain.ResultLost)

		results, err := f.services.Settlement.Results(f.ctx, f.session.ID, f.alice.ID)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, domain.ResultLost, results[0].Result)
	})

	_, err := f.services.Settlement.Results(f.ctx, uuid.New(), f.alice.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSettlementService_ResultsAreScopedToSession(t *testing.T) {
	f := newAuctionFixture(t, untimedSettings())
	f.record(t, "east-1", "R32", domain.ResultWon)

	// Another user runs their own session on the same tournament.
	rival, _ := testutil.NewUserBuilder().WithDisplayName("rival").Build(t, f.testDB.DB)
	other := testutil.NewSessionBuilder().
		WithCommissioner(rival).
		WithoutTimer().
		Build(t, f.testDB.DB, f.services.Session)

	_, err := f.services.Settlement.RecordResult(f.ctx, service.RecordResultInput{
		SessionID: other.ID,
		ActorID:   rival.ID,
		TeamID:    "east-1",
		RoundKey:  "R32",
		Result:    domain.ResultLost,
	})
	require.NoError(t, err)

	results, err := f.services.Settlement.Results(f.ctx, f.session.ID, f.commissioner.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ResultWon, results[0].Result)

	results, err = f.services.Settlement.Results(f.ctx, other.ID, rival.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ResultLost, results[0].Result)

	t.Run("outsiders cannot read results or settlement", func(t *testing.T) {
		_, err := f.services.Settlement.Results(f.ctx, f.session.ID, rival.ID)
		assert.ErrorIs(t, err, domain.ErrNotParticipant)

		_, err = f.services.Settlement.Settle(f.ctx, f.session.ID, rival.ID)
		assert.ErrorIs(t, err, domain.ErrNotParticipant)
	})

	t.Run("deleting a session removes its results", func(t *testing.T) {
		require.NoError(t, f.services.Session.Delete(f.ctx, other.ID, rival.ID))

		results, err := f.repos.Result.ListBySession(f.ctx, other.ID)
		require.NoError(t, err)
		assert.Empty(t, results)

		results, err = f.repos.Result.ListBySession(f.ctx, f.session.ID)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestSettlementService_Settle(t *testing.T) {
	f := newAuctionFixture(t, untimedSettings())
	_, err := f.services.Session.UpdatePayoutRules(f.ctx, f.session.ID, f.commissioner.ID, domain.PayoutRules{
		{Round: "R32", Percent: 25},
		{Round: "S16", Percent: 50},
	})
	require.NoError(t, err)

	_, err = f.services.Auction.Start(f.ctx, f.session.ID, f.commissioner.ID)
	require.NoError(t, err)
	f.sellCurrent(t, f.alice, 100)
	f.sellCurrent(t, f.bob, 300)

	f.record(t, "east-1", "R32", domain.ResultWon)
	f.record(t, "east-1", "S16", domain.ResultWon)
	f.record(t, "east-2", "R32", domain.ResultWon)
	f.record(t, "east-2", "S16", domain.ResultLost)

	report, err := f.services.Settlement.Settle(f.ctx, f.session.ID, f.bob.ID)
	require.NoError(t, err)

	// The pot is what was actually spent, not the estimate.
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(400), report.Pot)
	assert.False(t, report.ComputedAt.IsZero())

	require.Len(t, report.Teams, 2)
	earnings := make(map[string]settlement.TeamEarnings)
	for _, te := range report.Teams {
		earnings[te.TeamID] = te
	}
	assert.Equal(t, []string{"R32", "S16"}, earnings["east-1"].RoundsWon)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(300), earnings["east-1"].Earnings)
	assert.Equal(t, []string{"R32"}, earnings["east-2"].RoundsWon)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(100), earnings["east-2"].Earnings)

	require.Len(t, report.Balances, 3)
	alice := balanceOf(report, f.alice.ID)
	assert.Equal(t, "alice", alice.DisplayName)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(200), alice.NetBalance)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(-200), balanceOf(report, f.bob.ID).NetBalance)
	assert.True(t, balanceOf(report, f.commissioner.ID).NetBalance.IsZero())
	assert.Equal(t, f.alice.ID, report.Balances[0].ParticipantID)

	require.Len(t, report.Payments, 1)
	payment := report.Payments[0]
	assert.Equal(t, f.bob.ID, payment.FromID)
	assert.Equal(t, "bob", payment.FromName)
	assert.Equal(t, f.alice.ID, payment.ToID)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(200), payment.Amount)
}

func TestSettlementService_SettleAfterUndo(t *testing.T) {
	f := newAuctionFixture(t, untimedSettings())
	_, err := f.services.Auction.Start(f.ctx, f.session.ID, f.commissioner.ID)
	require.NoError(t, err)
	f.sellCurrent(t, f.alice, 100)

	_, err = f.services.Auction.Undo(f.ctx, f.session.ID, f.commissioner.ID)
	require.NoError(t, err)

	report, err := f.services.Settlement.Settle(f.ctx, f.session.ID, f.alice.ID)
	require.NoError(t, err)
	assert.True(t, report.Pot.IsZero())
	assert.Empty(t, report.Teams)
	assert.Empty(t, report.Payments)
	for _, b := range report.Balances {
		assert.True(t, b.NetBalance.IsZero(), "%s has %s", b.DisplayName, b.NetBalance)
	}
}
