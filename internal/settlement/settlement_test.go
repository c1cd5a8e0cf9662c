package settlement

import (
	"testing"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestRoundsWon(t *testing.T) {
	t.Parallel()
	rounds := []string{"R64", "R32", "S16"}

	tests := []struct {
		name    string
		results map[string]domain.ResultOutcome
		want    []string
	}{
		{"no results", nil, nil},
		{"lost first", map[string]domain.ResultOutcome{"R64": domain.ResultLost}, nil},
		{"won then lost", map[string]domain.ResultOutcome{"R64": domain.ResultWon, "R32": domain.ResultLost}, []string{"R64"}},
		{"won then pending", map[string]domain.ResultOutcome{"R64": domain.ResultWon, "R32": domain.ResultPending, "S16": domain.ResultWon}, []string{"R64"}},
		{"gap stops walk", map[string]domain.ResultOutcome{"R64": domain.ResultWon, "S16": domain.ResultWon}, []string{"R64"}},
		{"won all", map[string]domain.ResultOutcome{"R64": domain.ResultWon, "R32": domain.ResultWon, "S16": domain.ResultWon}, rounds},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			check.Equal(t, tt.want, RoundsWon(tt.results, rounds))
		})
	}
}

func TestSettle(t *testing.T) {
	t.Parallel()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	report := Settle(Input{
		Sales: []Sale{
			{TeamID: "t1", OwnerID: alice, Price: d("100")},
			{TeamID: "t2", OwnerID: bob, Price: d("60")},
			{TeamID: "t3", OwnerID: carol, Price: d("40")},
		},
		Results: Results{
			"t1": {"R64": domain.ResultWon, "R32": domain.ResultWon},
			"t2": {"R64": domain.ResultWon, "R32": domain.ResultLost},
			"t3": {"R64": domain.ResultLost},
		},
		PayoutRules: domain.PayoutRules{{Round: "R64", Percent: 25}, {Round: "R32", Percent: 50}},
		Names:       map[uuid.UUID]string{alice: "Alice", bob: "Bob", carol: "Carol"},
	})

	check.True(t, d("200").Equal(report.Pot))
	check.Equal(t, 3, len(report.Teams))
	check.True(t, d("150").Equal(report.Teams[0].Earnings))
	check.Equal(t, []string{"R64", "R32"}, report.Teams[0].RoundsWon)
	check.True(t, d("50").Equal(report.Teams[1].Earnings))
	check.True(t, report.Teams[2].Earnings.IsZero())

	check.Equal(t, 3, len(report.Balances))
	check.Equal(t, alice, report.Balances[0].ParticipantID)
	check.True(t, d("50").Equal(report.Balances[0].NetBalance))
	check.True(t, d("-10").Equal(report.Balances[1].NetBalance))
	check.True(t, d("-40").Equal(report.Balances[2].NetBalance))

	sum := decimal.Zero
	for _, b := range report.Balances {
		sum = sum.Add(b.NetBalance)
	}
	check.True(t, sum.Abs().LessThan(Tolerance))

	check.Equal(t, 2, len(report.Payments))
	check.Equal(t, carol, report.Payments[0].FromID)
	check.Equal(t, alice, report.Payments[0].ToID)
	check.True(t, d("40").Equal(report.Payments[0].Amount))
	check.Equal(t, bob, report.Payments[1].FromID)
	check.True(t, d("10").Equal(report.Payments[1].Amount))
}

func TestSettleParticipantWithoutTeams(t *testing.T) {
	t.Parallel()
	owner, idle := uuid.New(), uuid.New()

	report := Settle(Input{
		Sales:       []Sale{{TeamID: "t1", OwnerID: owner, Price: d("10")}},
		Rounds:      []string{"R64"},
		PayoutRules: domain.PayoutRules{{Round: "R64", Percent: 100}},
		Names:       map[uuid.UUID]string{owner: "Owner", idle: "Idle"},
	})

	check.Equal(t, 2, len(report.Balances))
	check.Equal(t, 0, len(report.Payments))
	for _, b := range report.Balances {
		check.True(t, b.NetBalance.IsZero() || b.NetBalance.Equal(d("-10")))
	}
}

func TestSimplify(t *testing.T) {
	t.Parallel()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	balances := []Balance{
		{ParticipantID: a, DisplayName: "A", NetBalance: d("120")},
		{ParticipantID: b, DisplayName: "B", NetBalance: d("30")},
		{ParticipantID: c, DisplayName: "C", NetBalance: d("-150")},
	}
	payments := Simplify(balances)

	check.Equal(t, 2, len(payments))
	check.Equal(t, c, payments[0].FromID)
	check.Equal(t, a, payments[0].ToID)
	check.True(t, d("120").Equal(payments[0].Amount))
	check.Equal(t, b, payments[1].ToID)
	check.True(t, d("30").Equal(payments[1].Amount))

	// Applying the plan clears every balance.
	net := map[uuid.UUID]decimal.Decimal{}
	for _, bal := range balances {
		net[bal.ParticipantID] = bal.NetBalance
	}
	for _, p := range payments {
		net[p.FromID] = net[p.FromID].Add(p.Amount)
		net[p.ToID] = net[p.ToID].Sub(p.Amount)
	}
	for _, v := range net {
		check.True(t, v.Abs().LessThanOrEqual(Tolerance))
	}
}

func TestSimplifyIgnoresDust(t *testing.T) {
	t.Parallel()
	payments := Simplify([]Balance{
		{ParticipantID: uuid.New(), NetBalance: d("0.004")},
		{ParticipantID: uuid.New(), NetBalance: d("-0.004")},
	})
	check.Equal(t, 0, len(payments))
}
