// Package settlement turns a finished auction and tournament results into
// per-participant balances and a short list of payments that clears them.
package settlement

import (
	"sort"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is one accepted winning bid.
type Sale struct {
	TeamID  string
	OwnerID uuid.UUID
	Price   decimal.Decimal
}

// Results maps team -> round -> outcome.
type Results map[string]map[string]domain.ResultOutcome

// Input is everything a settlement needs.
type Input struct {
	Sales   []Sale
	Results Results
	// Rounds is the tournament's round order; payout rules fill in when empty.
	Rounds      []string
	PayoutRules domain.PayoutRules
	Names       map[uuid.UUID]string
}

// TeamEarnings records what a sold team returned to its owner.
type TeamEarnings struct {
	TeamID    string          `json:"teamId"`
	OwnerID   uuid.UUID       `json:"ownerId"`
	Price     decimal.Decimal `json:"price"`
	RoundsWon []string        `json:"roundsWon"`
	Earnings  decimal.Decimal `json:"earnings"`
}

// Balance is one participant's position.
type Balance struct {
	ParticipantID uuid.UUID       `json:"participantId"`
	DisplayName   string          `json:"displayName"`
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	TotalEarned   decimal.Decimal `json:"totalEarned"`
	NetBalance    decimal.Decimal `json:"netBalance"`
}

// Report is the full settlement of a session.
type Report struct {
	Pot      decimal.Decimal `json:"pot"`
	Teams    []TeamEarnings  `json:"teams"`
	Balances []Balance       `json:"balances"`
	Payments []Payment       `json:"payments"`
}

// RoundsWon walks rounds in order and collects the consecutive wins. The walk
// stops at the round the team lost, or at the first round without a result.
func RoundsWon(results map[string]domain.ResultOutcome, rounds []string) []string {
	var won []string
	for _, round := range rounds {
		if results[round] != domain.ResultWon {
			break
		}
		won = append(won, round)
	}
	return won
}

// Pot is the sum of all accepted winning bids.
func Pot(sales []Sale) decimal.Decimal {
	pot := decimal.Zero
	for _, s := range sales {
		pot = pot.Add(s.Price)
	}
	return pot
}

// Settle computes team earnings, participant balances and the payment plan.
func Settle(in Input) *Report {
	rounds := in.Rounds
	if len(rounds) == 0 {
		rounds = in.PayoutRules.Rounds()
	}
	pot := Pot(in.Sales)

	balances := make(map[uuid.UUID]*Balance)
	balanceFor := func(id uuid.UUID) *Balance {
		b, ok := balances[id]
		if !ok {
			b = &Balance{
				ParticipantID: id,
				DisplayName:   in.Names[id],
				TotalSpent:    decimal.Zero,
				TotalEarned:   decimal.Zero,
			}
			balances[id] = b
		}
		return b
	}
	for id := range in.Names {
		balanceFor(id)
	}

	teams := make([]TeamEarnings, 0, len(in.Sales))
	for _, sale := range in.Sales {
		won := RoundsWon(in.Results[sale.TeamID], rounds)
		earned := decimal.Zero
		for _, round := range won {
			earned = earned.Add(in.PayoutRules.Payout(pot, round))
		}
		teams = append(teams, TeamEarnings{
			TeamID:    sale.TeamID,
			OwnerID:   sale.OwnerID,
			Price:     sale.Price,
			RoundsWon: won,
			Earnings:  earned,
		})

		b := balanceFor(sale.OwnerID)
		b.TotalSpent = b.TotalSpent.Add(sale.Price)
		b.TotalEarned = b.TotalEarned.Add(earned)
	}

	out := make([]Balance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.TotalEarned.Sub(b.TotalSpent)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NetBalance.Equal(out[j].NetBalance) {
			return out[i].NetBalance.GreaterThan(out[j].NetBalance)
		}
		return out[i].ParticipantID.String() < out[j].ParticipantID.String()
	})

	return &Report{
		Pot:      pot,
		Teams:    teams,
		Balances: out,
		Payments: Simplify(out),
	}
}
