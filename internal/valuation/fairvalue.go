package valuation

import (
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/shopspring/decimal"
)

// SuggestedBidRatio leaves the bidder a margin below fair value.
var SuggestedBidRatio = decimal.NewFromFloat(0.95)

const monetaryPrecision = 2

// TeamValuation is the bidding guide for one team.
type TeamValuation struct {
	TeamID        string             `json:"teamId"`
	Probabilities map[string]float64 `json:"probabilities"`
	FairValue     decimal.Decimal    `json:"fairValue"`
	SuggestedBid  decimal.Decimal    `json:"suggestedBid"`
}

// FairValue is pot × Σ(round probability × round payout fraction).
func FairValue(pot decimal.Decimal, rules domain.PayoutRules, probability func(round string) float64) decimal.Decimal {
	expected := 0.0
	for _, r := range rules {
		expected += probability(r.Round) * r.Percent / 100
	}
	return pot.Mul(decimal.NewFromFloat(expected)).Round(monetaryPrecision)
}

// SuggestedBid discounts a fair value by SuggestedBidRatio.
func SuggestedBid(fair decimal.Decimal) decimal.Decimal {
	return fair.Mul(SuggestedBidRatio).Round(monetaryPrecision)
}

// Value devigs the field and prices every team.
func Value(teams []Team, rounds []string, opts Options, pot decimal.Decimal, rules domain.PayoutRules) ([]TeamValuation, error) {
	table, err := Devig(teams, rounds, opts)
	if err != nil {
		return nil, err
	}

	out := make([]TeamValuation, 0, len(teams))
	for _, t := range teams {
		probs := make(map[string]float64, len(rounds))
		for k, round := range rounds {
			probs[round] = table.Devigged[t.ID][k]
		}
		fair := FairValue(pot, rules, func(round string) float64 { return probs[round] })
		out = append(out, TeamValuation{
			TeamID:        t.ID,
			Probabilities: probs,
			FairValue:     fair,
			SuggestedBid:  SuggestedBid(fair),
		})
	}
	return out, nil
}
