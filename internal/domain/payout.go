package domain

import "github.com/shopspring/decimal"

// PayoutRule assigns a percentage of the pot to every team that reaches Round.
// Rules are stored as an ordered list so the round order survives JSON encoding.
type PayoutRule struct {
	Round   string  `json:"round" yaml:"round"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// PayoutRules is the ordered round → percent table of a session.
type PayoutRules []PayoutRule

// Percent returns the percentage for round, or 0 when the round has no rule.
func (rules PayoutRules) Percent(round string) float64 {
	for _, r := range rules {
		if r.Round == round {
			return r.Percent
		}
	}
	return 0
}

// Fraction returns the percentage for round as a fraction of the pot.
func (rules PayoutRules) Fraction(round string) float64 {
	return rules.Percent(round) / 100
}

// Rounds returns the round keys in payout order.
func (rules PayoutRules) Rounds() []string {
	rounds := make([]string, len(rules))
	for i, r := range rules {
		rounds[i] = r.Round
	}
	return rounds
}

// Equal reports whether both tables list the same rounds and percents in order.
func (rules PayoutRules) Equal(other PayoutRules) bool {
	if len(rules) != len(other) {
		return false
	}
	for i := range rules {
		if rules[i] != other[i] {
			return false
		}
	}
	return true
}

// Payout returns pot × percent for round.
func (rules PayoutRules) Payout(pot decimal.Decimal, round string) decimal.Decimal {
	pct := decimal.NewFromFloat(rules.Percent(round))
	return pot.Mul(pct).Div(decimal.NewFromInt(100))
}

// Validate rejects empty, negative, oversized or duplicate rounds.
// Percentages are per team, so the table as a whole may legitimately sum past 100.
func (rules PayoutRules) Validate() error {
	if len(rules) == 0 {
		return ErrInvalidPayoutRules
	}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Round == "" || r.Percent < 0 || r.Percent > 100 || seen[r.Round] {
			return ErrInvalidPayoutRules
		}
		seen[r.Round] = true
	}
	return nil
}
