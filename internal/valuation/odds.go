// Package valuation turns market odds into margin-free win probabilities and
// prices teams against a session's pot and payout table.
package valuation

import "math"

// ImpliedProbability converts American odds into the bookmaker's raw probability.
// A zero line has no meaning and yields zero.
func ImpliedProbability(odds int) float64 {
	switch {
	case odds > 0:
		return 100 / (float64(odds) + 100)
	case odds < 0:
		abs := math.Abs(float64(odds))
		return abs / (abs + 100)
	default:
		return 0
	}
}

// Team is the slice of a tournament team the devig pipeline needs.
type Team struct {
	ID     string
	Seed   int
	Region string
	Odds   map[string]int // round -> American odds to win that round
}

func rawProbabilities(teams []Team, round string) []float64 {
	raw := make([]float64, len(teams))
	for i, t := range teams {
		if odds, ok := t.Odds[round]; ok {
			raw[i] = ImpliedProbability(odds)
		}
	}
	return raw
}
