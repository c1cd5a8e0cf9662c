package valuation

import "math"

// Options tune the devig pipeline.
type Options struct {
	Strategy Strategy
	// Regions fixes the bracket order of regions; unlisted regions follow in
	// first-seen order.
	Regions []string
	// Cap keeps each team's probability non-increasing from round to round.
	Cap bool
}

// Table holds per-round probabilities for every team, indexed like Rounds.
type Table struct {
	Rounds   []string
	Raw      map[string][]float64
	Uncapped map[string][]float64
	Devigged map[string][]float64
}

// Probability returns the devigged probability of teamID winning round.
func (t *Table) Probability(teamID, round string) float64 {
	for i, r := range t.Rounds {
		if r == round {
			return t.Devigged[teamID][i]
		}
	}
	return 0
}

// Devig runs the odds → implied → normalized → capped pipeline for every
// round. Grouping is resolved once per round since every team shares it.
func Devig(teams []Team, rounds []string, opts Options) (*Table, error) {
	norm, err := normalizerFor(opts.Strategy, opts.Regions)
	if err != nil {
		return nil, err
	}

	table := &Table{
		Rounds:   rounds,
		Raw:      make(map[string][]float64, len(teams)),
		Uncapped: make(map[string][]float64, len(teams)),
		Devigged: make(map[string][]float64, len(teams)),
	}
	for _, t := range teams {
		table.Raw[t.ID] = make([]float64, len(rounds))
		table.Uncapped[t.ID] = make([]float64, len(rounds))
		table.Devigged[t.ID] = make([]float64, len(rounds))
	}

	for k, round := range rounds {
		raw := rawProbabilities(teams, round)
		normalized := norm.normalize(teams, k, raw)
		for i, t := range teams {
			table.Raw[t.ID][k] = raw[i]
			table.Uncapped[t.ID][k] = normalized[i]
			p := normalized[i]
			if opts.Cap && k > 0 {
				p = math.Min(p, table.Devigged[t.ID][k-1])
			}
			table.Devigged[t.ID][k] = p
		}
	}
	return table, nil
}
