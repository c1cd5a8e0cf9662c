package valuation

import (
	"fmt"
	"math"
)

// Strategy is the closed set of ways a tournament groups teams for devigging.
type Strategy int

const (
	// Bracket normalizes within the sub-bracket that produces exactly one
	// winner of the round: a pair, then a quadrant, a half-region, and so on.
	Bracket Strategy = iota + 1
	// Global normalizes across every team (outright winner markets).
	Global
	// PerGroup normalizes within each region/division.
	PerGroup
	// PassThrough keeps the raw implied probabilities.
	PassThrough
)

func (s Strategy) String() string {
	switch s {
	case Bracket:
		return "bracket"
	case Global:
		return "global"
	case PerGroup:
		return "per_group"
	case PassThrough:
		return "pass_through"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a stored structure name onto a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "bracket":
		return Bracket, nil
	case "global":
		return Global, nil
	case "per_group":
		return PerGroup, nil
	case "pass_through":
		return PassThrough, nil
	}
	return 0, fmt.Errorf("unknown devig strategy %q", name)
}

// normalizer devigs one round of raw probabilities.
type normalizer interface {
	normalize(teams []Team, round int, raw []float64) []float64
}

// normalizerFor is the single dispatch point; an unlisted Strategy is an error.
func normalizerFor(s Strategy, regions []string) (normalizer, error) {
	switch s {
	case Bracket:
		return newBracketGrouping(regions), nil
	case Global:
		return globalGrouping{}, nil
	case PerGroup:
		return regionGrouping{}, nil
	case PassThrough:
		return passThrough{}, nil
	}
	return nil, fmt.Errorf("unknown devig strategy %v", s)
}

type groupKeyFunc func(i int) string

// normalizeByGroup divides each probability by the sum of its group.
// Groups whose raw sum is zero stay at zero.
func normalizeByGroup(raw []float64, key groupKeyFunc) []float64 {
	sums := make(map[string]float64)
	for i, p := range raw {
		sums[key(i)] += p
	}
	out := make([]float64, len(raw))
	for i, p := range raw {
		if s := sums[key(i)]; s > 0 {
			out[i] = p / s
		}
	}
	return out
}

type globalGrouping struct{}

func (globalGrouping) normalize(teams []Team, round int, raw []float64) []float64 {
	return normalizeByGroup(raw, func(int) string { return "" })
}

type regionGrouping struct{}

func (regionGrouping) normalize(teams []Team, round int, raw []float64) []float64 {
	return normalizeByGroup(raw, func(i int) string { return teams[i].Region })
}

type passThrough struct{}

func (passThrough) normalize(teams []Team, round int, raw []float64) []float64 {
	out := make([]float64, len(raw))
	copy(out, raw)
	return out
}

// bracketGrouping places every team on a single-elimination line. Round k
// groups 2^(k+1) consecutive slots, so exactly one team per group wins it.
type bracketGrouping struct {
	regions []string
}

func newBracketGrouping(regions []string) *bracketGrouping {
	return &bracketGrouping{regions: regions}
}

func (b *bracketGrouping) normalize(teams []Team, round int, raw []float64) []float64 {
	positions := b.positions(teams)
	shift := uint(round + 1)
	return normalizeByGroup(raw, func(i int) string {
		return fmt.Sprint(positions[i] >> shift)
	})
}

// positions returns each team's slot on the full bracket line.
func (b *bracketGrouping) positions(teams []Team) []int {
	regionIndex := make(map[string]int)
	for _, r := range b.regions {
		if _, ok := regionIndex[r]; !ok {
			regionIndex[r] = len(regionIndex)
		}
	}
	maxSeed := 1
	for _, t := range teams {
		if _, ok := regionIndex[t.Region]; !ok {
			regionIndex[t.Region] = len(regionIndex)
		}
		if t.Seed > maxSeed {
			maxSeed = t.Seed
		}
	}

	size := nextPowerOfTwo(maxSeed)
	slots := seedSlots(size)

	positions := make([]int, len(teams))
	for i, t := range teams {
		positions[i] = regionIndex[t.Region]*size + slots[t.Seed]
	}
	return positions
}

// seedSlots returns seed -> line position for a standard seeded bracket of
// the given size (1 meets size, the 1/size winner meets the size/2 line, ...).
func seedSlots(size int) map[int]int {
	order := []int{1}
	for len(order) < size {
		n := len(order) * 2
		next := make([]int, 0, n)
		for _, s := range order {
			next = append(next, s, n+1-s)
		}
		order = next
	}
	slots := make(map[int]int, size)
	for pos, seed := range order {
		slots[seed] = pos
	}
	return slots
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 2
	}
	return 1 << uint(math.Ceil(math.Log2(float64(n))))
}
