package valuation

import (
	"sync"

	"github.com/dom/calcutta-auction/internal/domain"
	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
)

// DefaultProfitCacheSize bounds how many purchase prices a calculator remembers.
const DefaultProfitCacheSize = 256

// RoundProfit is what an owner has collected, and netted, once a team wins Round.
type RoundProfit struct {
	Round      string          `json:"round"`
	Payout     decimal.Decimal `json:"payout"`
	Cumulative decimal.Decimal `json:"cumulative"`
	Profit     decimal.Decimal `json:"profit"`
}

// ProfitCalculator memoizes the per-round profit ladder for a purchase price.
// Changing the pot or the payout table purges the cache.
type ProfitCalculator struct {
	mu    sync.Mutex
	pot   decimal.Decimal
	rules domain.PayoutRules
	cache *lru.Cache
}

// NewProfitCalculator creates a calculator; size <= 0 uses DefaultProfitCacheSize.
func NewProfitCalculator(pot decimal.Decimal, rules domain.PayoutRules, size int) (*ProfitCalculator, error) {
	if size <= 0 {
		size = DefaultProfitCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ProfitCalculator{pot: pot, rules: rules, cache: cache}, nil
}

// SetPot replaces the pot size and invalidates cached ladders.
func (c *ProfitCalculator) SetPot(pot decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pot.Equal(pot) {
		return
	}
	c.pot = pot
	c.cache.Purge()
}

// SetPayoutRules replaces the payout table and invalidates cached ladders.
func (c *ProfitCalculator) SetPayoutRules(rules domain.PayoutRules) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rules.Equal(rules) {
		return
	}
	c.rules = rules
	c.cache.Purge()
}

// Len reports how many ladders are cached.
func (c *ProfitCalculator) Len() int {
	return c.cache.Len()
}

// Profits returns the cumulative payout and profit after each round. The
// returned slice is the caller's to modify.
func (c *ProfitCalculator) Profits(price decimal.Decimal) []RoundProfit {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := price.StringFixed(monetaryPrecision)
	if cached, ok := c.cache.Get(key); ok {
		return append([]RoundProfit(nil), cached.([]RoundProfit)...)
	}

	pot, rules := c.pot, c.rules
	ladder := make([]RoundProfit, 0, len(rules))
	cumulative := decimal.Zero
	for _, r := range rules {
		payout := rules.Payout(pot, r.Round)
		cumulative = cumulative.Add(payout)
		ladder = append(ladder, RoundProfit{
			Round:      r.Round,
			Payout:     payout,
			Cumulative: cumulative,
			Profit:     cumulative.Sub(price),
		})
	}
	c.cache.Add(key, ladder)
	return append([]RoundProfit(nil), ladder...)
}
