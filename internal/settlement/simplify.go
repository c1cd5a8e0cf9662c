package settlement

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tolerance below which a remaining balance counts as settled.
var Tolerance = decimal.New(5, -3)

// Payment moves Amount from a debtor to a creditor.
type Payment struct {
	FromID   uuid.UUID       `json:"fromId"`
	FromName string          `json:"fromName"`
	ToID     uuid.UUID       `json:"toId"`
	ToName   string          `json:"toName"`
	Amount   decimal.Decimal `json:"amount"`
}

type position struct {
	id     uuid.UUID
	name   string
	amount decimal.Decimal // always positive
}

// Simplify greedily matches the largest debtor against the largest creditor
// and transfers min(debt, credit) until one side runs out. The count is small
// but not guaranteed minimal.
func Simplify(balances []Balance) []Payment {
	var debtors, creditors []*position
	for _, b := range balances {
		switch {
		case b.NetBalance.LessThan(Tolerance.Neg()):
			debtors = append(debtors, &position{b.ParticipantID, b.DisplayName, b.NetBalance.Neg()})
		case b.NetBalance.GreaterThan(Tolerance):
			creditors = append(creditors, &position{b.ParticipantID, b.DisplayName, b.NetBalance})
		}
	}
	byAmountDesc := func(ps []*position) {
		sort.SliceStable(ps, func(i, j int) bool {
			return ps[i].amount.GreaterThan(ps[j].amount)
		})
	}
	byAmountDesc(debtors)
	byAmountDesc(creditors)

	var payments []Payment
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		d, c := debtors[i], creditors[j]
		amount := decimal.Min(d.amount, c.amount)
		payments = append(payments, Payment{
			FromID:   d.id,
			FromName: d.name,
			ToID:     c.id,
			ToName:   c.name,
			Amount:   amount,
		})
		d.amount = d.amount.Sub(amount)
		c.amount = c.amount.Sub(amount)
		if d.amount.LessThanOrEqual(Tolerance) {
			i++
		}
		if c.amount.LessThanOrEqual(Tolerance) {
			j++
		}
	}
	return payments
}
