package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation is the share of a collected amount assigned to one debt
type Allocation struct {
	DebtID        uuid.UUID       `json:"debt_id"`
	DebtDate      time.Time       `json:"debt_date"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	PaymentID     uuid.UUID       `json:"payment_id,omitempty"` // set once the payment is recorded
}

// SettlesDebt reports whether the allocation clears the debt
func (a Allocation) SettlesDebt() bool {
	return a.BalanceAfter.IsZero()
}

// AllocationPlan is the oldest-first distribution of a collected amount
type AllocationPlan struct {
	Requested   decimal.Decimal
	Allocations []Allocation
	Planned     decimal.Decimal // sum of allocation amounts
	Unapplied   decimal.Decimal // collected amount no open debt can absorb
}

// SortForAllocation orders debts oldest first. Equal dates fall back to
// creation time and then ID so the order is the same on every run.
func SortForAllocation(debts []*Debt) {
	sort.SliceStable(debts, func(i, j int) bool {
		a, b := debts[i], debts[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// PlanAllocation distributes amount over debts in the order given.
// Debts with nothing remaining are skipped. Each allocation is the smaller
// of the amount left and the debt's remaining balance.
func PlanAllocation(debts []*Debt, amount decimal.Decimal) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositive
	}

	plan := &AllocationPlan{
		Requested:   amount,
		Allocations: make([]Allocation, 0, len(debts)),
		Planned:     decimal.Zero,
	}
	left := amount
	for _, d := range debts {
		if !left.IsPositive() {
			break
		}
		remaining := d.Remaining()
		if !remaining.IsPositive() {
			continue
		}
		allocate := decimal.Min(left, remaining)
		plan.Allocations = append(plan.Allocations, Allocation{
			DebtID:        d.ID,
			DebtDate:      d.Date,
			Amount:        allocate,
			BalanceBefore: remaining,
			BalanceAfter:  remaining.Sub(allocate),
		})
		plan.Planned = plan.Planned.Add(allocate)
		left = left.Sub(allocate)
	}
	plan.Unapplied = left
	return plan, nil
}

// OpenDebts keeps the debts whose derived status is not paid
func OpenDebts(debts []*Debt) []*Debt {
	open := make([]*Debt, 0, len(debts))
	for _, d := range debts {
		if d.Status().IsOpen() {
			open = append(open, d)
		}
	}
	return open
}

// SumAllocations adds up the amounts of the given allocations
func SumAllocations(allocations []Allocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocations {
		sum = sum.Add(a.Amount)
	}
	return sum
}
