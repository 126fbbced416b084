package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one settlement recorded against a Debt.
// It is a value object inside the Debt aggregate and is addressed only by
// its ID within that Debt.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Receipts       []string        `json:"receipts"`
	Notes          string          `json:"notes,omitempty"`
	IsFinalPayment bool            `json:"is_final_payment"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

func newPayment(amount decimal.Decimal, date time.Time, receipts []string, notes string) Payment {
	if date.IsZero() {
		date = time.Now()
	}
	return Payment{
		ID:         uuid.New(),
		Amount:     amount,
		Date:       date,
		Receipts:   cloneReceipts(receipts),
		Notes:      notes,
		RecordedAt: time.Now(),
	}
}

func cloneReceipts(receipts []string) []string {
	out := make([]string, 0, len(receipts))
	for _, r := range receipts {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Payments is the ordered payment list of a Debt, in recording order.
// It implements GORM Scanner/Valuer for JSONB storage.
type Payments []Payment

// Sum adds up every payment amount
func (p Payments) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, payment := range p {
		sum = sum.Add(payment.Amount)
	}
	return sum
}

// IndexOf returns the position of the payment with the given ID, or -1
func (p Payments) IndexOf(id uuid.UUID) int {
	for i := range p {
		if p[i].ID == id {
			return i
		}
	}
	return -1
}

// Final returns the payment flagged as final, if any
func (p Payments) Final() *Payment {
	for i := range p {
		if p[i].IsFinalPayment {
			return &p[i]
		}
	}
	return nil
}

// Receipts returns every receipt reference across the list
func (p Payments) Receipts() []string {
	var refs []string
	for _, payment := range p {
		refs = append(refs, payment.Receipts...)
	}
	return refs
}

// markFinal flags the payment at which the running sum, in recording order,
// first reaches total. Every other payment is cleared.
func (p Payments) markFinal(total decimal.Decimal) {
	running := decimal.Zero
	found := false
	for i := range p {
		running = running.Add(p[i].Amount)
		p[i].IsFinalPayment = !found && total.IsPositive() && running.GreaterThanOrEqual(total)
		if p[i].IsFinalPayment {
			found = true
		}
	}
}

func (p Payments) clone() Payments {
	out := make(Payments, len(p))
	for i, payment := range p {
		payment.Receipts = cloneReceipts(payment.Receipts)
		out[i] = payment
	}
	return out
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p Payments) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *Payments) Scan(value interface{}) error {
	if value == nil {
		*p = Payments{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Payments: unsupported type")
	}

	if len(bytes) == 0 {
		*p = Payments{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}
