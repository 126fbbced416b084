package ledger

import "github.com/shopspring/decimal"

// LegacyAmounts holds the split cash/online amounts some older debts were
// stored with before the unified total/payments model.
// Only the normalizer reads these fields.
type LegacyAmounts struct {
	CashAmount   decimal.NullDecimal `json:"cash_amount"`
	OnlineAmount decimal.NullDecimal `json:"online_amount"`
	PaidAmount   decimal.NullDecimal `json:"paid_amount"`
	PaidCash     decimal.NullDecimal `json:"paid_cash"`
	PaidOnline   decimal.NullDecimal `json:"paid_online"`
}

// IsEmpty reports whether no legacy field is set
func (l LegacyAmounts) IsEmpty() bool {
	return !l.CashAmount.Valid && !l.OnlineAmount.Valid &&
		!l.PaidAmount.Valid && !l.PaidCash.Valid && !l.PaidOnline.Valid
}

// Amounts is the normalized view of a debt's money
type Amounts struct {
	Total   decimal.Decimal `json:"total"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
}

// Add sums two amount sets
func (a Amounts) Add(other Amounts) Amounts {
	return Amounts{
		Total:   a.Total.Add(other.Total),
		Paid:    a.Paid.Add(other.Paid),
		Pending: a.Pending.Add(other.Pending),
	}
}

// ZeroAmounts returns an amount set with every field at zero
func ZeroAmounts() Amounts {
	return Amounts{Total: decimal.Zero, Paid: decimal.Zero, Pending: decimal.Zero}
}

// NormalizeTotal resolves the principal of a debt.
// The unified total wins; otherwise cash and online legacy parts are summed
// (a missing part counts as zero); otherwise the total is zero.
func NormalizeTotal(d *Debt) decimal.Decimal {
	if d.TotalAmount.Valid {
		return d.TotalAmount.Decimal
	}
	if d.Legacy.CashAmount.Valid || d.Legacy.OnlineAmount.Valid {
		return orZero(d.Legacy.CashAmount).Add(orZero(d.Legacy.OnlineAmount))
	}
	return decimal.Zero
}

// NormalizePaid resolves how much has been paid against a debt.
// A cached legacy aggregate wins over the payments list because it predates
// it and the list may be incomplete.
func NormalizePaid(d *Debt) decimal.Decimal {
	if d.Legacy.PaidAmount.Valid {
		return d.Legacy.PaidAmount.Decimal
	}
	if d.Legacy.PaidCash.Valid || d.Legacy.PaidOnline.Valid {
		return orZero(d.Legacy.PaidCash).Add(orZero(d.Legacy.PaidOnline))
	}
	return d.Payments.Sum()
}

// Normalize returns total, paid and pending for a debt
func Normalize(d *Debt) Amounts {
	total := NormalizeTotal(d)
	paid := NormalizePaid(d)
	return Amounts{
		Total:   total,
		Paid:    paid,
		Pending: total.Sub(paid),
	}
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if v.Valid {
		return v.Decimal
	}
	return decimal.Zero
}
