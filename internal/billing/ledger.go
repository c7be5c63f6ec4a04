package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplyPayment returns the account state after recording a payment:
// running total increased by the amount, last payment date advanced.
func ApplyPayment(acct Account, p PaymentRecord) Account {
	date := p.Date
	acct.TotalPaid = acct.TotalPaid.Add(p.Amount)
	acct.LastPaymentDate = &date
	return acct
}

// ReversePayment returns the account state after a payment is deleted. The
// total is adjusted by subtraction, floored at zero, and the last payment
// date becomes the most recent date among the remaining payments or nil.
func ReversePayment(acct Account, p PaymentRecord, remaining []PaymentRecord) Account {
	acct.TotalPaid = acct.TotalPaid.Sub(p.Amount)
	if acct.TotalPaid.IsNegative() {
		acct.TotalPaid = decimal.Zero
	}

	acct.LastPaymentDate = nil
	for _, r := range remaining {
		if acct.LastPaymentDate == nil || r.Date.After(*acct.LastPaymentDate) {
			date := r.Date
			acct.LastPaymentDate = &date
		}
	}
	return acct
}

// LedgerSummary captures the derived financial state of one account.
type LedgerSummary struct {
	MonthsAccrued int             `json:"months_accrued"`
	MonthsPaid    int             `json:"months_paid"`
	PendingMonths int             `json:"pending_months"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalExpected decimal.Decimal `json:"total_expected"`
	RemainingFees decimal.Decimal `json:"remaining_fees"`
}

// Summarize derives the full ledger state of an account at a point in time.
// Fails with ErrInvalidMonthlyFee on malformed accounts; reporting callers
// are expected to skip such accounts rather than abort the whole report.
func Summarize(acct Account, payments []PaymentRecord, asOf time.Time) (LedgerSummary, error) {
	expected, err := TotalFeesExpected(acct, asOf)
	if err != nil {
		return LedgerSummary{}, err
	}
	remaining, err := RemainingFees(acct, asOf)
	if err != nil {
		return LedgerSummary{}, err
	}

	pending := PendingMonths(acct, payments, asOf)
	return LedgerSummary{
		MonthsAccrued: TotalMonthsSinceAdmission(acct, asOf),
		MonthsPaid:    TotalMonthsPaid(payments),
		PendingMonths: pending,
		PendingAmount: acct.MonthlyFee.Mul(decimal.NewFromInt(int64(pending))),
		TotalPaid:     acct.TotalPaid,
		TotalExpected: expected,
		RemainingFees: remaining,
	}, nil
}
