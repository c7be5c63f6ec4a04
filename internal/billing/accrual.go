package billing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidMonthlyFee marks an account whose fee makes accrual meaningless.
var ErrInvalidMonthlyFee = errors.New("billing: monthly fee must be positive")

// Account is the slice of a student the engine computes over.
type Account struct {
	AdmissionDate   time.Time
	MonthlyFee      decimal.Decimal
	TotalPaid       decimal.Decimal
	LastPaymentDate *time.Time
}

// PaymentRecord is the slice of a payment the engine computes over.
type PaymentRecord struct {
	Amount        decimal.Decimal
	Date          time.Time
	MonthsCovered int
	Months        []Month
}

// TotalMonthsSinceAdmission counts the billing months accrued by asOf.
func TotalMonthsSinceAdmission(acct Account, asOf time.Time) int {
	return MonthsSince(acct.AdmissionDate, asOf)
}

// TotalMonthsPaid sums the months covered across all payments. The covered
// count is trusted as authoritative rather than recounting distinct months.
func TotalMonthsPaid(payments []PaymentRecord) int {
	total := 0
	for _, p := range payments {
		total += p.MonthsCovered
	}
	return total
}

// PendingMonths reports how many accrued months have no covering payment.
func PendingMonths(acct Account, payments []PaymentRecord, asOf time.Time) int {
	pending := TotalMonthsSinceAdmission(acct, asOf) - TotalMonthsPaid(payments)
	if pending < 0 {
		return 0
	}
	return pending
}

// TotalFeesExpected is the fee obligation accrued from admission through asOf.
func TotalFeesExpected(acct Account, asOf time.Time) (decimal.Decimal, error) {
	if acct.MonthlyFee.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidMonthlyFee
	}
	months := TotalMonthsSinceAdmission(acct, asOf)
	return acct.MonthlyFee.Mul(decimal.NewFromInt(int64(months))), nil
}

// RemainingFees is the unpaid portion of the accrued obligation, never
// negative even when the account is paid ahead.
func RemainingFees(acct Account, asOf time.Time) (decimal.Decimal, error) {
	expected, err := TotalFeesExpected(acct, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	remaining := expected.Sub(acct.TotalPaid)
	if remaining.IsNegative() {
		return decimal.Zero, nil
	}
	return remaining, nil
}
