package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func account(admission time.Time, fee int64) Account {
	return Account{
		AdmissionDate: admission,
		MonthlyFee:    decimal.NewFromInt(fee),
		TotalPaid:     decimal.Zero,
	}
}

// Scenario: admitted January 2024, fee 1000, viewed in June 2024.
func TestAccrualSixMonthsNoPayments(t *testing.T) {
	acct := account(date(2024, time.January, 5), 1000)
	asOf := date(2024, time.June, 18)

	assert.Equal(t, 6, TotalMonthsSinceAdmission(acct, asOf))
	assert.Equal(t, 6, PendingMonths(acct, nil, asOf))

	expected, err := TotalFeesExpected(acct, asOf)
	require.NoError(t, err)
	assert.True(t, expected.Equal(decimal.NewFromInt(6000)))

	remaining, err := RemainingFees(acct, asOf)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.NewFromInt(6000)))
}

func TestTotalMonthsPaidSumsCoveredCounts(t *testing.T) {
	payments := []PaymentRecord{
		{MonthsCovered: 3},
		{MonthsCovered: 1},
		{MonthsCovered: 2},
	}
	assert.Equal(t, 6, TotalMonthsPaid(payments))
	assert.Equal(t, 0, TotalMonthsPaid(nil))
}

func TestPendingMonthsNeverNegative(t *testing.T) {
	acct := account(date(2024, time.May, 1), 500)
	// Paid further ahead than accrued.
	payments := []PaymentRecord{{MonthsCovered: 12}}
	assert.Equal(t, 0, PendingMonths(acct, payments, date(2024, time.June, 1)))
}

func TestRemainingFeesFlooredAtZeroOnOverpayment(t *testing.T) {
	acct := account(date(2024, time.June, 1), 1000)
	acct.TotalPaid = decimal.NewFromInt(5000)

	remaining, err := RemainingFees(acct, date(2024, time.June, 30))
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())
}

func TestAccrualRejectsMalformedFee(t *testing.T) {
	acct := account(date(2024, time.January, 1), 0)

	_, err := TotalFeesExpected(acct, date(2024, time.June, 1))
	assert.ErrorIs(t, err, ErrInvalidMonthlyFee)

	_, err = RemainingFees(acct, date(2024, time.June, 1))
	assert.ErrorIs(t, err, ErrInvalidMonthlyFee)

	acct.MonthlyFee = decimal.NewFromInt(-10)
	_, err = TotalFeesExpected(acct, date(2024, time.June, 1))
	assert.ErrorIs(t, err, ErrInvalidMonthlyFee)
}

func TestFutureAdmissionAccruesNothing(t *testing.T) {
	acct := account(date(2025, time.January, 1), 1000)
	asOf := date(2024, time.June, 1)

	assert.Equal(t, 0, TotalMonthsSinceAdmission(acct, asOf))
	expected, err := TotalFeesExpected(acct, asOf)
	require.NoError(t, err)
	assert.True(t, expected.IsZero())
}
