package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPaymentUpdatesTotalsAndDate(t *testing.T) {
	acct := account(date(2024, time.January, 5), 1000)
	payment := PaymentRecord{
		Amount:        decimal.NewFromInt(3000),
		Date:          date(2024, time.June, 10),
		MonthsCovered: 3,
	}

	updated := ApplyPayment(acct, payment)
	assert.True(t, updated.TotalPaid.Equal(decimal.NewFromInt(3000)))
	require.NotNil(t, updated.LastPaymentDate)
	assert.Equal(t, payment.Date, *updated.LastPaymentDate)

	// Input account is untouched.
	assert.True(t, acct.TotalPaid.IsZero())
	assert.Nil(t, acct.LastPaymentDate)
}

// Apply followed by reverse restores the prior state exactly.
func TestApplyReverseRoundTrip(t *testing.T) {
	acct := account(date(2024, time.January, 5), 1000)
	payment := PaymentRecord{
		Amount:        decimal.NewFromInt(3000),
		Date:          date(2024, time.June, 10),
		MonthsCovered: 3,
	}

	applied := ApplyPayment(acct, payment)
	reversed := ReversePayment(applied, payment, nil)

	assert.True(t, reversed.TotalPaid.Equal(acct.TotalPaid))
	assert.Nil(t, reversed.LastPaymentDate)

	asOf := date(2024, time.June, 30)
	assert.Equal(t, 6, PendingMonths(reversed, nil, asOf))
}

func TestReversePaymentRecomputesLastDateFromRemaining(t *testing.T) {
	acct := account(date(2024, time.January, 5), 1000)
	first := PaymentRecord{Amount: decimal.NewFromInt(1000), Date: date(2024, time.February, 1), MonthsCovered: 1}
	second := PaymentRecord{Amount: decimal.NewFromInt(1000), Date: date(2024, time.April, 1), MonthsCovered: 1}
	third := PaymentRecord{Amount: decimal.NewFromInt(1000), Date: date(2024, time.March, 1), MonthsCovered: 1}

	acct = ApplyPayment(acct, first)
	acct = ApplyPayment(acct, second)
	acct = ApplyPayment(acct, third)

	// Deleting the newest-by-date payment falls back to the next newest.
	reversed := ReversePayment(acct, second, []PaymentRecord{first, third})
	require.NotNil(t, reversed.LastPaymentDate)
	assert.Equal(t, third.Date, *reversed.LastPaymentDate)
	assert.True(t, reversed.TotalPaid.Equal(decimal.NewFromInt(2000)))
}

func TestReversePaymentFloorsTotalAtZero(t *testing.T) {
	acct := account(date(2024, time.January, 5), 1000)
	acct.TotalPaid = decimal.NewFromInt(500)

	reversed := ReversePayment(acct, PaymentRecord{Amount: decimal.NewFromInt(900)}, nil)
	assert.True(t, reversed.TotalPaid.IsZero())
}

func TestSummarize(t *testing.T) {
	acct := account(date(2024, time.January, 5), 1000)
	acct.TotalPaid = decimal.NewFromInt(3000)
	payments := []PaymentRecord{
		{Amount: decimal.NewFromInt(3000), Date: date(2024, time.March, 1), MonthsCovered: 3},
	}
	asOf := date(2024, time.June, 15)

	summary, err := Summarize(acct, payments, asOf)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.MonthsAccrued)
	assert.Equal(t, 3, summary.MonthsPaid)
	assert.Equal(t, 3, summary.PendingMonths)
	assert.True(t, summary.PendingAmount.Equal(decimal.NewFromInt(3000)))
	assert.True(t, summary.TotalExpected.Equal(decimal.NewFromInt(6000)))
	assert.True(t, summary.RemainingFees.Equal(decimal.NewFromInt(3000)))
}

// Summarizing twice with no intervening writes yields identical results.
func TestSummarizeIsIdempotent(t *testing.T) {
	acct := account(date(2023, time.September, 1), 750)
	acct.TotalPaid = decimal.NewFromInt(1500)
	payments := []PaymentRecord{
		{Amount: decimal.NewFromInt(1500), Date: date(2023, time.October, 2), MonthsCovered: 2},
	}
	asOf := date(2024, time.February, 1)

	first, err := Summarize(acct, payments, asOf)
	require.NoError(t, err)
	second, err := Summarize(acct, payments, asOf)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSummarizeFailsOnMalformedAccount(t *testing.T) {
	acct := account(date(2024, time.January, 1), 0)
	_, err := Summarize(acct, nil, date(2024, time.June, 1))
	assert.ErrorIs(t, err, ErrInvalidMonthlyFee)
}
