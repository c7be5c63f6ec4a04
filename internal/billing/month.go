// Package billing implements the fee accrual and payment allocation engine:
// calendar-month arithmetic, accrued month counting, allocation of payments
// to the oldest unpaid months, and ledger summaries. It is pure computation
// over data the caller has already loaded; persistence and HTTP live above it.
package billing

import (
	"fmt"
	"time"
)

// Month identifies one billing month by calendar year and zero-based
// month index. Day of month and timezone never influence identity.
type Month struct {
	Year  int `json:"year"`
	Index int `json:"month"`
}

// MonthOf truncates a point in time to its billing month.
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Index: int(t.Month()) - 1}
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Index >= 11 {
		return Month{Year: m.Year + 1, Index: 0}
	}
	return Month{Year: m.Year, Index: m.Index + 1}
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Index < other.Index
}

// After reports whether m follows other.
func (m Month) After(other Month) bool {
	return other.Before(m)
}

// Key returns the canonical set-membership key for the month.
func (m Month) Key() string {
	return fmt.Sprintf("%d-%d", m.Year, m.Index)
}

// Label renders the month for receipts and reports, e.g. "January 2024".
func (m Month) Label() string {
	if m.Index < 0 || m.Index > 11 {
		return fmt.Sprintf("invalid month %d/%d", m.Index, m.Year)
	}
	return fmt.Sprintf("%s %d", time.Month(m.Index+1).String(), m.Year)
}

// MonthsSince counts billing months from the admission month through the
// asOf month inclusive. A student admitted this month owes for one month;
// a future-dated admission owes for none.
func MonthsSince(admission, asOf time.Time) int {
	start := MonthOf(admission)
	now := MonthOf(asOf)
	months := (now.Year-start.Year)*12 + (now.Index - start.Index) + 1
	if months < 0 {
		return 0
	}
	return months
}
