package models

import (
	"github.com/shopspring/decimal"

	"github.com/Sooriyansh/coaching/internal/billing"
)

// PendingReportRow is one student's arrears line in the pending-fees report.
type PendingReportRow struct {
	Student       Student         `json:"student"`
	PendingMonths int             `json:"pending_months"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalExpected decimal.Decimal `json:"total_expected"`
}

// StudentLedger combines a student with their derived financial state and
// payment history for the detail view.
type StudentLedger struct {
	Student         Student               `json:"student"`
	Summary         billing.LedgerSummary `json:"summary"`
	SuggestedAmount decimal.Decimal       `json:"suggested_amount"`
	Payments        []Payment             `json:"payments"`
}

// DashboardSummary is the center-wide financial snapshot.
type DashboardSummary struct {
	ActiveStudents int             `json:"active_students"`
	TotalPayments  int             `json:"total_payments"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalPending   decimal.Decimal `json:"total_pending"`
}
