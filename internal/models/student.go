package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sooriyansh/coaching/internal/billing"
)

// StudentStatus enumerates enrollment states.
type StudentStatus string

const (
	StudentActive   StudentStatus = "Active"
	StudentInactive StudentStatus = "Inactive"
)

// Student represents a learner enrolled at the coaching center.
type Student struct {
	ID              string          `db:"id" json:"id"`
	Code            string          `db:"code" json:"code"`
	FullName        string          `db:"full_name" json:"full_name"`
	GuardianName    string          `db:"guardian_name" json:"guardian_name"`
	Email           string          `db:"email" json:"email"`
	Phone           string          `db:"phone" json:"phone"`
	Address         string          `db:"address" json:"address"`
	Course          string          `db:"course" json:"course"`
	AdmissionDate   time.Time       `db:"admission_date" json:"admission_date"`
	MonthlyFee      decimal.Decimal `db:"monthly_fee" json:"monthly_fee"`
	TotalPaid       decimal.Decimal `db:"total_paid" json:"total_paid"`
	Status          StudentStatus   `db:"status" json:"status"`
	LastPaymentDate *time.Time      `db:"last_payment_date" json:"last_payment_date,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// BillingAccount projects the student onto the billing engine's view.
func (s Student) BillingAccount() billing.Account {
	return billing.Account{
		AdmissionDate:   s.AdmissionDate,
		MonthlyFee:      s.MonthlyFee,
		TotalPaid:       s.TotalPaid,
		LastPaymentDate: s.LastPaymentDate,
	}
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    *StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
