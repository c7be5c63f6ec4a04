package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sooriyansh/coaching/internal/billing"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "Cash"
	MethodOnline PaymentMethod = "Online"
	MethodCheque PaymentMethod = "Cheque"
	MethodUPI    PaymentMethod = "UPI"
)

// Valid reports whether the method is one of the accepted channels.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodOnline, MethodCheque, MethodUPI:
		return true
	}
	return false
}

// Payment records one fee collection against a student. The month list is
// immutable after creation; deleting the payment reverses its effect on the
// student's running totals.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	StudentID     string          `db:"student_id" json:"student_id"`
	ReceiptNumber string          `db:"receipt_number" json:"receipt_number"`
	PaymentDate   time.Time       `db:"payment_date" json:"payment_date"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	MonthsCovered int             `db:"months_covered" json:"months_covered"`
	Months        []billing.Month `db:"-" json:"payment_for"`
	Method        PaymentMethod   `db:"method" json:"method"`
	TransactionID string          `db:"transaction_id" json:"transaction_id,omitempty"`
	Remark        string          `db:"remark" json:"remark,omitempty"`
	CollectedBy   string          `db:"collected_by" json:"collected_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// BillingRecord projects the payment onto the billing engine's view.
func (p Payment) BillingRecord() billing.PaymentRecord {
	return billing.PaymentRecord{
		Amount:        p.Amount,
		Date:          p.PaymentDate,
		MonthsCovered: p.MonthsCovered,
		Months:        p.Months,
	}
}

// PaymentDetail joins a payment with its owning student for history views.
type PaymentDetail struct {
	Payment
	StudentCode string `db:"student_code" json:"student_code"`
	StudentName string `db:"student_name" json:"student_name"`
}

// PaymentFilter bounds payment history queries.
type PaymentFilter struct {
	StudentID string
	Limit     int
}
