package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sooriyansh/coaching/internal/billing"
	"github.com/Sooriyansh/coaching/internal/models"
)

type mockReportStudents struct {
	students []models.Student
}

func (m *mockReportStudents) ListByStatus(ctx context.Context, status models.StudentStatus) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockReportPayments struct {
	payments []models.Payment
}

func (m *mockReportPayments) ListAll(ctx context.Context) ([]models.Payment, error) {
	return m.payments, nil
}

func newTestReportService(students []models.Student, payments []models.Payment, asOf time.Time) *ReportService {
	svc := NewReportService(&mockReportStudents{students: students}, &mockReportPayments{payments: payments}, zap.NewNop())
	svc.now = func() time.Time { return asOf }
	return svc
}

func TestReportServicePendingFees(t *testing.T) {
	owing := testStudent()
	settled := models.Student{
		ID:            "s2",
		Code:          "STU002",
		FullName:      "Ravi Kumar",
		Course:        "Maths",
		AdmissionDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		MonthlyFee:    decimal.NewFromInt(500),
		TotalPaid:     decimal.NewFromInt(1000),
		Status:        models.StudentActive,
	}
	inactive := testStudent()
	inactive.ID = "s3"
	inactive.Code = "STU003"
	inactive.Status = models.StudentInactive

	payments := []models.Payment{{
		ID:            "p1",
		StudentID:     "s2",
		Amount:        decimal.NewFromInt(1000),
		PaymentDate:   time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
		MonthsCovered: 2,
		Months:        []billing.Month{{Year: 2024, Index: 4}, {Year: 2024, Index: 5}},
	}}

	svc := newTestReportService([]models.Student{owing, settled, inactive}, payments,
		time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))

	rows, err := svc.PendingFees(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "STU001", rows[0].Student.Code)
	assert.Equal(t, 6, rows[0].PendingMonths)
	assert.True(t, rows[0].PendingAmount.Equal(decimal.NewFromInt(6000)))
	assert.True(t, rows[0].TotalExpected.Equal(decimal.NewFromInt(6000)))
}

func TestReportServicePendingFeesExcludesStudentsWithNoPendingMonths(t *testing.T) {
	// All months covered at a discounted amount: a remaining balance alone
	// does not put the student on the pending report.
	discounted := models.Student{
		ID:            "s4",
		Code:          "STU004",
		FullName:      "Meena Pillai",
		Course:        "Chemistry",
		AdmissionDate: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		MonthlyFee:    decimal.NewFromInt(1000),
		TotalPaid:     decimal.NewFromInt(2500),
		Status:        models.StudentActive,
	}
	payments := []models.Payment{{
		ID:            "p1",
		StudentID:     "s4",
		Amount:        decimal.NewFromInt(2500),
		PaymentDate:   time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC),
		MonthsCovered: 3,
		Months:        []billing.Month{{Year: 2024, Index: 3}, {Year: 2024, Index: 4}, {Year: 2024, Index: 5}},
	}}

	svc := newTestReportService([]models.Student{discounted}, payments,
		time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))

	rows, err := svc.PendingFees(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReportServicePendingFeesSkipsMalformedAccounts(t *testing.T) {
	owing := testStudent()
	broken := models.Student{
		ID:            "s2",
		Code:          "STU002",
		FullName:      "Bad Fee",
		AdmissionDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		MonthlyFee:    decimal.Zero,
		Status:        models.StudentActive,
	}

	svc := newTestReportService([]models.Student{owing, broken}, nil,
		time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))

	rows, err := svc.PendingFees(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "STU001", rows[0].Student.Code)
}

func TestReportServiceExportCSV(t *testing.T) {
	svc := newTestReportService([]models.Student{testStudent()}, nil,
		time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))

	out, err := svc.ExportCSV(context.Background())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Pending Months")
	assert.Contains(t, lines[1], "STU001")
	assert.Contains(t, lines[1], "6000.00")
}

func TestReportServiceExportPDF(t *testing.T) {
	svc := newTestReportService([]models.Student{testStudent()}, nil,
		time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))

	out, err := svc.ExportPDF(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}
