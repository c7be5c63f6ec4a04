package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sooriyansh/coaching/internal/billing"
	"github.com/Sooriyansh/coaching/internal/models"
)

func paymentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "receipt_number", "payment_date", "amount", "months_covered",
		"method", "transaction_id", "remark", "collected_by", "created_at",
	})
}

func monthRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"payment_id", "student_id", "year", "month", "position"})
}

func TestPaymentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	paid := time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM payments WHERE student_id = \$1 ORDER BY payment_date, created_at`).
		WithArgs("s1").
		WillReturnRows(paymentRows().
			AddRow("p1", "s1", "RCP202400001", paid, "2000", 2, "Cash", "", "", "Admin", paid))
	mock.ExpectQuery(`FROM payment_months`).
		WithArgs(pq.Array([]string{"p1"})).
		WillReturnRows(monthRows().
			AddRow("p1", "s1", 2024, 0, 0).
			AddRow("p1", "s1", 2024, 1, 1))

	payments, err := repo.ListByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "RCP202400001", payments[0].ReceiptNumber)
	assert.Equal(t, []billing.Month{{Year: 2024, Index: 0}, {Year: 2024, Index: 1}}, payments[0].Months)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryTotals(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS count, COALESCE\(SUM\(amount\), 0\) AS sum FROM payments`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(3, "5500"))

	count, sum, err := repo.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.True(t, sum.Equal(decimal.NewFromInt(5500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	admission := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	paid := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtextextended($1, 0))")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM students WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(studentRows().
			AddRow("s1", "STU001", "Asha Verma", "R Verma", "asha@example.com", "999", "Street", "Physics",
				admission, "1000", "0", "Active", nil, admission, admission))
	mock.ExpectQuery(`FROM payments WHERE student_id = \$1 ORDER BY payment_date, created_at`).
		WithArgs("s1").
		WillReturnRows(paymentRows())
	mock.ExpectQuery(`INSERT INTO receipt_sequences`).
		WithArgs(2024).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(7))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payment_months").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("UPDATE students SET total_paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment, err := repo.Record(context.Background(), "s1", 2024,
		func(student models.Student, history []models.Payment, seq int) (*models.Payment, models.Student, error) {
			require.Equal(t, "STU001", student.Code)
			require.Empty(t, history)
			require.Equal(t, 7, seq)

			updated := student
			updated.TotalPaid = decimal.NewFromInt(2000)
			updated.LastPaymentDate = &paid
			return &models.Payment{
				StudentID:     "s1",
				ReceiptNumber: "RCP202400007",
				PaymentDate:   paid,
				Amount:        decimal.NewFromInt(2000),
				MonthsCovered: 2,
				Months:        []billing.Month{{Year: 2024, Index: 0}, {Year: 2024, Index: 1}},
				Method:        models.MethodCash,
				CollectedBy:   "Admin",
			}, updated, nil
		})
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, "RCP202400007", payment.ReceiptNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRecordRollsBackOnBuildError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	admission := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtextextended($1, 0))")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM students WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(studentRows().
			AddRow("s1", "STU001", "Asha Verma", "R Verma", "asha@example.com", "999", "Street", "Physics",
				admission, "1000", "0", "Active", nil, admission, admission))
	mock.ExpectQuery(`FROM payments WHERE student_id = \$1`).
		WithArgs("s1").
		WillReturnRows(paymentRows())
	mock.ExpectQuery(`INSERT INTO receipt_sequences`).
		WithArgs(2024).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Record(context.Background(), "s1", 2024,
		func(models.Student, []models.Payment, int) (*models.Payment, models.Student, error) {
			return nil, models.Student{}, &billing.OverpaymentError{Requested: 10, Pending: 2}
		})
	var overpay *billing.OverpaymentError
	require.ErrorAs(t, err, &overpay)
	assert.Equal(t, 2, overpay.Pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRemove(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	admission := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	paid := time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM payments WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(paymentRows().
			AddRow("p1", "s1", "RCP202400001", paid, "2000", 2, "Cash", "", "", "Admin", paid))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtextextended($1, 0))")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM students WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(studentRows().
			AddRow("s1", "STU001", "Asha Verma", "R Verma", "asha@example.com", "999", "Street", "Physics",
				admission, "1000", "2000", "Active", paid, admission, admission))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM payments WHERE student_id = \$1`).
		WithArgs("s1").
		WillReturnRows(paymentRows())
	mock.ExpectExec("UPDATE students SET total_paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Remove(context.Background(), "p1",
		func(payment models.Payment, student models.Student, remaining []models.Payment) (models.Student, error) {
			require.Equal(t, "p1", payment.ID)
			require.Empty(t, remaining)
			student.TotalPaid = decimal.Zero
			student.LastPaymentDate = nil
			return student, nil
		})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextReceiptSeqRestartsPerYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO receipt_sequences \(year, last_seq\) VALUES \(\$1, 1\)`).
		WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(1))

	seq, err := nextReceiptSeq(context.Background(), db, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}
