package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Sooriyansh/coaching/internal/billing"
	"github.com/Sooriyansh/coaching/internal/models"
)

const paymentColumns = `id, student_id, receipt_number, payment_date, amount, months_covered,
        method, transaction_id, remark, collected_by, created_at`

// BuildPaymentFunc computes the payment to insert and the resulting student
// state. It runs inside the recording transaction with the per-student lock
// held, so the student and history it sees cannot change underneath it.
type BuildPaymentFunc func(student models.Student, history []models.Payment, receiptSeq int) (*models.Payment, models.Student, error)

// RebuildStudentFunc computes the student state after a payment is removed,
// given the deleted payment and the payments that remain.
type RebuildStudentFunc func(payment models.Payment, student models.Student, remaining []models.Payment) (models.Student, error)

// PaymentRepository manages persistence for payments and their month rows.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ListByStudent returns a student's payments ordered by payment date,
// oldest first, with their covered months attached.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	return listPaymentsByStudent(ctx, r.db, studentID)
}

// ListAll returns every payment with months attached, for reporting.
func (r *PaymentRepository) ListAll(ctx context.Context) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments ORDER BY payment_date", paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if err := attachMonths(ctx, r.db, payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// ListRecent returns the latest payments across all students with the owning
// student joined in, newest first.
func (r *PaymentRepository) ListRecent(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.receipt_number, p.payment_date, p.amount,
        p.months_covered, p.method, p.transaction_id, p.remark, p.collected_by, p.created_at,
        s.code AS student_code, s.full_name AS student_name
        FROM payments p JOIN students s ON s.id = p.student_id
        ORDER BY p.payment_date DESC, p.created_at DESC LIMIT %d`, limit)
	var details []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &details, query); err != nil {
		return nil, fmt.Errorf("list recent payments: %w", err)
	}
	payments := make([]models.Payment, len(details))
	for i := range details {
		payments[i] = details[i].Payment
	}
	if err := attachMonths(ctx, r.db, payments); err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Months = payments[i].Months
	}
	return details, nil
}

// FindByID fetches a payment with its months attached.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	payments := []models.Payment{payment}
	if err := attachMonths(ctx, r.db, payments); err != nil {
		return nil, err
	}
	return &payments[0], nil
}

// Totals returns the count and amount sum over all payments.
func (r *PaymentRepository) Totals(ctx context.Context) (int, decimal.Decimal, error) {
	var row struct {
		Count int             `db:"count"`
		Sum   decimal.Decimal `db:"sum"`
	}
	if err := r.db.GetContext(ctx, &row, "SELECT COUNT(*) AS count, COALESCE(SUM(amount), 0) AS sum FROM payments"); err != nil {
		return 0, decimal.Zero, fmt.Errorf("payment totals: %w", err)
	}
	return row.Count, row.Sum, nil
}

// SumByStudent returns the amount sum and most recent payment date for one
// student, straight from the payment rows. Reconciliation reads this to heal
// drift in the student's persisted totals.
func (r *PaymentRepository) SumByStudent(ctx context.Context, studentID string) (decimal.Decimal, *time.Time, error) {
	var row struct {
		Sum  decimal.Decimal `db:"sum"`
		Last *time.Time      `db:"last"`
	}
	const query = `SELECT COALESCE(SUM(amount), 0) AS sum, MAX(payment_date) AS last FROM payments WHERE student_id = $1`
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return decimal.Zero, nil, fmt.Errorf("sum payments for student: %w", err)
	}
	return row.Sum, row.Last, nil
}

// Record runs the full payment-recording cycle in one transaction: it takes
// a per-student advisory lock, reads the student and payment history under
// that lock, draws the next receipt sequence for the given year, lets the
// build callback allocate months and compute new totals, then writes the
// payment, its month rows, and the student update together.
func (r *PaymentRepository) Record(ctx context.Context, studentID string, year int, build BuildPaymentFunc) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockStudent(ctx, tx, studentID); err != nil {
		return nil, err
	}

	var student models.Student
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	if err := tx.GetContext(ctx, &student, query, studentID); err != nil {
		return nil, err
	}

	history, err := listPaymentsByStudent(ctx, tx, studentID)
	if err != nil {
		return nil, err
	}

	seq, err := nextReceiptSeq(ctx, tx, year)
	if err != nil {
		return nil, err
	}

	payment, updated, err := build(student, history, seq)
	if err != nil {
		return nil, err
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const insertPayment = `INSERT INTO payments (id, student_id, receipt_number, payment_date, amount,
        months_covered, method, transaction_id, remark, collected_by, created_at)
        VALUES (:id, :student_id, :receipt_number, :payment_date, :amount,
        :months_covered, :method, :transaction_id, :remark, :collected_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertPayment, payment); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if err := insertMonths(ctx, tx, payment); err != nil {
		return nil, err
	}

	const updateStudent = `UPDATE students SET total_paid = $2, last_payment_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateStudent, studentID, updated.TotalPaid, updated.LastPaymentDate, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("update student totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment tx: %w", err)
	}
	return payment, nil
}

// Remove deletes a payment and reverses its effect on the owning student,
// under the same per-student lock as Record.
func (r *PaymentRepository) Remove(ctx context.Context, paymentID string, rebuild RebuildStudentFunc) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var payment models.Payment
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)
	if err := tx.GetContext(ctx, &payment, query, paymentID); err != nil {
		return err
	}

	if err := lockStudent(ctx, tx, payment.StudentID); err != nil {
		return err
	}

	var student models.Student
	studentQuery := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	if err := tx.GetContext(ctx, &student, studentQuery, payment.StudentID); err != nil {
		return err
	}

	// Month rows cascade with the payment.
	if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE id = $1", paymentID); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}

	remaining, err := listPaymentsByStudent(ctx, tx, payment.StudentID)
	if err != nil {
		return err
	}

	updated, err := rebuild(payment, student, remaining)
	if err != nil {
		return err
	}

	const updateStudent = `UPDATE students SET total_paid = $2, last_payment_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateStudent, payment.StudentID, updated.TotalPaid, updated.LastPaymentDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

// lockStudent serializes concurrent ledger writes for one student. The lock
// is transaction-scoped and released automatically on commit or rollback.
func lockStudent(ctx context.Context, tx *sqlx.Tx, studentID string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", studentID); err != nil {
		return fmt.Errorf("lock student ledger: %w", err)
	}
	return nil
}

func listPaymentsByStudent(ctx context.Context, q sqlx.QueryerContext, studentID string) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE student_id = $1 ORDER BY payment_date, created_at", paymentColumns)
	var payments []models.Payment
	if err := sqlx.SelectContext(ctx, q, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments for student: %w", err)
	}
	if err := attachMonths(ctx, q, payments); err != nil {
		return nil, err
	}
	return payments, nil
}

type paymentMonthRow struct {
	PaymentID string `db:"payment_id"`
	StudentID string `db:"student_id"`
	Year      int    `db:"year"`
	Month     int    `db:"month"`
	Position  int    `db:"position"`
}

func attachMonths(ctx context.Context, q sqlx.QueryerContext, payments []models.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	ids := make([]string, len(payments))
	index := make(map[string]int, len(payments))
	for i := range payments {
		ids[i] = payments[i].ID
		index[payments[i].ID] = i
		payments[i].Months = nil
	}

	const query = `SELECT payment_id, student_id, year, month, position FROM payment_months
        WHERE payment_id = ANY($1) ORDER BY payment_id, position`
	var rows []paymentMonthRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load payment months: %w", err)
	}
	for _, row := range rows {
		i, ok := index[row.PaymentID]
		if !ok {
			continue
		}
		payments[i].Months = append(payments[i].Months, billing.Month{Year: row.Year, Index: row.Month})
	}
	return nil
}

func insertMonths(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error {
	if len(payment.Months) == 0 {
		return nil
	}
	rows := make([]paymentMonthRow, len(payment.Months))
	for i, m := range payment.Months {
		rows[i] = paymentMonthRow{
			PaymentID: payment.ID,
			StudentID: payment.StudentID,
			Year:      m.Year,
			Month:     m.Index,
			Position:  i,
		}
	}
	const query = `INSERT INTO payment_months (payment_id, student_id, year, month, position)
        VALUES (:payment_id, :student_id, :year, :month, :position)`
	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("insert payment months: %w", err)
	}
	return nil
}
