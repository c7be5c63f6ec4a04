package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Sooriyansh/coaching/internal/billing"
	"github.com/Sooriyansh/coaching/internal/models"
	"github.com/Sooriyansh/coaching/internal/repository"
	"github.com/Sooriyansh/coaching/pkg/config"
	appErrors "github.com/Sooriyansh/coaching/pkg/errors"
	"github.com/Sooriyansh/coaching/pkg/export"
)

type paymentRepository interface {
	Record(ctx context.Context, studentID string, year int, build repository.BuildPaymentFunc) (*models.Payment, error)
	Remove(ctx context.Context, paymentID string, rebuild repository.RebuildStudentFunc) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	ListRecent(ctx context.Context, limit int) ([]models.PaymentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

type paymentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreatePaymentRequest holds payload for recording a fee payment.
type CreatePaymentRequest struct {
	StudentID     string               `json:"student_id" validate:"required"`
	MonthsCovered int                  `json:"months_covered" validate:"required,min=1"`
	Amount        *decimal.Decimal     `json:"amount"`
	PaymentDate   *time.Time           `json:"payment_date"`
	Method        models.PaymentMethod `json:"method" validate:"required"`
	TransactionID string               `json:"transaction_id"`
	Remark        string               `json:"remark"`
	CollectedBy   string               `json:"collected_by"`
}

// PaymentService handles fee collection use-cases.
type PaymentService struct {
	repo      paymentRepository
	students  paymentStudentReader
	cache     *CacheService
	metrics   *MetricsService
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	receipts  config.ReceiptConfig
	now       func() time.Time
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students paymentStudentReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, receipts config.ReceiptConfig) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if receipts.Prefix == "" {
		receipts.Prefix = "RCP"
	}
	if receipts.PadWidth <= 0 {
		receipts.PadWidth = 5
	}
	return &PaymentService{
		repo:      repo,
		students:  students,
		cache:     cache,
		metrics:   metrics,
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		receipts:  receipts,
		now:       time.Now,
	}
}

// Create records a payment for N months, allocating them to the oldest
// unpaid billing months. The whole cycle runs inside one serialized
// transaction per student, so concurrent requests cannot double-pay a month.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment method must be Cash, Online, Cheque or UPI")
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
	}

	// Allocation always walks up to today. A back-dated payment_date is
	// recorded as given but does not shrink the pending window.
	asOf := s.now().UTC()
	date := asOf
	if req.PaymentDate != nil {
		date = req.PaymentDate.UTC()
	}
	collector := req.CollectedBy
	if collector == "" {
		collector = s.receipts.Collector
	}

	payment, err := s.repo.Record(ctx, req.StudentID, asOf.Year(),
		func(student models.Student, history []models.Payment, seq int) (*models.Payment, models.Student, error) {
			acct := student.BillingAccount()
			records := billingRecords(history)

			months, err := billing.Allocate(acct, records, req.MonthsCovered, asOf)
			if err != nil {
				return nil, student, err
			}

			amount := student.MonthlyFee.Mul(decimal.NewFromInt(int64(len(months))))
			if req.Amount != nil {
				amount = *req.Amount
			}

			payment := &models.Payment{
				StudentID:     student.ID,
				ReceiptNumber: s.formatReceipt(asOf.Year(), seq),
				PaymentDate:   date,
				Amount:        amount,
				MonthsCovered: len(months),
				Months:        months,
				Method:        req.Method,
				TransactionID: req.TransactionID,
				Remark:        req.Remark,
				CollectedBy:   collector,
			}

			after := billing.ApplyPayment(acct, payment.BillingRecord())
			student.TotalPaid = after.TotalPaid
			student.LastPaymentDate = after.LastPaymentDate
			return payment, student, nil
		})
	if err != nil {
		return nil, s.mapRecordError(err)
	}

	s.metrics.RecordPayment()
	s.invalidateDashboard(ctx)
	s.logger.Info("payment recorded",
		zap.String("student_id", payment.StudentID),
		zap.String("receipt", payment.ReceiptNumber),
		zap.Int("months", payment.MonthsCovered))
	return payment, nil
}

// Delete removes a payment and reverses its effect on the student's totals.
// The freed months become payable again on the next payment.
func (s *PaymentService) Delete(ctx context.Context, paymentID string) error {
	err := s.repo.Remove(ctx, paymentID,
		func(payment models.Payment, student models.Student, remaining []models.Payment) (models.Student, error) {
			after := billing.ReversePayment(student.BillingAccount(), payment.BillingRecord(), billingRecords(remaining))
			student.TotalPaid = after.TotalPaid
			student.LastPaymentDate = after.LastPaymentDate
			return student, nil
		})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	s.invalidateDashboard(ctx)
	s.logger.Info("payment deleted", zap.String("payment_id", paymentID))
	return nil
}

// History returns a student's payments, oldest first.
func (s *PaymentService) History(ctx context.Context, studentID string) ([]models.Payment, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	payments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Recent returns the latest payments across all students, newest first.
func (s *PaymentService) Recent(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	details, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent payments")
	}
	return details, nil
}

// Receipt renders the payment receipt as a PDF document.
func (s *PaymentService) Receipt(ctx context.Context, paymentID string) ([]byte, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	student, err := s.students.FindByID(ctx, payment.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	labels := make([]string, len(payment.Months))
	for i, m := range payment.Months {
		labels[i] = m.Label()
	}
	fields := []export.ReceiptField{
		{Label: "Receipt No", Value: payment.ReceiptNumber},
		{Label: "Date", Value: payment.PaymentDate.Format("02 Jan 2006")},
		{Label: "Student", Value: fmt.Sprintf("%s (%s)", student.FullName, student.Code)},
		{Label: "Course", Value: student.Course},
		{Label: "Amount", Value: payment.Amount.StringFixed(2)},
		{Label: "Months", Value: strings.Join(labels, ", ")},
		{Label: "Method", Value: string(payment.Method)},
		{Label: "Collected By", Value: payment.CollectedBy},
	}
	doc, err := s.pdf.RenderReceipt("Payment Receipt", fields)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	s.metrics.RecordReceiptRendered()
	return doc, nil
}

func (s *PaymentService) formatReceipt(year, seq int) string {
	return fmt.Sprintf("%s%d%0*d", s.receipts.Prefix, year, s.receipts.PadWidth, seq)
}

func (s *PaymentService) mapRecordError(err error) error {
	var overpay *billing.OverpaymentError
	if errors.As(err, &overpay) {
		return appErrors.Clone(appErrors.ErrOverpayment, overpay.Error())
	}
	var inconsistent *billing.ConsistencyError
	if errors.As(err, &inconsistent) {
		s.logger.Error("payment allocation found inconsistent ledger", zap.Error(err))
		return appErrors.Clone(appErrors.ErrConsistency, inconsistent.Error())
	}
	if errors.Is(err, billing.ErrInvalidRequest) || errors.Is(err, billing.ErrInvalidMonthlyFee) {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return appErrors.Clone(appErrors.ErrConflict, "one of the months was paid concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
}

func (s *PaymentService) invalidateDashboard(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "dashboard:*")
	}
}
