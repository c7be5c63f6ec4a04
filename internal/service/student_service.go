package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Sooriyansh/coaching/internal/billing"
	"github.com/Sooriyansh/coaching/internal/models"
	appErrors "github.com/Sooriyansh/coaching/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateTotals(ctx context.Context, id string, totalPaid decimal.Decimal, lastPaymentDate *time.Time) error
	SetStatus(ctx context.Context, id string, status models.StudentStatus) error
	Delete(ctx context.Context, id string) error
}

type studentPaymentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	SumByStudent(ctx context.Context, studentID string) (decimal.Decimal, *time.Time, error)
}

// CreateStudentRequest holds payload for enrolling a student.
type CreateStudentRequest struct {
	Code          string          `json:"code" validate:"required"`
	FullName      string          `json:"full_name" validate:"required"`
	GuardianName  string          `json:"guardian_name"`
	Email         string          `json:"email" validate:"omitempty,email"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	Course        string          `json:"course" validate:"required"`
	AdmissionDate time.Time       `json:"admission_date" validate:"required"`
	MonthlyFee    decimal.Decimal `json:"monthly_fee"`
}

// UpdateStudentRequest holds payload for updating a student.
type UpdateStudentRequest struct {
	Code          string               `json:"code" validate:"required"`
	FullName      string               `json:"full_name" validate:"required"`
	GuardianName  string               `json:"guardian_name"`
	Email         string               `json:"email" validate:"omitempty,email"`
	Phone         string               `json:"phone"`
	Address       string               `json:"address"`
	Course        string               `json:"course" validate:"required"`
	AdmissionDate time.Time            `json:"admission_date" validate:"required"`
	MonthlyFee    decimal.Decimal      `json:"monthly_fee"`
	Status        models.StudentStatus `json:"status" validate:"required,oneof=Active Inactive"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	payments  studentPaymentReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, payments studentPaymentReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, payments: payments, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns the student with their derived ledger state and payment history.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentLedger, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	payments, err := s.payments.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}

	summary, err := billing.Summarize(student.BillingAccount(), billingRecords(payments), s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive student ledger")
	}

	return &models.StudentLedger{
		Student:         *student,
		Summary:         summary,
		SuggestedAmount: summary.PendingAmount,
		Payments:        payments,
	}, nil
}

// Create enrolls a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if req.MonthlyFee.LessThanOrEqual(decimal.Zero) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "monthly fee must be positive")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student code already used")
	}

	student := &models.Student{
		Code:          req.Code,
		FullName:      req.FullName,
		GuardianName:  req.GuardianName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Course:        req.Course,
		AdmissionDate: req.AdmissionDate.UTC(),
		MonthlyFee:    req.MonthlyFee,
		TotalPaid:     decimal.Zero,
		Status:        models.StudentActive,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.invalidateDashboard(ctx)
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if req.MonthlyFee.LessThanOrEqual(decimal.Zero) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "monthly fee must be positive")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student code already used")
	}

	student.Code = req.Code
	student.FullName = req.FullName
	student.GuardianName = req.GuardianName
	student.Email = req.Email
	student.Phone = req.Phone
	student.Address = req.Address
	student.Course = req.Course
	student.AdmissionDate = req.AdmissionDate.UTC()
	student.MonthlyFee = req.MonthlyFee
	student.Status = req.Status
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.invalidateDashboard(ctx)
	return student, nil
}

// SetStatus switches a student between Active and Inactive without touching
// the rest of the record.
func (s *StudentService) SetStatus(ctx context.Context, id string, status models.StudentStatus) error {
	if status != models.StudentActive && status != models.StudentInactive {
		return appErrors.Clone(appErrors.ErrValidation, "status must be Active or Inactive")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set student status")
	}
	s.invalidateDashboard(ctx)
	return nil
}

// Delete removes a student along with their payment records.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.invalidateDashboard(ctx)
	return nil
}

// Reconcile recomputes the student's running totals from the payment rows
// and heals the stored values when they have drifted. It returns the fresh
// student and whether a correction was written.
func (s *StudentService) Reconcile(ctx context.Context, id string) (*models.Student, bool, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	sum, last, err := s.payments.SumByStudent(ctx, id)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
	}

	if student.TotalPaid.Equal(sum) && equalTimePtr(student.LastPaymentDate, last) {
		return student, false, nil
	}

	s.logger.Warn("student totals drifted from payment rows",
		zap.String("student_id", id),
		zap.String("stored_total", student.TotalPaid.String()),
		zap.String("actual_total", sum.String()))

	if err := s.repo.UpdateTotals(ctx, id, sum, last); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to heal student totals")
	}
	student.TotalPaid = sum
	student.LastPaymentDate = last
	s.invalidateDashboard(ctx)
	return student, true, nil
}

func (s *StudentService) invalidateDashboard(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "dashboard:*")
	}
}

func billingRecords(payments []models.Payment) []billing.PaymentRecord {
	records := make([]billing.PaymentRecord, len(payments))
	for i, p := range payments {
		records[i] = p.BillingRecord()
	}
	return records
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
