package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Sooriyansh/coaching/internal/models"
)

const dashboardSummaryKey = "dashboard:summary"

type dashboardStudentCounter interface {
	CountByStatus(ctx context.Context, status models.StudentStatus) (int, error)
}

type dashboardPaymentTotals interface {
	Totals(ctx context.Context) (int, decimal.Decimal, error)
}

type pendingReporter interface {
	PendingFees(ctx context.Context) ([]models.PendingReportRow, error)
}

// DashboardService composes the center-wide financial snapshot. Every
// aggregation fails soft to zero so the dashboard always renders.
type DashboardService struct {
	students dashboardStudentCounter
	payments dashboardPaymentTotals
	reports  pendingReporter
	cache    *CacheService
	logger   *zap.Logger
	ttl      time.Duration
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(students dashboardStudentCounter, payments dashboardPaymentTotals, reports pendingReporter, cache *CacheService, logger *zap.Logger, ttl time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{students: students, payments: payments, reports: reports, cache: cache, logger: logger, ttl: ttl}
}

// Summary returns the dashboard snapshot and whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	var cached models.DashboardSummary
	if hit, _ := s.cache.Get(ctx, dashboardSummaryKey, &cached); hit {
		return &cached, true, nil
	}

	summary := &models.DashboardSummary{
		TotalRevenue: decimal.Zero,
		TotalPending: decimal.Zero,
	}

	active, err := s.students.CountByStatus(ctx, models.StudentActive)
	if err != nil {
		s.logger.Warn("dashboard student count failed", zap.Error(err))
	} else {
		summary.ActiveStudents = active
	}

	count, revenue, err := s.payments.Totals(ctx)
	if err != nil {
		s.logger.Warn("dashboard payment totals failed", zap.Error(err))
	} else {
		summary.TotalPayments = count
		summary.TotalRevenue = revenue
	}

	rows, err := s.reports.PendingFees(ctx)
	if err != nil {
		s.logger.Warn("dashboard pending aggregation failed", zap.Error(err))
	} else {
		pending := decimal.Zero
		for _, row := range rows {
			pending = pending.Add(row.PendingAmount)
		}
		summary.TotalPending = pending
	}

	if err := s.cache.Set(ctx, dashboardSummaryKey, summary, s.ttl); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return summary, false, nil
}
