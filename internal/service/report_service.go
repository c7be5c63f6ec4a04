package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Sooriyansh/coaching/internal/billing"
	"github.com/Sooriyansh/coaching/internal/models"
	appErrors "github.com/Sooriyansh/coaching/pkg/errors"
	"github.com/Sooriyansh/coaching/pkg/export"
)

type reportStudentLister interface {
	ListByStatus(ctx context.Context, status models.StudentStatus) ([]models.Student, error)
}

type reportPaymentLister interface {
	ListAll(ctx context.Context) ([]models.Payment, error)
}

// ReportService derives the pending-fees report and its export formats.
type ReportService struct {
	students reportStudentLister
	payments reportPaymentLister
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(students reportStudentLister, payments reportPaymentLister, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		students: students,
		payments: payments,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		now:      time.Now,
	}
}

// PendingFees lists every active student with unpaid months. A student whose
// stored fee fails accrual is logged and skipped so one bad record cannot
// take down the whole report.
func (s *ReportService) PendingFees(ctx context.Context) ([]models.PendingReportRow, error) {
	students, err := s.students.ListByStatus(ctx, models.StudentActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active students")
	}

	payments, err := s.payments.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	byStudent := make(map[string][]billing.PaymentRecord)
	for _, p := range payments {
		byStudent[p.StudentID] = append(byStudent[p.StudentID], p.BillingRecord())
	}

	asOf := s.now()
	rows := make([]models.PendingReportRow, 0, len(students))
	for _, student := range students {
		summary, err := billing.Summarize(student.BillingAccount(), byStudent[student.ID], asOf)
		if err != nil {
			s.logger.Warn("skipping student in pending report",
				zap.String("student_id", student.ID),
				zap.String("code", student.Code),
				zap.Error(err))
			continue
		}
		if summary.PendingMonths == 0 && !summary.PendingAmount.IsPositive() {
			continue
		}
		rows = append(rows, models.PendingReportRow{
			Student:       student,
			PendingMonths: summary.PendingMonths,
			PendingAmount: summary.PendingAmount,
			TotalPaid:     summary.TotalPaid,
			TotalExpected: summary.TotalExpected,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PendingAmount.GreaterThan(rows[j].PendingAmount)
	})
	return rows, nil
}

// ExportCSV renders the pending-fees report as CSV bytes.
func (s *ReportService) ExportCSV(ctx context.Context) ([]byte, error) {
	dataset, err := s.pendingDataset(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.csv.Render(*dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
	}
	return out, nil
}

// ExportPDF renders the pending-fees report as a PDF document.
func (s *ReportService) ExportPDF(ctx context.Context) ([]byte, error) {
	dataset, err := s.pendingDataset(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.pdf.Render(*dataset, "Pending Fees Report")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
	}
	return out, nil
}

func (s *ReportService) pendingDataset(ctx context.Context) (*export.Dataset, error) {
	rows, err := s.PendingFees(ctx)
	if err != nil {
		return nil, err
	}
	headers := []string{"Code", "Name", "Course", "Phone", "Pending Months", "Pending Amount", "Total Paid", "Total Expected"}
	records := make([]map[string]string, len(rows))
	for i, row := range rows {
		records[i] = map[string]string{
			"Code":           row.Student.Code,
			"Name":           row.Student.FullName,
			"Course":         row.Student.Course,
			"Phone":          row.Student.Phone,
			"Pending Months": fmt.Sprintf("%d", row.PendingMonths),
			"Pending Amount": row.PendingAmount.StringFixed(2),
			"Total Paid":     row.TotalPaid.StringFixed(2),
			"Total Expected": row.TotalExpected.StringFixed(2),
		}
	}
	return &export.Dataset{Headers: headers, Rows: records}, nil
}
