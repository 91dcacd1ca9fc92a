package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ritmo-academy/academy-api/internal/dto"
	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type recordAttendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
}

type recordPackageRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentPackage, error)
}

type recordPaymentRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
}

// RecordService assembles the full per-student history view: attendances,
// payments and purchased packages.
type RecordService struct {
	attendances recordAttendanceRepository
	packages    recordPackageRepository
	payments    recordPaymentRepository
	logger      *zap.Logger
}

// NewRecordService constructs a RecordService.
func NewRecordService(attendances recordAttendanceRepository, packages recordPackageRepository, payments recordPaymentRepository, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{attendances: attendances, packages: packages, payments: payments, logger: logger}
}

// StudentRecord builds the record view for one student.
func (s *RecordService) StudentRecord(ctx context.Context, studentID string) (*dto.RecordResponse, error) {
	attendances, _, err := s.attendances.List(ctx, models.AttendanceFilter{
		StudentID: studentID,
		PageSize:  100,
		SortOrder: "DESC",
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
	}

	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	packages, err := s.packages.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list packages")
	}

	resp := &dto.RecordResponse{
		Attendances: make([]dto.AttendanceEntry, 0, len(attendances)),
		Payments:    make([]dto.RecordPayment, 0, len(payments)),
		Packages:    make([]dto.RecordPackage, 0, len(packages)),
	}
	for _, a := range attendances {
		resp.Attendances = append(resp.Attendances, AttendanceEntryOf(a))
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, dto.RecordPayment{
			ID:            p.ID,
			Amount:        fmt.Sprintf("%.2f", p.Amount),
			Method:        string(p.Method),
			ReceiptNumber: p.ReceiptNumber,
			Status:        string(p.Status),
			CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, pkg := range packages {
		resp.Packages = append(resp.Packages, dto.RecordPackage{
			ID:               pkg.ID,
			CreditsRemaining: pkg.CreditsRemaining,
			IsActive:         pkg.IsActive,
			ValidUntil:       pkg.ValidUntil.UTC().Format(time.RFC3339),
			Package: &dto.RecordPackageInfo{
				ID:          pkg.PackageID,
				Name:        pkg.PackageName,
				Credits:     pkg.Credits,
				IsUnlimited: pkg.IsUnlimited,
			},
		})
	}
	return resp, nil
}

// AttendanceEntryOf renders one attendance row for client payloads.
func AttendanceEntryOf(a models.AttendanceDetail) dto.AttendanceEntry {
	return dto.AttendanceEntry{
		ID:          a.ID,
		Date:        a.Date.UTC().Format(time.RFC3339),
		CreditsUsed: a.CreditsUsed,
		EntryMethod: string(a.EntryMethod),
		Class: &dto.AttendanceClass{
			ID:    a.ClassID,
			Name:  a.ClassName,
			Style: a.ClassStyle,
		},
	}
}
