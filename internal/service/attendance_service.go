package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type attendanceListRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
}

// AttendanceService serves attendance history listings. Writes go through
// the LedgerService.
type AttendanceService struct {
	repo   attendanceListRepository
	logger *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceListRepository, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, logger: logger}
}

// List returns attendance rows with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
