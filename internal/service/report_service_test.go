package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritmo-academy/academy-api/internal/dto"
	"github.com/ritmo-academy/academy-api/internal/models"
	"github.com/ritmo-academy/academy-api/internal/repository"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type mockReportRepo struct {
	created *models.ReportJob
	job     *models.ReportJob
	updates []repository.UpdateReportJobParams
	queued  []models.ReportJob
}

func (m *mockReportRepo) Create(ctx context.Context, job *models.ReportJob) error {
	m.created = job
	return nil
}

func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if m.job == nil {
		return nil, appErrors.ErrNotFound
	}
	return m.job, nil
}

func (m *mockReportRepo) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	m.updates = append(m.updates, params)
	return nil
}

func (m *mockReportRepo) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	return m.queued, nil
}

type mockReportPayments struct{}

func (m *mockReportPayments) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	return nil, 0, nil
}

type mockReportAttendances struct{}

func (m *mockReportAttendances) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	return nil, 0, nil
}

func newReportServiceForTest(repo *mockReportRepo) *ReportService {
	return NewReportService(ReportServiceParams{
		Repo:        repo,
		Payments:    &mockReportPayments{},
		Attendances: &mockReportAttendances{},
		Now:         func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) },
	})
}

func TestReportRequestPersistsQueuedJob(t *testing.T) {
	repo := &mockReportRepo{}
	svc := newReportServiceForTest(repo)
	svc.Start(context.Background())
	defer svc.Stop()

	resp, err := svc.Request(context.Background(), "adm-1", dto.ReportRequest{
		Type:     models.ReportTypeRevenue,
		Format:   models.ReportFormatCSV,
		DateFrom: "2025-05-01",
		DateTo:   "2025-05-31",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.NotNil(t, repo.created)
	assert.Equal(t, "adm-1", repo.created.CreatedBy)
	assert.Equal(t, models.ReportFormatCSV, repo.created.Params.Format)
}

func TestReportRequestRejectsReversedRange(t *testing.T) {
	svc := newReportServiceForTest(&mockReportRepo{})

	_, err := svc.Request(context.Background(), "adm-1", dto.ReportRequest{
		Type:     models.ReportTypeRevenue,
		Format:   models.ReportFormatCSV,
		DateFrom: "2025-05-31",
		DateTo:   "2025-05-01",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestReportRequestRejectsUnknownType(t *testing.T) {
	svc := newReportServiceForTest(&mockReportRepo{})

	_, err := svc.Request(context.Background(), "adm-1", dto.ReportRequest{
		Type:     "payroll",
		Format:   models.ReportFormatCSV,
		DateFrom: "2025-05-01",
		DateTo:   "2025-05-31",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestReportStatusHidesForeignJobs(t *testing.T) {
	repo := &mockReportRepo{
		job: &models.ReportJob{ID: "job-1", Status: models.ReportStatusProcessing, CreatedBy: "other-user"},
	}
	svc := newReportServiceForTest(repo)

	_, err := svc.Status(context.Background(), "job-1", "adm-1", false)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	resp, err := svc.Status(context.Background(), "job-1", "adm-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, resp.Status)
}
