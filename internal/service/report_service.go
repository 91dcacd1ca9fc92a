package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ritmo-academy/academy-api/internal/dto"
	"github.com/ritmo-academy/academy-api/internal/models"
	"github.com/ritmo-academy/academy-api/internal/repository"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
	"github.com/ritmo-academy/academy-api/pkg/export"
	"github.com/ritmo-academy/academy-api/pkg/jobs"
	"github.com/ritmo-academy/academy-api/pkg/storage"
)

const reportDateLayout = "2006-01-02"

type reportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
}

type reportPaymentSource interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

type reportAttendanceSource interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
}

// ReportService queues report exports, renders them in the background and
// serves the finished files through signed download tokens.
type ReportService struct {
	repo        reportJobRepository
	payments    reportPaymentSource
	attendances reportAttendanceSource
	queue       *jobs.Queue
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Repo        reportJobRepository
	Payments    reportPaymentSource
	Attendances reportAttendanceSource
	Store       *storage.LocalStorage
	Signer      *storage.SignedURLSigner
	QueueConfig jobs.QueueConfig
	Validate    *validator.Validate
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewReportService constructs a ReportService and its worker queue.
// Call Start before enqueuing requests.
func NewReportService(params ReportServiceParams) *ReportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validate
	if validate == nil {
		validate = validator.New()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	s := &ReportService{
		repo:        params.Repo,
		payments:    params.Payments,
		attendances: params.Attendances,
		store:       params.Store,
		signer:      params.Signer,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		validate:    validate,
		logger:      logger,
		now:         now,
	}

	qcfg := params.QueueConfig
	if qcfg.Logger == nil {
		qcfg.Logger = logger
	}
	s.queue = jobs.NewQueue("reports", s.process, qcfg)
	return s
}

// Start launches the background workers and re-enqueues jobs that were
// still queued when the previous process exited.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)

	stale, err := s.repo.ListQueued(ctx, 100)
	if err != nil {
		s.logger.Warn("report recovery scan failed", zap.Error(err))
		return
	}
	for _, job := range stale {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to re-enqueue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(stale) > 0 {
		s.logger.Info("recovered queued report jobs", zap.Int("count", len(stale)))
	}
}

// Stop drains the worker queue.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Request validates and persists a new report job, then hands it to the queue.
func (s *ReportService) Request(ctx context.Context, userID string, req dto.ReportRequest) (*dto.ReportJobResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, _, err := s.parseRange(req.DateFrom, req.DateTo); err != nil {
		return nil, err
	}

	job := &models.ReportJob{
		ID:   uuid.NewString(),
		Type: req.Type,
		Params: models.ReportJobParams{
			DateFrom: req.DateFrom,
			DateTo:   req.DateTo,
			Format:   req.Format,
		},
		Status:    models.ReportStatusQueued,
		Progress:  0,
		CreatedBy: userID,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		s.logger.Error("failed to persist report job", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		// The job row stays QUEUED and is picked up at the next startup scan.
		s.logger.Warn("report job persisted but not enqueued", zap.String("job_id", job.ID), zap.Error(err))
	}

	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Status reports progress for a job. Non-admin callers only see their own jobs.
func (s *ReportService) Status(ctx context.Context, jobID, userID string, isAdmin bool) (*dto.ReportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && job.CreatedBy != userID {
		return nil, appErrors.ErrForbidden
	}
	return &dto.ReportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil
}

// Download resolves a signed token into the stored file.
// The caller owns closing the returned file.
func (s *ReportService) Download(ctx context.Context, token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, "", err
	}
	if job.Status != models.ReportStatusFinished {
		return nil, "", appErrors.Clone(appErrors.ErrConflict, "report is not ready")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file not found")
	}
	return file, relPath, nil
}

// process is the queue handler. It renders and stores one report.
func (s *ReportService) process(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", queued.ID, err)
	}
	if job.Status == models.ReportStatusFinished {
		return nil
	}

	if err := s.transition(ctx, job.ID, models.ReportStatusProcessing, 10); err != nil {
		return err
	}

	data, title, err := s.buildDataset(ctx, job)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}
	_ = s.transition(ctx, job.ID, models.ReportStatusProcessing, 60)

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(data, title)
	default:
		payload, err = s.csv.Render(data)
	}
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}

	filename := fmt.Sprintf("%s/%s.%s", job.Type, job.ID, job.Params.Format)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}
	resultURL := "/api/v1/reports/download/" + token

	status := models.ReportStatusFinished
	progress := 100
	finishedAt := s.now()
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:     &status,
		Progress:   &progress,
		ResultURL:  &resultURL,
		FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("finalize report job %s: %w", job.ID, err)
	}

	s.logger.Info("report job finished",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("format", string(job.Params.Format)))
	return nil
}

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	from, to, err := s.parseRange(job.Params.DateFrom, job.Params.DateTo)
	if err != nil {
		return export.Dataset{}, "", err
	}

	switch job.Type {
	case models.ReportTypeRevenue:
		data, err := s.revenueDataset(ctx, from, to)
		return data, "Revenue Report", err
	case models.ReportTypeAttendance:
		data, err := s.attendanceDataset(ctx, from, to)
		return data, "Attendance Report", err
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %q", job.Type)
	}
}

func (s *ReportService) revenueDataset(ctx context.Context, from, to time.Time) (export.Dataset, error) {
	rows, _, err := s.payments.List(ctx, models.PaymentFilter{
		DateFrom: &from,
		DateTo:   &to,
		Page:     1,
		PageSize: 10000,
	})
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load payments: %w", err)
	}

	data := export.Dataset{Headers: []string{"Date", "Student", "Receipt", "Method", "Status", "Amount"}}
	for _, p := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Date":    p.CreatedAt.UTC().Format(reportDateLayout),
			"Student": p.StudentName,
			"Receipt": p.ReceiptNumber,
			"Method":  string(p.Method),
			"Status":  string(p.Status),
			"Amount":  strconv.FormatFloat(p.Amount, 'f', 2, 64),
		})
	}
	return data, nil
}

func (s *ReportService) attendanceDataset(ctx context.Context, from, to time.Time) (export.Dataset, error) {
	rows, _, err := s.attendances.List(ctx, models.AttendanceFilter{
		DateFrom: &from,
		DateTo:   &to,
		Page:     1,
		PageSize: 10000,
	})
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load attendances: %w", err)
	}

	data := export.Dataset{Headers: []string{"Date", "Student", "Class", "Method", "Credits"}}
	for _, a := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Date":    a.Date.UTC().Format(reportDateLayout),
			"Student": a.StudentName,
			"Class":   a.ClassName,
			"Method":  string(a.EntryMethod),
			"Credits": strconv.Itoa(a.CreditsUsed),
		})
	}
	return data, nil
}

func (s *ReportService) parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, err := time.Parse(reportDateLayout, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "dateFrom must be YYYY-MM-DD")
	}
	to, err := time.Parse(reportDateLayout, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "dateTo must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "dateTo must not precede dateFrom")
	}
	// Make the upper bound inclusive of the whole day.
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}

func (s *ReportService) transition(ctx context.Context, jobID string, status models.ReportStatus, progress int) error {
	return s.repo.Update(ctx, jobID, repository.UpdateReportJobParams{Status: &status, Progress: &progress})
}

func (s *ReportService) fail(ctx context.Context, jobID string, cause error) {
	s.logger.Error("report job failed", zap.String("job_id", jobID), zap.Error(cause))
	status := models.ReportStatusFailed
	msg := cause.Error()
	finishedAt := s.now()
	if err := s.repo.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:       &status,
		ErrorMessage: &msg,
		FinishedAt:   &finishedAt,
	}); err != nil {
		s.logger.Error("failed to mark report job as failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
