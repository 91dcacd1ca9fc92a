package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ritmo-academy/academy-api/internal/models"
	"github.com/ritmo-academy/academy-api/internal/repository"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

// SelectEligiblePackage picks the instance a debit of cost credits at the
// given time should land on. Finite packages are consumed before
// unlimited ones, soonest expiry first, then oldest validity start, with
// the instance id as the final tie-break so two identical packages always
// resolve the same way.
func SelectEligiblePackage(pkgs []models.StudentPackage, cost int, at time.Time) *models.StudentPackage {
	eligible := make([]models.StudentPackage, 0, len(pkgs))
	for _, p := range pkgs {
		if p.EligibleFor(cost, at) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	sort.Slice(eligible, func(i, j int) bool {
		return lessByDebitPolicy(eligible[i], eligible[j])
	})
	return &eligible[0]
}

func lessByDebitPolicy(a, b models.StudentPackage) bool {
	if a.IsUnlimited != b.IsUnlimited {
		return !a.IsUnlimited
	}
	if !a.ValidUntil.Equal(b.ValidUntil) {
		return a.ValidUntil.Before(b.ValidUntil)
	}
	if !a.ValidFrom.Equal(b.ValidFrom) {
		return a.ValidFrom.Before(b.ValidFrom)
	}
	return a.ID < b.ID
}

// CheckInRequest is the payload for recording an attendance.
type CheckInRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	ClassID     string `json:"class_id" validate:"required"`
	Date        string `json:"date"`
	EntryMethod string `json:"entry_method"`
}

// ReverseRequest identifies the attendance to reverse and who asks.
type ReverseRequest struct {
	AttendanceID string
	ActorID      string
	ActorRole    models.UserRole
}

type ledgerRepository interface {
	RecordAttendance(ctx context.Context, p repository.DebitParams) (*models.AttendanceRecord, error)
	ReverseAttendance(ctx context.Context, p repository.RefundParams) error
}

type checkinStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type checkinClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type attendanceFinder interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// LedgerConfig tunes the debit and reversal behaviour.
type LedgerConfig struct {
	ReversalWindow time.Duration
	DebitRetries   int
}

// LedgerService owns check-in debits and reversals. All credit movement
// in the system funnels through here.
type LedgerService struct {
	ledger      ledgerRepository
	students    checkinStudentRepository
	classes     checkinClassRepository
	attendances attendanceFinder
	audit       auditWriter
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	cfg         LedgerConfig
}

// LedgerServiceParams groups constructor dependencies.
type LedgerServiceParams struct {
	Ledger      ledgerRepository
	Students    checkinStudentRepository
	Classes     checkinClassRepository
	Attendances attendanceFinder
	Audit       auditWriter
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Now         func() time.Time
	Config      LedgerConfig
}

// NewLedgerService constructs a LedgerService with sane defaults.
func NewLedgerService(params LedgerServiceParams) *LedgerService {
	cfg := params.Config
	if cfg.ReversalWindow <= 0 {
		cfg.ReversalWindow = 24 * time.Hour
	}
	if cfg.DebitRetries <= 0 {
		cfg.DebitRetries = 3
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &LedgerService{
		ledger:      params.Ledger,
		students:    params.Students,
		classes:     params.Classes,
		attendances: params.Attendances,
		audit:       params.Audit,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		now:         now,
		cfg:         cfg,
	}
}

// RecordAttendance validates the check-in, resolves the class cost and
// debits the student's best eligible package. The repository transaction
// is retried a bounded number of times when a concurrent debit races it.
func (s *LedgerService) RecordAttendance(ctx context.Context, actorID string, req CheckInRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}

	date := s.now()
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be RFC 3339")
		}
		date = parsed.UTC()
	}

	method := models.EntryMethodManual
	if req.EntryMethod != "" {
		method = models.ParseEntryMethod(req.EntryMethod)
		if !method.Valid() {
			return nil, appErrors.Wrap(fmt.Errorf("entry method %q", req.EntryMethod), appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported entry method")
		}
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "student does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidReference, "student is inactive")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "class does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !class.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidReference, "class is inactive")
	}

	params := repository.DebitParams{
		StudentID:   student.ID,
		ClassID:     class.ID,
		Date:        date,
		EntryMethod: method,
		CreditCost:  class.CreditCost,
		Select: func(pkgs []models.StudentPackage) *models.StudentPackage {
			return SelectEligiblePackage(pkgs, class.CreditCost, date)
		},
	}

	var record *models.AttendanceRecord
	for attempt := 1; ; attempt++ {
		record, err = s.ledger.RecordAttendance(ctx, params)
		if err == nil {
			break
		}
		if !errors.Is(err, appErrors.ErrConcurrentModification) || attempt >= s.cfg.DebitRetries {
			if errors.Is(err, appErrors.ErrNoEligibleCredits) || errors.Is(err, appErrors.ErrConcurrentModification) {
				s.metrics.RecordCheckin("rejected")
				return nil, err
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
		s.logger.Warn("debit conflicted, retrying",
			zap.String("student_id", student.ID),
			zap.Int("attempt", attempt))
	}

	s.metrics.RecordCheckin("recorded")
	s.cache.InvalidateStudent(ctx, student.ID)

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionCheckin,
			Resource:   "attendance",
			ResourceID: &record.ID,
			NewValues:  []byte(fmt.Sprintf(`{"student_id":%q,"class_id":%q,"credits_used":%d}`, student.ID, class.ID, record.CreditsUsed)),
		}); err != nil {
			s.logger.Warn("failed to record check-in audit log", zap.Error(err))
		}
	}
	return record, nil
}

// ReverseAttendance undoes a check-in, refunding the debited credits to
// their source instance. Non-admin actors can only reverse within the
// configured window after the attendance date.
func (s *LedgerService) ReverseAttendance(ctx context.Context, req ReverseRequest) (*models.AttendanceRecord, error) {
	record, err := s.attendances.FindByID(ctx, req.AttendanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	if record.Reversed {
		return nil, appErrors.ErrAlreadyReversed
	}

	now := s.now()
	if req.ActorRole != models.RoleAdmin && now.Sub(record.Date) > s.cfg.ReversalWindow {
		return nil, appErrors.ErrReversalWindowExpired
	}

	if err := s.ledger.ReverseAttendance(ctx, repository.RefundParams{AttendanceID: record.ID, ReversedAt: now}); err != nil {
		if errors.Is(err, appErrors.ErrAlreadyReversed) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reverse attendance")
	}

	s.metrics.RecordCheckin("reversed")
	s.cache.InvalidateStudent(ctx, record.StudentID)

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &req.ActorID,
			Action:     models.AuditActionReversal,
			Resource:   "attendance",
			ResourceID: &record.ID,
			NewValues:  []byte(fmt.Sprintf(`{"credits_refunded":%d}`, record.CreditsUsed)),
		}); err != nil {
			s.logger.Warn("failed to record reversal audit log", zap.Error(err))
		}
	}

	record.Reversed = true
	record.ReversedAt = &now
	return record, nil
}
