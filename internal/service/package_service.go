package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ritmo-academy/academy-api/internal/dto"
	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type packageRepository interface {
	ListDefinitions(ctx context.Context, filter models.PackageFilter) ([]models.PackageDefinition, error)
	FindDefinitionByID(ctx context.Context, id string) (*models.PackageDefinition, error)
	CreateDefinition(ctx context.Context, def *models.PackageDefinition) error
	UpdateDefinition(ctx context.Context, def *models.PackageDefinition) error
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentPackage, error)
	FindInstanceByID(ctx context.Context, id string) (*models.StudentPackage, error)
	Purchase(ctx context.Context, instance *models.StudentPackage, payment *models.Payment) error
	Revoke(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, days int) error
}

type ledgerEntryReader interface {
	EntriesByPackage(ctx context.Context, studentPackageID string) ([]models.LedgerEntry, error)
}

// PackageDefinitionRequest creates or updates a catalog package.
type PackageDefinitionRequest struct {
	Name         string  `json:"name" validate:"required"`
	Description  *string `json:"description"`
	Credits      int     `json:"credits" validate:"min=0"`
	IsUnlimited  bool    `json:"is_unlimited"`
	Price        float64 `json:"price" validate:"min=0"`
	DurationDays int     `json:"duration_days" validate:"required,min=1"`
	IsActive     bool    `json:"is_active"`
}

// PurchaseRequest assigns a catalog package to a student.
type PurchaseRequest struct {
	PackageID     string `json:"package_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// ExtendRequest pushes an instance's expiry forward.
type ExtendRequest struct {
	Days int `json:"days" validate:"required,min=1"`
}

// StudentPackagesResponse lists a student's instances plus the one the
// next check-in would debit.
type StudentPackagesResponse struct {
	Packages      []models.StudentPackage `json:"packages"`
	ActivePackage *dto.ActivePackage      `json:"activePackage"`
}

// PackageService manages the catalog and the student package lifecycle.
type PackageService struct {
	repo      packageRepository
	students  checkinStudentRepository
	audit     auditWriter
	ledger    ledgerEntryReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPackageService constructs a PackageService.
func NewPackageService(repo packageRepository, students checkinStudentRepository, audit auditWriter, ledger ledgerEntryReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger, now func() time.Time) *PackageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PackageService{repo: repo, students: students, audit: audit, ledger: ledger, cache: cache, validator: validate, logger: logger, now: now}
}

// ListCatalog returns catalog packages.
func (s *PackageService) ListCatalog(ctx context.Context, activeOnly bool) ([]models.PackageDefinition, error) {
	filter := models.PackageFilter{}
	if activeOnly {
		active := true
		filter.Active = &active
	}
	defs, err := s.repo.ListDefinitions(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list packages")
	}
	return defs, nil
}

// CreateDefinition adds a catalog package.
func (s *PackageService) CreateDefinition(ctx context.Context, req PackageDefinitionRequest) (*models.PackageDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid package payload")
	}
	if !req.IsUnlimited && req.Credits <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "finite packages need a positive credit count")
	}

	def := &models.PackageDefinition{
		Name:         req.Name,
		Description:  req.Description,
		Credits:      req.Credits,
		IsUnlimited:  req.IsUnlimited,
		Price:        req.Price,
		DurationDays: req.DurationDays,
		IsActive:     req.IsActive,
	}
	if def.IsUnlimited {
		def.Credits = 0
	}
	if err := s.repo.CreateDefinition(ctx, def); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create package")
	}
	return def, nil
}

// UpdateDefinition edits a catalog package. Snapshots already copied to
// purchased instances are untouched.
func (s *PackageService) UpdateDefinition(ctx context.Context, id string, req PackageDefinitionRequest) (*models.PackageDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid package payload")
	}

	def, err := s.repo.FindDefinitionByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "package not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load package")
	}

	def.Name = req.Name
	def.Description = req.Description
	def.Credits = req.Credits
	def.IsUnlimited = req.IsUnlimited
	def.Price = req.Price
	def.DurationDays = req.DurationDays
	def.IsActive = req.IsActive
	if def.IsUnlimited {
		def.Credits = 0
	}
	if err := s.repo.UpdateDefinition(ctx, def); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update package")
	}
	return def, nil
}

// DeactivateDefinition retires a catalog package from sale. Existing
// instances keep working until they expire.
func (s *PackageService) DeactivateDefinition(ctx context.Context, id string) error {
	def, err := s.repo.FindDefinitionByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "package not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load package")
	}
	def.IsActive = false
	if err := s.repo.UpdateDefinition(ctx, def); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate package")
	}
	return nil
}

// Purchase snapshots the catalog package onto a new instance for the
// student and records the payment, both in one transaction.
func (s *PackageService) Purchase(ctx context.Context, actorID, studentID string, req PurchaseRequest) (*models.StudentPackage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid purchase payload")
	}
	method := models.PaymentMethod(strings.ToLower(req.PaymentMethod))
	if !method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported payment method")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "student does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidReference, "student is inactive")
	}

	def, err := s.repo.FindDefinitionByID(ctx, req.PackageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "package does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load package")
	}
	if !def.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidReference, "package is no longer for sale")
	}

	now := s.now()
	instance := &models.StudentPackage{
		ID:               uuid.NewString(),
		StudentID:        student.ID,
		PackageID:        def.ID,
		PackageName:      def.Name,
		Credits:          def.Credits,
		CreditsRemaining: def.Credits,
		IsUnlimited:      def.IsUnlimited,
		ValidFrom:        now,
		ValidUntil:       now.AddDate(0, 0, def.DurationDays),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	payment := &models.Payment{
		ID:               uuid.NewString(),
		StudentID:        student.ID,
		StudentPackageID: &instance.ID,
		Amount:           def.Price,
		Method:           method,
		ReceiptNumber:    s.receiptNumber(now),
		Status:           models.PaymentStatusCompleted,
		CreatedAt:        now,
	}

	if err := s.repo.Purchase(ctx, instance, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record purchase")
	}

	s.cache.InvalidateStudent(ctx, student.ID)
	s.writeAudit(ctx, actorID, models.AuditActionPurchase, instance.ID,
		fmt.Sprintf(`{"student_id":%q,"package_id":%q,"amount":%.2f}`, student.ID, def.ID, def.Price))
	return instance, nil
}

// Revoke administratively deactivates an instance.
func (s *PackageService) Revoke(ctx context.Context, actorID, instanceID string) error {
	instance, err := s.repo.FindInstanceByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student package not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student package")
	}
	if err := s.repo.Revoke(ctx, instance.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke student package")
	}

	s.cache.InvalidateStudent(ctx, instance.StudentID)
	s.writeAudit(ctx, actorID, models.AuditActionRevoke, instance.ID,
		fmt.Sprintf(`{"student_id":%q}`, instance.StudentID))
	return nil
}

// Extend pushes an instance's expiry forward by the requested days.
func (s *PackageService) Extend(ctx context.Context, actorID, instanceID string, req ExtendRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extend payload")
	}
	instance, err := s.repo.FindInstanceByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student package not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student package")
	}
	if err := s.repo.Extend(ctx, instance.ID, req.Days); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend student package")
	}

	s.cache.InvalidateStudent(ctx, instance.StudentID)
	s.writeAudit(ctx, actorID, models.AuditActionExtend, instance.ID,
		fmt.Sprintf(`{"student_id":%q,"days":%d}`, instance.StudentID, req.Days))
	return nil
}

// StudentPackages lists a student's purchased instances together with the
// one the ledger would debit next.
func (s *PackageService) StudentPackages(ctx context.Context, studentID string) (*StudentPackagesResponse, error) {
	packages, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student packages")
	}
	return &StudentPackagesResponse{
		Packages:      packages,
		ActivePackage: ActivePackageOf(packages, s.now()),
	}, nil
}

// ActivePackageOf derives the instance the next single-credit check-in
// would debit, in client display form. Nil when nothing is eligible.
func ActivePackageOf(packages []models.StudentPackage, at time.Time) *dto.ActivePackage {
	chosen := SelectEligiblePackage(packages, 1, at)
	if chosen == nil {
		return nil
	}
	return &dto.ActivePackage{
		ID:               chosen.ID,
		Name:             chosen.PackageName,
		CreditsRemaining: chosen.CreditsRemaining,
		IsUnlimited:      chosen.IsUnlimited,
		ValidUntil:       chosen.ValidUntil.UTC().Format(time.RFC3339),
	}
}

// InstanceLedger returns the accounting trail for a purchased instance.
func (s *PackageService) InstanceLedger(ctx context.Context, instanceID string) ([]models.LedgerEntry, error) {
	if _, err := s.repo.FindInstanceByID(ctx, instanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student package not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student package")
	}
	if s.ledger == nil {
		return []models.LedgerEntry{}, nil
	}
	entries, err := s.ledger.EntriesByPackage(ctx, instanceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger entries")
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}

func (s *PackageService) receiptNumber(now time.Time) string {
	return fmt.Sprintf("RCP-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func (s *PackageService) writeAudit(ctx context.Context, actorID, action, resourceID, payload string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "student_package",
		ResourceID: &resourceID,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record package audit log", zap.Error(err))
	}
}
