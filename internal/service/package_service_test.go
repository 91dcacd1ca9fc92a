package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type mockPackageRepo struct {
	definitions    []models.PackageDefinition
	definition     *models.PackageDefinition
	instance       *models.StudentPackage
	studentPkgs    []models.StudentPackage
	created        *models.PackageDefinition
	updated        *models.PackageDefinition
	purchased      *models.StudentPackage
	payment        *models.Payment
	revokedID      string
	extendedID     string
	extendedDays   int
	findDefErr     error
	findInstErr    error
	purchaseErr    error
	listStudentErr error
}

func (m *mockPackageRepo) ListDefinitions(ctx context.Context, filter models.PackageFilter) ([]models.PackageDefinition, error) {
	return m.definitions, nil
}

func (m *mockPackageRepo) FindDefinitionByID(ctx context.Context, id string) (*models.PackageDefinition, error) {
	if m.findDefErr != nil {
		return nil, m.findDefErr
	}
	return m.definition, nil
}

func (m *mockPackageRepo) CreateDefinition(ctx context.Context, def *models.PackageDefinition) error {
	m.created = def
	return nil
}

func (m *mockPackageRepo) UpdateDefinition(ctx context.Context, def *models.PackageDefinition) error {
	m.updated = def
	return nil
}

func (m *mockPackageRepo) ListByStudent(ctx context.Context, studentID string) ([]models.StudentPackage, error) {
	if m.listStudentErr != nil {
		return nil, m.listStudentErr
	}
	return m.studentPkgs, nil
}

func (m *mockPackageRepo) FindInstanceByID(ctx context.Context, id string) (*models.StudentPackage, error) {
	if m.findInstErr != nil {
		return nil, m.findInstErr
	}
	return m.instance, nil
}

func (m *mockPackageRepo) Purchase(ctx context.Context, instance *models.StudentPackage, payment *models.Payment) error {
	if m.purchaseErr != nil {
		return m.purchaseErr
	}
	m.purchased = instance
	m.payment = payment
	return nil
}

func (m *mockPackageRepo) Revoke(ctx context.Context, id string) error {
	m.revokedID = id
	return nil
}

func (m *mockPackageRepo) Extend(ctx context.Context, id string, days int) error {
	m.extendedID = id
	m.extendedDays = days
	return nil
}

func newPackageServiceForTest(repo *mockPackageRepo, students *mockStudentFinder, audit *mockAuditWriter, now time.Time) *PackageService {
	// Convert nil mock pointers to nil interfaces so the service's own
	// nil checks see them as absent collaborators.
	var studentFinder checkinStudentRepository
	if students != nil {
		studentFinder = students
	}
	var auditLog auditWriter
	if audit != nil {
		auditLog = audit
	}
	return NewPackageService(repo, studentFinder, auditLog, nil, nil, nil, nil, func() time.Time { return now })
}

func TestCreateDefinitionUnlimitedForcesZeroCredits(t *testing.T) {
	repo := &mockPackageRepo{}
	svc := newPackageServiceForTest(repo, nil, nil, time.Now().UTC())

	def, err := svc.CreateDefinition(context.Background(), PackageDefinitionRequest{
		Name:         "Unlimited Monthly",
		Credits:      12,
		IsUnlimited:  true,
		Price:        90,
		DurationDays: 30,
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, def.Credits)
	assert.True(t, def.IsUnlimited)
	require.NotNil(t, repo.created)
}

func TestCreateDefinitionFiniteNeedsCredits(t *testing.T) {
	svc := newPackageServiceForTest(&mockPackageRepo{}, nil, nil, time.Now().UTC())

	_, err := svc.CreateDefinition(context.Background(), PackageDefinitionRequest{
		Name:         "Empty",
		Credits:      0,
		Price:        10,
		DurationDays: 30,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPurchaseSnapshotsDefinition(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	repo := &mockPackageRepo{
		definition: &models.PackageDefinition{
			ID:           "def-1",
			Name:         "8 Class Pack",
			Credits:      8,
			Price:        75,
			DurationDays: 30,
			IsActive:     true,
		},
	}
	audit := &mockAuditWriter{}
	svc := newPackageServiceForTest(repo, &mockStudentFinder{student: activeStudent()}, audit, now)

	instance, err := svc.Purchase(context.Background(), "adm-1", "stu-1", PurchaseRequest{
		PackageID:     "def-1",
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "8 Class Pack", instance.PackageName)
	assert.Equal(t, 8, instance.Credits)
	assert.Equal(t, 8, instance.CreditsRemaining)
	assert.Equal(t, now, instance.ValidFrom)
	assert.Equal(t, now.AddDate(0, 0, 30), instance.ValidUntil)
	assert.True(t, instance.IsActive)

	require.NotNil(t, repo.payment)
	assert.Equal(t, 75.0, repo.payment.Amount)
	assert.Equal(t, models.PaymentStatusCompleted, repo.payment.Status)
	assert.True(t, strings.HasPrefix(repo.payment.ReceiptNumber, "RCP-20250610-"))
	require.Len(t, audit.logs, 1)
}

func TestPurchaseRejectsInactiveDefinition(t *testing.T) {
	repo := &mockPackageRepo{
		definition: &models.PackageDefinition{ID: "def-1", IsActive: false},
	}
	svc := newPackageServiceForTest(repo, &mockStudentFinder{student: activeStudent()}, nil, time.Now().UTC())

	_, err := svc.Purchase(context.Background(), "adm-1", "stu-1", PurchaseRequest{PackageID: "def-1", PaymentMethod: "cash"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidReference)
}

func TestPurchaseRejectsUnknownStudent(t *testing.T) {
	svc := newPackageServiceForTest(&mockPackageRepo{}, &mockStudentFinder{err: sql.ErrNoRows}, nil, time.Now().UTC())

	_, err := svc.Purchase(context.Background(), "adm-1", "missing", PurchaseRequest{PackageID: "def-1", PaymentMethod: "cash"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidReference)
}

func TestPurchaseRejectsUnknownPaymentMethod(t *testing.T) {
	svc := newPackageServiceForTest(&mockPackageRepo{}, &mockStudentFinder{student: activeStudent()}, nil, time.Now().UTC())

	_, err := svc.Purchase(context.Background(), "adm-1", "stu-1", PurchaseRequest{PackageID: "def-1", PaymentMethod: "barter"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExtendPushesExpiry(t *testing.T) {
	repo := &mockPackageRepo{
		instance: &models.StudentPackage{ID: "sp-1", StudentID: "stu-1"},
	}
	svc := newPackageServiceForTest(repo, nil, &mockAuditWriter{}, time.Now().UTC())

	err := svc.Extend(context.Background(), "adm-1", "sp-1", ExtendRequest{Days: 14})
	require.NoError(t, err)
	assert.Equal(t, "sp-1", repo.extendedID)
	assert.Equal(t, 14, repo.extendedDays)
}

func TestExtendRejectsNonPositiveDays(t *testing.T) {
	svc := newPackageServiceForTest(&mockPackageRepo{}, nil, nil, time.Now().UTC())

	err := svc.Extend(context.Background(), "adm-1", "sp-1", ExtendRequest{Days: 0})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRevokeMissingInstance(t *testing.T) {
	repo := &mockPackageRepo{findInstErr: sql.ErrNoRows}
	svc := newPackageServiceForTest(repo, nil, nil, time.Now().UTC())

	err := svc.Revoke(context.Background(), "adm-1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentPackagesIncludesActive(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	repo := &mockPackageRepo{
		studentPkgs: []models.StudentPackage{
			pkgAt("sp-1", false, 3, now.AddDate(0, -1, 0), now.AddDate(0, 0, 10)),
			pkgAt("sp-2", true, 0, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)),
		},
	}
	svc := newPackageServiceForTest(repo, nil, nil, now)

	resp, err := svc.StudentPackages(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Len(t, resp.Packages, 2)
	require.NotNil(t, resp.ActivePackage)
	assert.Equal(t, "sp-1", resp.ActivePackage.ID)
}

func TestActivePackageOfNilWhenNothingEligible(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	expired := pkgAt("sp-1", false, 3, now.AddDate(0, -2, 0), now.AddDate(0, -1, 0))
	assert.Nil(t, ActivePackageOf([]models.StudentPackage{expired}, now))
}

type mockLedgerEntryReader struct {
	entries []models.LedgerEntry
	err     error
}

func (m *mockLedgerEntryReader) EntriesByPackage(ctx context.Context, studentPackageID string) ([]models.LedgerEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func TestInstanceLedgerReturnsTrail(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	instance := pkgAt("sp-1", false, 4, now.AddDate(0, -1, 0), now.AddDate(0, 0, 10))
	repo := &mockPackageRepo{instance: &instance}
	ledger := &mockLedgerEntryReader{entries: []models.LedgerEntry{
		{ID: "le-1", StudentPackageID: "sp-1", Type: models.LedgerEntryDebit, Credits: 1},
		{ID: "le-2", StudentPackageID: "sp-1", Type: models.LedgerEntryRefund, Credits: 1},
	}}
	svc := NewPackageService(repo, nil, nil, ledger, nil, nil, nil, func() time.Time { return now })

	entries, err := svc.InstanceLedger(context.Background(), "sp-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.LedgerEntryDebit, entries[0].Type)
	assert.Equal(t, models.LedgerEntryRefund, entries[1].Type)
}

func TestInstanceLedgerMissingInstance(t *testing.T) {
	repo := &mockPackageRepo{findInstErr: sql.ErrNoRows}
	svc := newPackageServiceForTest(repo, nil, nil, time.Now().UTC())

	_, err := svc.InstanceLedger(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
