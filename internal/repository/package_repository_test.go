package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritmo-academy/academy-api/internal/models"
)

func newPackageMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPackageRepositoryListDefinitions(t *testing.T) {
	db, mock, cleanup := newPackageMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	active := true
	rows := sqlmock.NewRows([]string{"id", "name", "description", "credits", "is_unlimited", "price", "duration_days", "is_active", "created_at", "updated_at"}).
		AddRow("def-1", "Bono 10", nil, 10, false, 90.0, 60, true, time.Now(), time.Now()).
		AddRow("def-2", "Ilimitado", nil, 0, true, 120.0, 30, true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, name, description, credits").
		WithArgs(true).
		WillReturnRows(rows)

	defs, err := repo.ListDefinitions(context.Background(), models.PackageFilter{Active: &active})
	require.NoError(t, err)
	assert.Len(t, defs, 2)
	assert.Equal(t, "Bono 10", defs[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositoryPurchaseTransaction(t *testing.T) {
	db, mock, cleanup := newPackageMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_packages").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	instance := &models.StudentPackage{
		ID: "pkg-1", StudentID: "stu-1", PackageID: "def-1",
		Credits: 10, CreditsRemaining: 10,
		ValidFrom: now, ValidUntil: now.AddDate(0, 0, 60), IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	payment := &models.Payment{
		ID: "pay-1", StudentID: "stu-1", StudentPackageID: &instance.ID,
		Amount: 90, Method: models.PaymentMethodCash, ReceiptNumber: "R-0001",
		Status: models.PaymentStatusCompleted, CreatedAt: now,
	}
	err := repo.Purchase(context.Background(), instance, payment)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositoryPurchaseRollsBackOnPaymentFailure(t *testing.T) {
	db, mock, cleanup := newPackageMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_packages").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	now := time.Now().UTC()
	instance := &models.StudentPackage{ID: "pkg-1", StudentID: "stu-1", PackageID: "def-1", ValidFrom: now, ValidUntil: now, CreatedAt: now, UpdatedAt: now}
	payment := &models.Payment{ID: "pay-1", StudentID: "stu-1", Method: models.PaymentMethodCash, Status: models.PaymentStatusCompleted, CreatedAt: now}
	err := repo.Purchase(context.Background(), instance, payment)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositoryExtend(t *testing.T) {
	db, mock, cleanup := newPackageMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	mock.ExpectExec("UPDATE student_packages SET valid_until = valid_until").
		WithArgs("pkg-1", 15, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Extend(context.Background(), "pkg-1", 15)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositoryRevoke(t *testing.T) {
	db, mock, cleanup := newPackageMock(t)
	defer cleanup()
	repo := NewPackageRepository(db)

	mock.ExpectExec("UPDATE student_packages SET is_active = false").
		WithArgs("pkg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Revoke(context.Background(), "pkg-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
