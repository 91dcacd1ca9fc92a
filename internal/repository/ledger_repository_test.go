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
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

func newLedgerMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func candidateColumns() []string {
	return []string{"id", "student_id", "package_id", "package_name", "credits", "credits_remaining", "is_unlimited", "valid_from", "valid_until", "is_active", "created_at", "updated_at"}
}

func firstEligible(pkgs []models.StudentPackage) *models.StudentPackage {
	if len(pkgs) == 0 {
		return nil
	}
	return &pkgs[0]
}

func TestLedgerRepositoryRecordAttendanceDebitsFinitePackage(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	date := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(candidateColumns()).
		AddRow("pkg-1", "stu-1", "def-1", "Bono 10", 10, 4, false, date.AddDate(0, -1, 0), date.AddDate(0, 1, 0), true, time.Now(), time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sp.id, sp.student_id").WithArgs("stu-1", date).WillReturnRows(rows)
	mock.ExpectExec("UPDATE student_packages SET credits_remaining = credits_remaining -").
		WithArgs("pkg-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), "pkg-1", sqlmock.AnyArg(), models.LedgerEntryDebit, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO attendances").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := repo.RecordAttendance(context.Background(), DebitParams{
		StudentID:   "stu-1",
		ClassID:     "cls-1",
		Date:        date,
		EntryMethod: models.EntryMethodManual,
		CreditCost:  1,
		Select:      firstEligible,
	})
	require.NoError(t, err)
	require.NotNil(t, record.SourcePackageID)
	assert.Equal(t, "pkg-1", *record.SourcePackageID)
	assert.Equal(t, 1, record.CreditsUsed)
	assert.False(t, record.Reversed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryRecordAttendanceUnlimitedSkipsDecrement(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	date := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(candidateColumns()).
		AddRow("pkg-ul", "stu-1", "def-ul", "Ilimitado", 0, 0, true, date.AddDate(0, -1, 0), date.AddDate(0, 1, 0), true, time.Now(), time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sp.id, sp.student_id").WithArgs("stu-1", date).WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), "pkg-ul", sqlmock.AnyArg(), models.LedgerEntryDebit, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO attendances").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := repo.RecordAttendance(context.Background(), DebitParams{
		StudentID:   "stu-1",
		ClassID:     "cls-1",
		Date:        date,
		EntryMethod: models.EntryMethodNFC,
		CreditCost:  1,
		Select:      firstEligible,
	})
	require.NoError(t, err)
	require.NotNil(t, record.SourcePackageID)
	assert.Equal(t, "pkg-ul", *record.SourcePackageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryRecordAttendanceZeroCostSkipsLedger(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendances").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := repo.RecordAttendance(context.Background(), DebitParams{
		StudentID:   "stu-1",
		ClassID:     "cls-free",
		Date:        time.Now().UTC(),
		EntryMethod: models.EntryMethodManual,
		CreditCost:  0,
		Select:      firstEligible,
	})
	require.NoError(t, err)
	assert.Nil(t, record.SourcePackageID)
	assert.Equal(t, 0, record.CreditsUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryRecordAttendanceNoEligibleCredits(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	date := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	// One candidate row, but with fewer credits than the class costs.
	rows := sqlmock.NewRows(candidateColumns()).
		AddRow("pkg-1", "stu-1", "def-1", "Bono 10", 10, 2, false, date.AddDate(0, -1, 0), date.AddDate(0, 1, 0), true, time.Now(), time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sp.id, sp.student_id").WithArgs("stu-1", date).WillReturnRows(rows)
	mock.ExpectRollback()

	_, err := repo.RecordAttendance(context.Background(), DebitParams{
		StudentID:   "stu-1",
		ClassID:     "cls-special",
		Date:        date,
		EntryMethod: models.EntryMethodManual,
		CreditCost:  3,
		Select:      firstEligible,
	})
	require.ErrorIs(t, err, appErrors.ErrNoEligibleCredits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryRecordAttendanceConcurrentModification(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	date := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(candidateColumns()).
		AddRow("pkg-1", "stu-1", "def-1", "Bono 10", 10, 1, false, date.AddDate(0, -1, 0), date.AddDate(0, 1, 0), true, time.Now(), time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sp.id, sp.student_id").WithArgs("stu-1", date).WillReturnRows(rows)
	// Another transaction spent the last credit between the read and the
	// conditional decrement.
	mock.ExpectExec("UPDATE student_packages SET credits_remaining = credits_remaining -").
		WithArgs("pkg-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.RecordAttendance(context.Background(), DebitParams{
		StudentID:   "stu-1",
		ClassID:     "cls-1",
		Date:        date,
		EntryMethod: models.EntryMethodManual,
		CreditCost:  1,
		Select:      firstEligible,
	})
	require.ErrorIs(t, err, appErrors.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryReverseAttendanceRefunds(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	reversedAt := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	debitRows := sqlmock.NewRows([]string{"id", "student_package_id", "attendance_id", "type", "credits", "created_at"}).
		AddRow("led-1", "pkg-1", "att-1", models.LedgerEntryDebit, 1, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE attendances SET reversed = true").
		WithArgs("att-1", reversedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, student_package_id").
		WithArgs("att-1", models.LedgerEntryDebit).
		WillReturnRows(debitRows)
	mock.ExpectExec(`UPDATE student_packages SET credits_remaining = credits_remaining \+`).
		WithArgs("pkg-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), "pkg-1", "att-1", models.LedgerEntryRefund, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReverseAttendance(context.Background(), RefundParams{AttendanceID: "att-1", ReversedAt: reversedAt})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryReverseAttendanceAlreadyReversed(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE attendances SET reversed = true").
		WithArgs("att-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReverseAttendance(context.Background(), RefundParams{AttendanceID: "att-1", ReversedAt: time.Now().UTC()})
	require.ErrorIs(t, err, appErrors.ErrAlreadyReversed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryReverseAttendanceUnlimitedDebitRefundsZero(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	debitRows := sqlmock.NewRows([]string{"id", "student_package_id", "attendance_id", "type", "credits", "created_at"}).
		AddRow("led-1", "pkg-ul", "att-1", models.LedgerEntryDebit, 0, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE attendances SET reversed = true").
		WithArgs("att-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, student_package_id").
		WithArgs("att-1", models.LedgerEntryDebit).
		WillReturnRows(debitRows)
	// Zero-delta debit: no credits_remaining update, only the mirror entry.
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), "pkg-ul", "att-1", models.LedgerEntryRefund, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReverseAttendance(context.Background(), RefundParams{AttendanceID: "att-1", ReversedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
