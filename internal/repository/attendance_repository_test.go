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

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryListExcludesReversedByDefault(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "date", "credits_used", "entry_method", "source_package_id", "reversed", "reversed_at", "created_at", "student_name", "class_name", "class_style"}).
		AddRow("att-1", "stu-1", "cls-1", time.Now(), 1, "manual", "pkg-1", false, nil, time.Now(), "Ana", "Salsa I", "salsa")
	mock.ExpectQuery(`a.reversed = false\s+ORDER BY a.date DESC`).
		WithArgs("stu-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Salsa I", records[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentDates(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day1 := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"day"}).AddRow(day1).AddRow(day2)
	mock.ExpectQuery("SELECT DISTINCT date_trunc").
		WithArgs("stu-1").
		WillReturnRows(rows)

	dates, err := repo.StudentDates(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].Before(dates[1]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryRecentLimit(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "date", "credits_used", "entry_method", "source_package_id", "reversed", "reversed_at", "created_at", "student_name", "class_name", "class_style"}).
		AddRow("att-2", "stu-1", "cls-1", time.Now(), 1, "nfc", "pkg-1", false, nil, time.Now(), "Ana", "Salsa I", "salsa")
	mock.ExpectQuery(`ORDER BY a.date DESC LIMIT 5`).
		WithArgs("stu-1").
		WillReturnRows(rows)

	records, err := repo.Recent(context.Background(), "stu-1", 5)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
