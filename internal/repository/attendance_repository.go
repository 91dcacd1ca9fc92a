package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ritmo-academy/academy-api/internal/models"
)

// AttendanceRepository serves read access to attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance rows with class metadata matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	base := `FROM attendances a
        JOIN students s ON s.id = a.student_id
        JOIN classes c ON c.id = a.class_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)))
	}
	if !filter.IncludeReversed {
		conditions = append(conditions, "a.reversed = false")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.class_id, a.date, a.credits_used, a.entry_method,
        a.source_package_id, a.reversed, a.reversed_at, a.created_at,
        s.full_name AS student_name, c.name AS class_name, c.style AS class_style
        %s ORDER BY a.date %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendances: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendances: %w", err)
	}
	return records, total, nil
}

// FindByID fetches a single attendance record.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := r.db.GetContext(ctx, &record,
		`SELECT id, student_id, class_id, date, credits_used, entry_method, source_package_id, reversed, reversed_at, created_at
         FROM attendances WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// StudentDates returns the distinct non-reversed attendance days for a
// student, oldest first. The streak calculation re-derives from this
// stream every time; no mutable counter exists to drift.
func (r *AttendanceRepository) StudentDates(ctx context.Context, studentID string) ([]time.Time, error) {
	var dates []time.Time
	err := r.db.SelectContext(ctx, &dates,
		`SELECT DISTINCT date_trunc('day', date) AS day FROM attendances
         WHERE student_id = $1 AND reversed = false ORDER BY day ASC`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("list attendance dates: %w", err)
	}
	return dates, nil
}

// Recent returns the latest non-reversed attendances for a student.
func (r *AttendanceRepository) Recent(ctx context.Context, studentID string, limit int) ([]models.AttendanceDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []models.AttendanceDetail
	err := r.db.SelectContext(ctx, &records,
		fmt.Sprintf(`SELECT a.id, a.student_id, a.class_id, a.date, a.credits_used, a.entry_method,
            a.source_package_id, a.reversed, a.reversed_at, a.created_at,
            s.full_name AS student_name, c.name AS class_name, c.style AS class_style
            FROM attendances a
            JOIN students s ON s.id = a.student_id
            JOIN classes c ON c.id = a.class_id
            WHERE a.student_id = $1 AND a.reversed = false
            ORDER BY a.date DESC LIMIT %d`, limit),
		studentID)
	if err != nil {
		return nil, fmt.Errorf("list recent attendances: %w", err)
	}
	return records, nil
}
