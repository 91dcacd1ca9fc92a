package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ritmo-academy/academy-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregate queries for the
// admin dashboard and report exports. Every query tolerates empty tables
// and returns zeroes rather than errors.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// RevenueSummary returns completed revenue for the current and previous
// calendar month plus the pending total, relative to now.
func (r *AnalyticsRepository) RevenueSummary(ctx context.Context, now time.Time) (*models.RevenueSummary, error) {
	const query = `SELECT
        COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND date_trunc('month', created_at) = date_trunc('month', $1::timestamptz)), 0) AS total_month,
        COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND date_trunc('month', created_at) = date_trunc('month', $1::timestamptz) - INTERVAL '1 month'), 0) AS total_last_month,
        COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0) AS pending
        FROM payments`
	var summary models.RevenueSummary
	if err := r.db.GetContext(ctx, &summary, query, now); err != nil {
		return nil, fmt.Errorf("query revenue summary: %w", err)
	}
	return &summary, nil
}

// ActiveStudentCount counts active students.
func (r *AnalyticsRepository) ActiveStudentCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE active = TRUE`); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}

// NewStudentCount counts students created in the current calendar month.
func (r *AnalyticsRepository) NewStudentCount(ctx context.Context, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM students WHERE date_trunc('month', created_at) = date_trunc('month', $1::timestamptz)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, now); err != nil {
		return 0, fmt.Errorf("count new students: %w", err)
	}
	return count, nil
}

// ChurnRisk lists active students whose only active package either expires
// within expiryDays or has creditsFloor credits or fewer left.
func (r *AnalyticsRepository) ChurnRisk(ctx context.Context, now time.Time, expiryDays, creditsFloor int) ([]models.ChurnRiskStudent, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name, pd.name AS package_name,
        sp.credits_remaining, sp.is_unlimited, sp.valid_until
        FROM student_packages sp
        JOIN students s ON s.id = sp.student_id AND s.active = TRUE
        JOIN package_definitions pd ON pd.id = sp.package_id
        WHERE sp.is_active = TRUE
          AND sp.valid_from <= $1 AND sp.valid_until >= $1
          AND (sp.valid_until <= $1::timestamptz + ($2 * INTERVAL '1 day')
               OR (sp.is_unlimited = FALSE AND sp.credits_remaining <= $3))
        ORDER BY sp.valid_until ASC`
	var students []models.ChurnRiskStudent
	if err := r.db.SelectContext(ctx, &students, query, now, expiryDays, creditsFloor); err != nil {
		return nil, fmt.Errorf("query churn risk: %w", err)
	}
	return students, nil
}

// ClassOccupancy aggregates per-class enrollment pressure over the last 30
// days: distinct attendees against capacity, attendance volume and the
// revenue attributable to those attendees' package purchases.
func (r *AnalyticsRepository) ClassOccupancy(ctx context.Context, now time.Time) ([]models.ClassOccupancy, error) {
	const query = `SELECT c.id AS class_id, c.name AS class_name, c.style, c.max_capacity,
        COALESCE(att.enrolled, 0) AS enrolled_count,
        CASE WHEN c.max_capacity = 0 THEN 0
             ELSE ROUND(COALESCE(att.enrolled, 0)::DECIMAL / c.max_capacity * 100, 1) END AS occupancy_percentage,
        COALESCE(att.total, 0) AS total_attendances,
        COALESCE(att.total, 0) * c.credit_cost AS revenue_generated
        FROM classes c
        LEFT JOIN (
            SELECT class_id, COUNT(DISTINCT student_id) AS enrolled, COUNT(*) AS total
            FROM attendances
            WHERE reversed = FALSE AND date >= $1::timestamptz - INTERVAL '30 days'
            GROUP BY class_id
        ) att ON att.class_id = c.id
        WHERE c.is_active = TRUE
        ORDER BY occupancy_percentage DESC`
	var occupancy []models.ClassOccupancy
	if err := r.db.SelectContext(ctx, &occupancy, query, now); err != nil {
		return nil, fmt.Errorf("query class occupancy: %w", err)
	}
	return occupancy, nil
}

// TodayAttendanceCount counts non-reversed check-ins on now's calendar day.
func (r *AnalyticsRepository) TodayAttendanceCount(ctx context.Context, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM attendances WHERE reversed = FALSE AND date_trunc('day', date) = date_trunc('day', $1::timestamptz)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, now); err != nil {
		return 0, fmt.Errorf("count today attendances: %w", err)
	}
	return count, nil
}

// UpcomingClasses lists today's remaining schedule slots with attendee
// pressure from the last 30 days.
func (r *AnalyticsRepository) UpcomingClasses(ctx context.Context, now time.Time) ([]models.UpcomingClass, error) {
	const query = `SELECT c.id AS class_id, c.name AS class_name, cs.start_time,
        t.full_name AS teacher_name, rm.name AS room_name,
        COALESCE(att.enrolled, 0) AS enrolled_count, c.max_capacity AS capacity
        FROM class_schedules cs
        JOIN classes c ON c.id = cs.class_id AND c.is_active = TRUE
        JOIN teachers t ON t.id = c.teacher_id
        JOIN rooms rm ON rm.id = c.room_id
        LEFT JOIN (
            SELECT class_id, COUNT(DISTINCT student_id) AS enrolled
            FROM attendances
            WHERE reversed = FALSE AND date >= $1::timestamptz - INTERVAL '30 days'
            GROUP BY class_id
        ) att ON att.class_id = c.id
        WHERE cs.is_active = TRUE AND cs.day_of_week = $2 AND cs.start_time >= $3
        ORDER BY cs.start_time ASC`
	dayOfWeek := int(now.Weekday())
	timeOfDay := now.Format("15:04")
	var classes []models.UpcomingClass
	if err := r.db.SelectContext(ctx, &classes, query, now, dayOfWeek, timeOfDay); err != nil {
		return nil, fmt.Errorf("query upcoming classes: %w", err)
	}
	return classes, nil
}

// RecentPayments lists the latest completed payments with student names.
func (r *AnalyticsRepository) RecentPayments(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	const query = `SELECT p.id, p.student_id, p.student_package_id, p.amount, p.method, p.receipt_number, p.status, p.created_at,
        s.full_name AS student_name
        FROM payments p
        JOIN students s ON s.id = p.student_id
        WHERE p.status = 'completed'
        ORDER BY p.created_at DESC LIMIT $1`
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, limit); err != nil {
		return nil, fmt.Errorf("query recent payments: %w", err)
	}
	return payments, nil
}

// RevenueHistory returns completed revenue per month for the trailing
// months window, oldest first. Months without payments are absent.
func (r *AnalyticsRepository) RevenueHistory(ctx context.Context, now time.Time, months int) ([]models.RevenuePoint, error) {
	const query = `SELECT date_trunc('month', created_at) AS month, COALESCE(SUM(amount), 0) AS amount
        FROM payments
        WHERE status = 'completed' AND created_at >= date_trunc('month', $1::timestamptz) - ($2 * INTERVAL '1 month')
        GROUP BY month ORDER BY month ASC`
	var points []models.RevenuePoint
	if err := r.db.SelectContext(ctx, &points, query, now, months-1); err != nil {
		return nil, fmt.Errorf("query revenue history: %w", err)
	}
	return points, nil
}

// AttendanceByStyle aggregates the last 30 days of check-ins per style.
func (r *AnalyticsRepository) AttendanceByStyle(ctx context.Context, now time.Time) ([]models.StyleCount, error) {
	const query = `SELECT c.style, COUNT(*) AS count
        FROM attendances a
        JOIN classes c ON c.id = a.class_id
        WHERE a.reversed = FALSE AND a.date >= $1::timestamptz - INTERVAL '30 days'
        GROUP BY c.style ORDER BY count DESC`
	var counts []models.StyleCount
	if err := r.db.SelectContext(ctx, &counts, query, now); err != nil {
		return nil, fmt.Errorf("query attendance by style: %w", err)
	}
	return counts, nil
}

// StudentGrowth returns new-student counts per month, oldest first.
func (r *AnalyticsRepository) StudentGrowth(ctx context.Context, now time.Time, months int) ([]models.GrowthPoint, error) {
	const query = `SELECT date_trunc('month', created_at) AS month, COUNT(*) AS count
        FROM students
        WHERE created_at >= date_trunc('month', $1::timestamptz) - ($2 * INTERVAL '1 month')
        GROUP BY month ORDER BY month ASC`
	var points []models.GrowthPoint
	if err := r.db.SelectContext(ctx, &points, query, now, months-1); err != nil {
		return nil, fmt.Errorf("query student growth: %w", err)
	}
	return points, nil
}

// TopTeachers ranks teachers by average attendees per held class over the
// last 30 days.
func (r *AnalyticsRepository) TopTeachers(ctx context.Context, now time.Time, limit int) ([]models.TeacherPerformance, error) {
	const query = `SELECT t.id AS teacher_id, t.full_name AS teacher_name,
        COUNT(DISTINCT c.id) AS total_classes,
        CASE WHEN COUNT(DISTINCT c.id) = 0 THEN 0
             ELSE ROUND(COUNT(a.id)::DECIMAL / COUNT(DISTINCT c.id), 1) END AS average_attendance
        FROM teachers t
        JOIN classes c ON c.teacher_id = t.id AND c.is_active = TRUE
        LEFT JOIN attendances a ON a.class_id = c.id AND a.reversed = FALSE AND a.date >= $1::timestamptz - INTERVAL '30 days'
        GROUP BY t.id, t.full_name
        ORDER BY average_attendance DESC LIMIT $2`
	var teachers []models.TeacherPerformance
	if err := r.db.SelectContext(ctx, &teachers, query, now, limit); err != nil {
		return nil, fmt.Errorf("query top teachers: %w", err)
	}
	return teachers, nil
}
