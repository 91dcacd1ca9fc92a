package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ritmo-academy/academy-api/internal/models"
)

// ClassRepository manages classes and their weekly schedules.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching the filter, each with its schedule slots.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.Style != "" {
		args = append(args, filter.Style)
		conditions = append(conditions, fmt.Sprintf("c.style = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("c.is_active = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT c.id, c.name, c.description, c.style, c.style_color, c.teacher_id, t.full_name AS teacher_name,
        c.room_id, r.name AS room_name, c.level, c.credit_cost, c.max_capacity, c.is_special, c.is_active, c.created_at, c.updated_at
        FROM classes c
        JOIN teachers t ON t.id = c.teacher_id
        JOIN rooms r ON r.id = c.room_id
        WHERE %s ORDER BY c.name ASC`, strings.Join(conditions, " AND "))

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	if len(classes) == 0 {
		return []models.ClassDetail{}, nil
	}

	ids := make([]string, len(classes))
	for i, c := range classes {
		ids[i] = c.ID
	}
	slotQuery, slotArgs, err := sqlx.In(
		`SELECT id, class_id, day_of_week, start_time, end_time, is_active
         FROM class_schedules WHERE class_id IN (?) ORDER BY day_of_week ASC, start_time ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build schedule query: %w", err)
	}
	var slots []models.ClassSchedule
	if err := r.db.SelectContext(ctx, &slots, r.db.Rebind(slotQuery), slotArgs...); err != nil {
		return nil, fmt.Errorf("list class schedules: %w", err)
	}

	byClass := make(map[string][]models.ClassSchedule, len(classes))
	for _, slot := range slots {
		byClass[slot.ClassID] = append(byClass[slot.ClassID], slot)
	}

	details := make([]models.ClassDetail, len(classes))
	for i, c := range classes {
		details[i] = models.ClassDetail{Class: c, Schedules: byClass[c.ID]}
	}
	return details, nil
}

// FindByID fetches a class with its schedule slots.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	var class models.Class
	err := r.db.GetContext(ctx, &class,
		`SELECT c.id, c.name, c.description, c.style, c.style_color, c.teacher_id, t.full_name AS teacher_name,
                c.room_id, r.name AS room_name, c.level, c.credit_cost, c.max_capacity, c.is_special, c.is_active, c.created_at, c.updated_at
         FROM classes c
         JOIN teachers t ON t.id = c.teacher_id
         JOIN rooms r ON r.id = c.room_id
         WHERE c.id = $1`, id)
	if err != nil {
		return nil, err
	}

	var slots []models.ClassSchedule
	if err := r.db.SelectContext(ctx, &slots,
		`SELECT id, class_id, day_of_week, start_time, end_time, is_active
         FROM class_schedules WHERE class_id = $1 ORDER BY day_of_week ASC, start_time ASC`, id); err != nil {
		return nil, fmt.Errorf("list class schedules: %w", err)
	}
	return &models.ClassDetail{Class: class, Schedules: slots}, nil
}

// Upsert creates or replaces a class and rewrites its schedule slots in
// one transaction.
func (r *ClassRepository) Upsert(ctx context.Context, class *models.Class, slots []models.ClassSchedule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin class upsert tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	class.UpdatedAt = now
	if class.ID == "" {
		class.ID = uuid.NewString()
		class.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO classes (id, name, description, style, style_color, teacher_id, room_id, level, credit_cost, max_capacity, is_special, is_active, created_at, updated_at)
             VALUES (:id, :name, :description, :style, :style_color, :teacher_id, :room_id, :level, :credit_cost, :max_capacity, :is_special, :is_active, :created_at, :updated_at)`,
			class); err != nil {
			return fmt.Errorf("insert class: %w", err)
		}
	} else {
		if _, err := tx.NamedExecContext(ctx,
			`UPDATE classes SET name = :name, description = :description, style = :style, style_color = :style_color,
             teacher_id = :teacher_id, room_id = :room_id, level = :level, credit_cost = :credit_cost,
             max_capacity = :max_capacity, is_special = :is_special, is_active = :is_active, updated_at = :updated_at
             WHERE id = :id`,
			class); err != nil {
			return fmt.Errorf("update class: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM class_schedules WHERE class_id = $1`, class.ID); err != nil {
			return fmt.Errorf("clear class schedules: %w", err)
		}
	}

	for i := range slots {
		slots[i].ClassID = class.ID
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO class_schedules (id, class_id, day_of_week, start_time, end_time, is_active)
             VALUES (:id, :class_id, :day_of_week, :start_time, :end_time, :is_active)`,
			slots[i]); err != nil {
			return fmt.Errorf("insert class schedule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit class upsert tx: %w", err)
	}
	return nil
}

// ListTeachers returns active instructors for class assignment.
func (r *ClassRepository) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers,
		`SELECT id, full_name, specialty, active, created_at FROM teachers WHERE active = TRUE ORDER BY full_name ASC`); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListRooms returns the studio rooms.
func (r *ClassRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms,
		`SELECT id, name, capacity FROM rooms ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Deactivate marks a class inactive; attendances keep referencing it.
func (r *ClassRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE classes SET is_active = false, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate class: %w", err)
	}
	return nil
}
