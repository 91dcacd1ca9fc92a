package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error)
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	Upsert(ctx context.Context, class *models.Class, slots []models.ClassSchedule) error
	Deactivate(ctx context.Context, id string) error
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
}

var slotTimeFormat = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ScheduleSlotRequest is one weekly slot in a class payload.
type ScheduleSlotRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ClassRequest creates or updates a class and rewrites its slots.
type ClassRequest struct {
	Name        string                `json:"name" validate:"required"`
	Description *string               `json:"description"`
	Style       string                `json:"style" validate:"required"`
	StyleColor  *string               `json:"style_color"`
	TeacherID   string                `json:"teacher_id" validate:"required"`
	RoomID      string                `json:"room_id" validate:"required"`
	Level       string                `json:"level" validate:"required"`
	CreditCost  int                   `json:"credit_cost" validate:"min=0"`
	MaxCapacity int                   `json:"max_capacity" validate:"required,min=1"`
	IsSpecial   bool                  `json:"is_special"`
	IsActive    bool                  `json:"is_active"`
	Schedules   []ScheduleSlotRequest `json:"schedules" validate:"required,min=1,dive"`
}

// ClassService manages the class offering and its weekly schedule.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns classes with their schedules.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error) {
	classes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Get fetches one class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create adds a class with its weekly slots.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.ClassDetail, error) {
	return s.save(ctx, "", req)
}

// Update rewrites a class and replaces its slots.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.ClassDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.save(ctx, id, req)
}

// Deactivate retires a class from the offering. History stays intact.
func (s *ClassService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate class")
	}
	return nil
}

// Teachers lists active instructors.
func (s *ClassService) Teachers(ctx context.Context) ([]models.Teacher, error) {
	teachers, err := s.repo.ListTeachers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// Rooms lists studio rooms.
func (s *ClassService) Rooms(ctx context.Context) ([]models.Room, error) {
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, nil
}

func (s *ClassService) save(ctx context.Context, id string, req ClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	level := models.ClassLevel(req.Level)
	if !level.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported class level")
	}
	for _, slot := range req.Schedules {
		if !slotTimeFormat.MatchString(slot.StartTime) || !slotTimeFormat.MatchString(slot.EndTime) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "schedule times must be HH:MM")
		}
		if slot.EndTime <= slot.StartTime {
			return nil, appErrors.Clone(appErrors.ErrValidation, "schedule slot must end after it starts")
		}
	}

	class := &models.Class{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Style:       req.Style,
		StyleColor:  req.StyleColor,
		TeacherID:   req.TeacherID,
		RoomID:      req.RoomID,
		Level:       level,
		CreditCost:  req.CreditCost,
		MaxCapacity: req.MaxCapacity,
		IsSpecial:   req.IsSpecial,
		IsActive:    req.IsActive,
	}
	slots := make([]models.ClassSchedule, len(req.Schedules))
	for i, slot := range req.Schedules {
		slots[i] = models.ClassSchedule{
			DayOfWeek: slot.DayOfWeek,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			IsActive:  true,
		}
	}

	if err := s.repo.Upsert(ctx, class, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save class")
	}
	return s.Get(ctx, class.ID)
}
