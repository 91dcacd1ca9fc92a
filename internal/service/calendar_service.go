package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ritmo-academy/academy-api/internal/dto"
	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
)

type calendarClassRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error)
}

// CalendarService renders the weekly class offering.
type CalendarService struct {
	classes calendarClassRepository
	logger  *zap.Logger
}

// NewCalendarService constructs a CalendarService.
func NewCalendarService(classes calendarClassRepository, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{classes: classes, logger: logger}
}

// WeeklyClasses lists active classes with their slots for the calendar.
func (s *CalendarService) WeeklyClasses(ctx context.Context) (*dto.CalendarResponse, error) {
	active := true
	classes, err := s.classes.List(ctx, models.ClassFilter{Active: &active})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	resp := &dto.CalendarResponse{Classes: make([]dto.CalendarClass, 0, len(classes))}
	for _, c := range classes {
		entry := dto.CalendarClass{
			ID:          c.ID,
			Name:        c.Name,
			Style:       c.Style,
			StyleColor:  c.StyleColor,
			TeacherName: c.TeacherName,
			RoomName:    c.RoomName,
			Level:       string(c.Level),
			CreditCost:  c.CreditCost,
			Schedules:   make([]dto.CalendarSlot, 0, len(c.Schedules)),
		}
		for _, slot := range c.Schedules {
			if !slot.IsActive {
				continue
			}
			entry.Schedules = append(entry.Schedules, dto.CalendarSlot{
				ID:        slot.ID,
				DayOfWeek: slot.DayOfWeek,
				StartTime: slot.StartTime,
				EndTime:   slot.EndTime,
			})
		}
		resp.Classes = append(resp.Classes, entry)
	}
	return resp, nil
}
