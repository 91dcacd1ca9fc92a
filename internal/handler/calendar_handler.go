package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/dto"
	"github.com/ritmo-academy/academy-api/pkg/response"
)

type calendarService interface {
	WeeklyClasses(ctx context.Context) (*dto.CalendarResponse, error)
}

// CalendarHandler serves the weekly class schedule.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// Weekly godoc
// @Summary Weekly class calendar
// @Description Active classes grouped by weekday
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/classes [get]
func (h *CalendarHandler) Weekly(c *gin.Context) {
	calendar, err := h.service.WeeklyClasses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}
