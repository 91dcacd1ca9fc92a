package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/models"
	"github.com/ritmo-academy/academy-api/internal/service"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
	"github.com/ritmo-academy/academy-api/pkg/response"
)

type attendanceLister interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error)
}

type checkinService interface {
	RecordAttendance(ctx context.Context, actorID string, req service.CheckInRequest) (*models.AttendanceRecord, error)
	ReverseAttendance(ctx context.Context, req service.ReverseRequest) (*models.AttendanceRecord, error)
}

// AttendanceHandler exposes check-in, reversal and listing endpoints.
type AttendanceHandler struct {
	ledger checkinService
	lister attendanceLister
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(ledger checkinService, lister attendanceLister) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger, lister: lister}
}

// CheckIn godoc
// @Summary Record attendance
// @Description Debit the student's best eligible package and record the visit
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.CheckInRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendances [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}

	record, err := h.ledger.RecordAttendance(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// Reverse godoc
// @Summary Reverse attendance
// @Description Undo a check-in and refund the debited credits
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendances/{id}/reverse [post]
func (h *AttendanceHandler) Reverse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.ledger.ReverseAttendance(c.Request.Context(), service.ReverseRequest{
		AttendanceID: c.Param("id"),
		ActorID:      claims.UserID,
		ActorRole:    claims.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List attendances
// @Description Paginated attendance log with student, class and date filters
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Student ID"
// @Param classId query string false "Class ID"
// @Param dateFrom query string false "From date (YYYY-MM-DD)"
// @Param dateTo query string false "To date (YYYY-MM-DD)"
// @Param includeReversed query bool false "Include reversed records"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendances [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.AttendanceFilter{
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		SortOrder: c.Query("sortOrder"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	filter.IncludeReversed = c.Query("includeReversed") == "true"

	if raw := c.Query("dateFrom"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dateFrom must be YYYY-MM-DD"))
			return
		}
		filter.DateFrom = &parsed
	}
	if raw := c.Query("dateTo"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dateTo must be YYYY-MM-DD"))
			return
		}
		end := parsed.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &end
	}

	records, pagination, err := h.lister.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}
