package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/dto"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
	"github.com/ritmo-academy/academy-api/pkg/response"
)

type recordService interface {
	StudentRecord(ctx context.Context, studentID string) (*dto.RecordResponse, error)
}

// RecordHandler serves the consolidated per-student history.
type RecordHandler struct {
	service  recordService
	students studentProfileResolver
}

// NewRecordHandler constructs the handler.
func NewRecordHandler(service recordService, students studentProfileResolver) *RecordHandler {
	return &RecordHandler{service: service, students: students}
}

// Own godoc
// @Summary Own record
// @Description Full attendance, payment and package history for the logged-in student
// @Tags Records
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /record [get]
func (h *RecordHandler) Own(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.students.FindByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student profile not found"))
			return
		}
		response.Error(c, err)
		return
	}

	h.respond(c, student.ID)
}

// ByStudent godoc
// @Summary Student record
// @Description Full history for any student, staff only
// @Tags Records
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/record [get]
func (h *RecordHandler) ByStudent(c *gin.Context) {
	h.respond(c, c.Param("id"))
}

func (h *RecordHandler) respond(c *gin.Context, studentID string) {
	record, err := h.service.StudentRecord(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
