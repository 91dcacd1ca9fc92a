package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/dto"
	"github.com/ritmo-academy/academy-api/internal/middleware"
	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
	"github.com/ritmo-academy/academy-api/pkg/response"
)

type dashboardService interface {
	StudentDashboard(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error)
	AdminDashboard(ctx context.Context) (*dto.AdminDashboardResponse, bool, error)
}

type studentProfileResolver interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// DashboardHandler wires dashboard aggregation to HTTP endpoints.
type DashboardHandler struct {
	service  dashboardService
	students studentProfileResolver
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, students studentProfileResolver) *DashboardHandler {
	return &DashboardHandler{service: service, students: students}
}

// Student godoc
// @Summary Student dashboard
// @Description Active package, attendance streak, recent visits and the class catalog for the logged-in student
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
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

	summary, cacheHit, err := h.service.StudentDashboard(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Admin godoc
// @Summary Admin dashboard
// @Description Revenue, student and occupancy rollups with chart series
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	summary, cacheHit, err := h.service.AdminDashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
