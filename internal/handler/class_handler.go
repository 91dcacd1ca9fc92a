package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/models"
	"github.com/ritmo-academy/academy-api/internal/service"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
	"github.com/ritmo-academy/academy-api/pkg/response"
)

// ClassHandler exposes the class catalog and its admin management.
type ClassHandler struct {
	service *service.ClassService
}

// NewClassHandler constructs the handler.
func NewClassHandler(svc *service.ClassService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param style query string false "Dance style"
// @Param teacherId query string false "Teacher ID"
// @Param active query bool false "Active only"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	filter := models.ClassFilter{
		Style:     c.Query("style"),
		TeacherID: c.Query("teacherId"),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	classes, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Get godoc
// @Summary Class details
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}

	class, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}

	class, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Deactivate godoc
// @Summary Deactivate class
// @Description Remove a class from the schedule without deleting its history
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/classes/{id} [delete]
func (h *ClassHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Teachers godoc
// @Summary List teachers
// @Description Teacher options for the class form
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/teachers [get]
func (h *ClassHandler) Teachers(c *gin.Context) {
	teachers, err := h.service.Teachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// Rooms godoc
// @Summary List rooms
// @Description Room options for the class form
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/rooms [get]
func (h *ClassHandler) Rooms(c *gin.Context) {
	rooms, err := h.service.Rooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}
