package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/service"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
	"github.com/ritmo-academy/academy-api/pkg/response"
)

// PackageHandler exposes the catalog and student package lifecycle.
type PackageHandler struct {
	service *service.PackageService
}

// NewPackageHandler constructs the handler.
func NewPackageHandler(svc *service.PackageService) *PackageHandler {
	return &PackageHandler{service: svc}
}

// Catalog godoc
// @Summary List package catalog
// @Description Packages currently offered for sale
// @Tags Packages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /packages [get]
func (h *PackageHandler) Catalog(c *gin.Context) {
	activeOnly := c.DefaultQuery("activeOnly", "true") != "false"
	defs, err := h.service.ListCatalog(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, defs, nil)
}

// Create godoc
// @Summary Create catalog package
// @Tags Packages
// @Accept json
// @Produce json
// @Param payload body service.PackageDefinitionRequest true "Package definition"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/packages [post]
func (h *PackageHandler) Create(c *gin.Context) {
	var req service.PackageDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid package payload"))
		return
	}

	def, err := h.service.CreateDefinition(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, def)
}

// Update godoc
// @Summary Update catalog package
// @Tags Packages
// @Accept json
// @Produce json
// @Param id path string true "Package ID"
// @Param payload body service.PackageDefinitionRequest true "Package definition"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/packages/{id} [put]
func (h *PackageHandler) Update(c *gin.Context) {
	var req service.PackageDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid package payload"))
		return
	}

	def, err := h.service.UpdateDefinition(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, def, nil)
}

// Deactivate godoc
// @Summary Retire catalog package
// @Description Stop offering a package without touching existing instances
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/packages/{id} [delete]
func (h *PackageHandler) Deactivate(c *gin.Context) {
	if err := h.service.DeactivateDefinition(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentPackages godoc
// @Summary List a student's packages
// @Description All purchased instances plus the one the next check-in would debit
// @Tags Packages
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/packages [get]
func (h *PackageHandler) StudentPackages(c *gin.Context) {
	res, err := h.service.StudentPackages(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Ledger godoc
// @Summary Ledger trail for a student package
// @Description Debit and refund entries recorded against the instance
// @Tags Packages
// @Produce json
// @Param id path string true "Student package ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student-packages/{id}/ledger [get]
func (h *PackageHandler) Ledger(c *gin.Context) {
	entries, err := h.service.InstanceLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Purchase godoc
// @Summary Sell a package to a student
// @Description Snapshot the catalog definition onto a new instance and record the payment
// @Tags Packages
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.PurchaseRequest true "Purchase payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/{id}/packages [post]
func (h *PackageHandler) Purchase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid purchase payload"))
		return
	}

	instance, err := h.service.Purchase(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instance)
}

// Revoke godoc
// @Summary Revoke a student package
// @Tags Packages
// @Produce json
// @Param id path string true "Student package ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student-packages/{id}/revoke [post]
func (h *PackageHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Revoke(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Extend godoc
// @Summary Extend a student package
// @Description Push the instance expiry forward by a number of days
// @Tags Packages
// @Accept json
// @Produce json
// @Param id path string true "Student package ID"
// @Param payload body service.ExtendRequest true "Extension payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student-packages/{id}/extend [post]
func (h *PackageHandler) Extend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid extend payload"))
		return
	}

	if err := h.service.Extend(c.Request.Context(), claims.UserID, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
