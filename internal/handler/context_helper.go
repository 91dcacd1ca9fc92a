package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/middleware"
	"github.com/ritmo-academy/academy-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

func isStaff(claims *models.JWTClaims) bool {
	if claims == nil {
		return false
	}
	return claims.Role == models.RoleAdmin || claims.Role == models.RoleReceptionist
}
