package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/models"
	appErrors "github.com/ritmo-academy/academy-api/pkg/errors"
	"github.com/ritmo-academy/academy-api/pkg/response"
)

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowedRoles[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

type studentResolver interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// StudentSelfOrStaff lets staff through unconditionally and students only
// when the :id route param names their own student profile.
func StudentSelfOrStaff(students studentResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if claims.Role == models.RoleAdmin || claims.Role == models.RoleReceptionist {
			c.Next()
			return
		}

		student, err := students.FindByUserID(c.Request.Context(), claims.UserID)
		if err != nil || student == nil || student.ID != c.Param("id") {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser extracts the JWT claims stored by the JWT middleware.
func CurrentUser(c *gin.Context) *models.JWTClaims {
	claimsValue, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := claimsValue.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
