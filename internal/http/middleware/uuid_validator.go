package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.DELETE("/sessions/:id", UUIDValidator("id"), handler.DeleteSession)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			abortWithError(c, apperror.Validation(paramName+" is required"))
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			abortWithError(c, apperror.Validation(paramName+" must be a valid UUID"))
			return
		}

		c.Next()
	}
}
