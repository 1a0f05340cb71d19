package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vibeconnect/social-backend/internal/dto"
	"github.com/vibeconnect/social-backend/internal/logger"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
)

// ErrorHandler превращает последнюю ошибку из c.Errors в ответ {"detail", "code"}.
// Внутренние ошибки маскируются и логируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		writeError(c, c.Errors.Last().Err)
	}
}

func abortWithError(c *gin.Context, err error) {
	writeError(c, err)
	c.Abort()
}

func writeError(c *gin.Context, err error) {
	appErr := apperror.From(err)

	entry := logger.WithFields(logrus.Fields{
		"code":   appErr.Code,
		"status": appErr.HTTPStatus,
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	})
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		entry.WithField("error", err.Error()).Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
		Detail: appErr.Message,
		Code:   string(appErr.Code),
	})
}
