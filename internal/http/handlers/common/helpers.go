package common

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/vibeconnect/social-backend/internal/dto"
	"github.com/vibeconnect/social-backend/internal/http/middleware"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
)

// CookieConfig параметры cookie сессии.
type CookieConfig struct {
	Secure bool
	Domain string
}

// CurrentUserID extracts user ID from Gin context
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthenticated
	}

	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperror.ErrUnauthenticated
	}

	return userID, nil
}

// CurrentSessionID extracts the authenticated session ID from Gin context
func CurrentSessionID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextSessionIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthenticated
	}

	sessionID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthenticated
	}

	return sessionID, nil
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.Validation(paramName + " must be a valid UUID")
	}
	return parsed, nil
}

// BindInput читает параметры из JSON тела, формы или query string.
// Клиенты шлют их по-разному, поэтому поддерживаются все варианты;
// query string дополняет JSON, не затирая его поля.
func BindInput(c *gin.Context, obj any) error {
	if c.Request.ContentLength != 0 && c.ContentType() == binding.MIMEJSON {
		if err := c.ShouldBindJSON(obj); err != nil {
			return apperror.Validation("invalid JSON body")
		}
		if c.Request.URL.RawQuery == "" {
			return nil
		}
		if err := c.ShouldBindQuery(obj); err != nil {
			return apperror.Validation("invalid query parameters")
		}
		return nil
	}

	if err := c.ShouldBindWith(obj, binding.Form); err != nil {
		return apperror.Validation("invalid request parameters")
	}
	return nil
}

// ClientMeta собирает user agent и IP для записи сессии.
func ClientMeta(c *gin.Context) map[string]string {
	return map[string]string{
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}
}

// Fail передаёт ошибку в middleware.ErrorHandler и прерывает цепочку.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// RespondJSON sends a JSON response with the given status code and data
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondMessage sends {"message": ...} with 200
func RespondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.MessageResponse{Message: message})
}

// SetSessionCookie кладёт токен в HttpOnly cookie со сроком жизни сессии.
func SetSessionCookie(c *gin.Context, cfg CookieConfig, token string, maxAgeSeconds int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, maxAgeSeconds, "/", cfg.Domain, cfg.Secure, true)
}

// ClearSessionCookie удаляет cookie сессии.
func ClearSessionCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", cfg.Domain, cfg.Secure, true)
}

// FirstNonEmpty возвращает первое непустое значение.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
