package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey       = "userID"
	ContextSessionIDKey    = "sessionID"
	ContextSessionTokenKey = "sessionToken"
)

// SessionCookieName имя cookie с токеном сессии.
const SessionCookieName = "session_token"

// Authenticator находит действующую сессию по токену.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

// SessionAuth пропускает запрос только с действующей сессией.
// Токен берётся из Authorization: Bearer, затем из cookie session_token.
func SessionAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c)
		if token == "" {
			abortWithError(c, apperror.ErrUnauthenticated)
			return
		}

		session, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ContextUserIDKey, session.UserID)
		c.Set(ContextSessionIDKey, session.ID)
		c.Set(ContextSessionTokenKey, token)
		c.Next()
	}
}

// SessionToken достаёт токен сессии из заголовка или cookie.
func SessionToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
			return strings.TrimSpace(auth[7:])
		}
		return ""
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
