package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vibeconnect/social-backend/internal/http/handlers/common"
	"github.com/vibeconnect/social-backend/internal/http/middleware"
	"github.com/vibeconnect/social-backend/internal/logger"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
	"github.com/vibeconnect/social-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
// Через них клиент получает события безопасности своего аккаунта.
type WSHandler struct {
	hub      *ws.Hub
	auth     middleware.Authenticator
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Пустой allowedOrigins или "*"
// разрешает любой Origin.
func NewWSHandler(hub *ws.Hub, auth middleware.Authenticator, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
// Браузер не умеет ставить заголовки при handshake, поэтому токен
// принимается и в query string.
func (h *WSHandler) Handle(c *gin.Context) {
	token := common.FirstNonEmpty(c.Query("token"), middleware.SessionToken(c))
	if token == "" {
		common.Fail(c, apperror.ErrUnauthenticated)
		return
	}

	session, err := h.auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
	if err != nil {
		common.Fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту.
		logger.WithFields(logrus.Fields{"user_id": session.UserID}).Warnf("ws upgrade failed: %v", err)
		c.Abort()
		return
	}

	client := ws.NewClient(conn, h.hub, session.UserID)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[origin] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
