package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vibeconnect/social-backend/internal/dto"
	"github.com/vibeconnect/social-backend/internal/http/handlers/common"
	"github.com/vibeconnect/social-backend/internal/logger"
	"github.com/vibeconnect/social-backend/internal/oauth"
	"github.com/vibeconnect/social-backend/internal/service"
)

const (
	appleScope        = "name email"
	appleResponseType = "code id_token"
	appleResponseMode = "form_post"
)

// Apple делает POST на наш сервер, поэтому в браузер возвращаемся
// HTML страницей с переходом на фронтенд.
var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Redirecting</title>
</head>
<body>
<script>window.location.replace({{.}});</script>
<p><a href="{{.}}">Continue</a></p>
</body>
</html>`))

// OAuthHandler обслуживает вход через Google и Apple.
type OAuthHandler struct {
	identity    *service.IdentityService
	apple       oauth.AppleConfig
	frontendURL string
	cookies     common.CookieConfig
}

// NewOAuthHandler создаёт обработчик внешних провайдеров.
func NewOAuthHandler(identity *service.IdentityService, apple oauth.AppleConfig, frontendURL string, cookies common.CookieConfig) *OAuthHandler {
	return &OAuthHandler{
		identity:    identity,
		apple:       apple,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		cookies:     cookies,
	}
}

// GoogleSession GET /auth/session?session_id=
// session_id можно передать и заголовком X-Session-ID.
func (h *OAuthHandler) GoogleSession(c *gin.Context) {
	sessionID := common.FirstNonEmpty(c.Query("session_id"), c.GetHeader("X-Session-ID"))

	res, err := h.identity.GoogleLogin(c.Request.Context(), sessionID, common.ClientMeta(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	setSessionCookie(c, h.cookies, res)
	common.RespondJSON(c, http.StatusOK, dto.NewUserResponse(res.User).WithSession(res.SessionToken, res.Session.ExpiresAt))
}

// AppleConfig GET /auth/apple/config
func (h *OAuthHandler) AppleConfig(c *gin.Context) {
	common.RespondJSON(c, http.StatusOK, dto.AppleConfigResponse{
		ClientID:     h.apple.ClientID,
		RedirectURI:  h.apple.RedirectURI,
		Scope:        appleScope,
		ResponseType: appleResponseType,
		ResponseMode: appleResponseMode,
	})
}

// AppleCallback POST /auth/callback/apple
func (h *OAuthHandler) AppleCallback(c *gin.Context) {
	var form dto.AppleCallbackForm
	if err := common.BindInput(c, &form); err != nil {
		common.Fail(c, err)
		return
	}

	if form.Error != "" {
		logger.WithFields(logrus.Fields{
			"provider": "apple",
			"error":    form.Error,
		}).Warn("apple sign in cancelled or failed")
		h.redirect(c, h.frontendURL+"/login?error=apple_signin_failed")
		return
	}

	res, err := h.identity.AppleLogin(c.Request.Context(), service.AppleCallbackInput{
		IDToken: form.IDToken,
		Code:    form.Code,
		User:    form.User,
		State:   form.State,
	}, common.ClientMeta(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	setSessionCookie(c, h.cookies, res)
	h.redirect(c, h.frontendURL+"/auth/callback#session_token="+url.QueryEscape(res.SessionToken))
}

func (h *OAuthHandler) redirect(c *gin.Context, target string) {
	var buf bytes.Buffer
	if err := redirectPage.Execute(&buf, target); err != nil {
		common.Fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
