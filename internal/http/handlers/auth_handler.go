package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibeconnect/social-backend/internal/dto"
	"github.com/vibeconnect/social-backend/internal/http/handlers/common"
	"github.com/vibeconnect/social-backend/internal/http/middleware"
	"github.com/vibeconnect/social-backend/internal/service"
)

// Ответ forgot-password одинаков для любого email.
const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent"

// AuthHandler обслуживает регистрацию, вход, профиль и сброс пароля.
type AuthHandler struct {
	auth        *service.AuthService
	resets      *service.PasswordResetService
	cookies     common.CookieConfig
	exposeCodes bool
}

// NewAuthHandler создаёт обработчик. При exposeCodes код подтверждения
// возвращается в ответе (режим разработки и интеграционных тестов).
func NewAuthHandler(auth *service.AuthService, resets *service.PasswordResetService, cookies common.CookieConfig, exposeCodes bool) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		resets:      resets,
		cookies:     cookies,
		exposeCodes: exposeCodes,
	}
}

// Signup POST /auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := common.BindInput(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	res, err := h.auth.Signup(c.Request.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}, common.ClientMeta(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	message := "Account created. Check your email for the verification code."
	if h.exposeCodes {
		message = "Account created. Verification code: " + res.Code
	}

	setSessionCookie(c, h.cookies, &res.AuthResult)
	common.RespondJSON(c, http.StatusOK, dto.SignupResponse{
		VerificationRequired: true,
		Message:              message,
		User:                 dto.NewUserResponse(res.User).WithSession(res.SessionToken, res.Session.ExpiresAt),
	})
}

// VerifyEmail POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := common.BindInput(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	res, err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.Code, common.ClientMeta(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	setSessionCookie(c, h.cookies, res)
	common.RespondJSON(c, http.StatusOK, dto.VerifyEmailResponse{
		Message: "Email verified successfully",
		User:    dto.NewUserResponse(res.User).WithSession(res.SessionToken, res.Session.ExpiresAt),
	})
}

// ResendVerification POST /auth/resend-verification?email=
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req dto.EmailRequest
	if err := common.BindInput(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	code, err := h.auth.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		common.Fail(c, err)
		return
	}

	message := "Verification code sent. Check your email."
	if h.exposeCodes {
		message = "Verification code sent. Verification code: " + code
	}
	common.RespondMessage(c, message)
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := common.BindInput(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	res, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	}, common.ClientMeta(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	setSessionCookie(c, h.cookies, res)
	common.RespondJSON(c, http.StatusOK, dto.NewUserResponse(res.User).WithSession(res.SessionToken, res.Session.ExpiresAt))
}

// Me GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	user, err := h.auth.Me(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewUserResponse(user))
}

// UpdateMe PUT /auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.UpdateProfileRequest
	if err := common.BindInput(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), userID, service.ProfileInput{
		Name:     req.Name,
		Username: req.Username,
		Bio:      req.Bio,
		Picture:  req.Picture,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewUserResponse(user))
}

// Logout POST /auth/logout. Идемпотентен: без сессии тоже отвечает 200.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		common.Fail(c, err)
		return
	}

	common.ClearSessionCookie(c, h.cookies)
	common.RespondMessage(c, "Logged out")
}

// ListSessions GET /auth/sessions
func (h *AuthHandler) ListSessions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	currentID, _ := common.CurrentSessionID(c)

	sessions, err := h.auth.ListSessions(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	resp := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, dto.NewSessionResponse(s, currentID))
	}
	common.RespondJSON(c, http.StatusOK, gin.H{"sessions": resp})
}

// DeleteSession DELETE /auth/sessions/:id
func (h *AuthHandler) DeleteSession(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	sessionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.auth.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondMessage(c, "Session revoked")
}

// DeleteOtherSessions DELETE /auth/sessions
func (h *AuthHandler) DeleteOtherSessions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	currentID, err := common.CurrentSessionID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.auth.DeleteOtherSessions(c.Request.Context(), userID, currentID); err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondMessage(c, "Other sessions revoked")
}

// ForgotPassword POST /auth/forgot-password?email=
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.EmailRequest
	if err := common.BindInput(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.resets.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondMessage(c, forgotPasswordMessage)
}

// ResetPassword POST /auth/reset-password?token=&new_password=
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := common.BindInput(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.resets.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondMessage(c, "Password has been reset successfully")
}

// setSessionCookie выставляет cookie на срок жизни выданной сессии.
func setSessionCookie(c *gin.Context, cookies common.CookieConfig, res *service.AuthResult) {
	maxAge := int(res.TTL.Seconds())
	if maxAge <= 0 {
		return
	}
	common.SetSessionCookie(c, cookies, res.SessionToken, maxAge)
}
