package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/vibeconnect/social-backend/internal/models"
)

// ErrorResponse формат ошибки API.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// MessageResponse ответ с одним сообщением.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse публичное представление аккаунта. SessionToken заполнен,
// только когда ответ открывает новую сессию.
type UserResponse struct {
	UserID        uuid.UUID  `json:"user_id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Username      *string    `json:"username,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	Bio           *string    `json:"bio,omitempty"`
	Picture       *string    `json:"picture,omitempty"`
	AuthProvider  string     `json:"auth_provider"`
	HasPassword   bool       `json:"has_password"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SessionToken  string     `json:"session_token,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// NewUserResponse собирает ответ из модели.
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		UserID:        u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Username:      u.Username,
		EmailVerified: u.EmailVerified,
		Bio:           u.Bio,
		Picture:       u.Picture,
		AuthProvider:  u.AuthProvider,
		HasPassword:   u.HasPassword(),
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}

// WithSession добавляет токен и срок действия новой сессии.
func (r UserResponse) WithSession(token string, expiresAt time.Time) UserResponse {
	r.SessionToken = token
	r.ExpiresAt = &expiresAt
	return r
}

// SignupResponse ответ POST /auth/signup.
type SignupResponse struct {
	VerificationRequired bool         `json:"verification_required"`
	Message              string       `json:"message"`
	User                 UserResponse `json:"user"`
}

// VerifyEmailResponse ответ POST /auth/verify-email.
type VerifyEmailResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// SessionResponse одна сессия в списке.
type SessionResponse struct {
	ID         uuid.UUID `json:"id"`
	UserAgent  *string   `json:"user_agent,omitempty"`
	IPAddress  *string   `json:"ip_address,omitempty"`
	RememberMe bool      `json:"remember_me"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Current    bool      `json:"current"`
}

// NewSessionResponse собирает ответ из модели.
func NewSessionResponse(s models.Session, currentID uuid.UUID) SessionResponse {
	return SessionResponse{
		ID:         s.ID,
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
		RememberMe: s.RememberMe,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		Current:    s.ID == currentID,
	}
}

// AppleConfigResponse параметры для построения ссылки Sign in with Apple.
type AppleConfigResponse struct {
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	Scope        string `json:"scope"`
	ResponseType string `json:"response_type"`
	ResponseMode string `json:"response_mode"`
}
