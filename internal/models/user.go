package models

import (
	"time"

	"github.com/google/uuid"
)

// Провайдеры, через которые создан или привязан аккаунт.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// User описывает аккаунт пользователя соцсети.
// PasswordHash пустой у аккаунтов, созданных только через OAuth.
type User struct {
	ID              uuid.UUID  `db:"id" json:"user_id"`
	Email           string     `db:"email" json:"email"`
	Name            string     `db:"name" json:"name"`
	Username        *string    `db:"username" json:"username,omitempty"`
	PasswordHash    *string    `db:"password_hash" json:"-"`
	EmailVerified   bool       `db:"email_verified" json:"email_verified"`
	Bio             *string    `db:"bio" json:"bio,omitempty"`
	Picture         *string    `db:"picture" json:"picture,omitempty"`
	AuthProvider    string     `db:"auth_provider" json:"auth_provider"`
	ProviderSubject *string    `db:"provider_subject" json:"-"`
	LastLoginAt     *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// HasPassword сообщает, можно ли войти в аккаунт по паролю.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Session представляет сохранённую сессию пользователя.
// Сам токен не хранится, только его SHA-256.
type Session struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	TokenHash  string    `db:"token_hash" json:"-"`
	UserAgent  *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress  *string   `db:"ip_address" json:"ip_address,omitempty"`
	RememberMe bool      `db:"remember_me" json:"remember_me"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Expired проверяет истечение сессии относительно now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
