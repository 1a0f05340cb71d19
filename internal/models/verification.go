package models

import "time"

// PendingVerification хранит актуальный код подтверждения email.
// На один email существует не более одной записи.
type PendingVerification struct {
	Email     string    `db:"email" json:"email"`
	Code      string    `db:"code" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// PasswordResetToken одноразовый токен сброса пароля.
type PasswordResetToken struct {
	TokenHash string    `db:"token_hash" json:"-"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Expired проверяет истечение токена относительно now.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
