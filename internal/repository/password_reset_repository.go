package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/repository/common"
)

// ErrResetTokenNotFound токен не найден, уже использован или просрочен.
var ErrResetTokenNotFound = errors.New("password reset token not found")

// PasswordResetRepository хранит токены сброса пароля.
type PasswordResetRepository struct {
	db *sqlx.DB
}

func NewPasswordResetRepository(db *sqlx.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// ReplaceToken удаляет прежние токены email и сохраняет новый.
func (r *PasswordResetRepository) ReplaceToken(ctx context.Context, token *models.PasswordResetToken) error {
	token.Email = strings.ToLower(strings.TrimSpace(token.Email))
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE email = $1`, token.Email); err != nil {
			return fmt.Errorf("password reset repository: delete previous %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO password_reset_tokens (token_hash, email, created_at, expires_at)
			VALUES ($1, $2, $3, $4)
		`, token.TokenHash, token.Email, token.CreatedAt, token.ExpiresAt)
		if err != nil {
			return fmt.Errorf("password reset repository: insert %w", err)
		}
		return nil
	})
}

// RedeemToken в одной транзакции удаляет токен и меняет пароль владельца.
// Просроченный токен тоже удаляется, но пароль не меняется.
func (r *PasswordResetRepository) RedeemToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.PasswordResetToken, error) {
	var (
		token   models.PasswordResetToken
		expired bool
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &token, `
			DELETE FROM password_reset_tokens WHERE token_hash = $1
			RETURNING token_hash, email, created_at, expires_at
		`, tokenHash)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrResetTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("password reset repository: consume %w", err)
		}
		if token.Expired(now) {
			expired = true
			return nil
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE users SET password_hash = $2, updated_at = NOW() WHERE LOWER(email) = $1
		`, token.Email, passwordHash)
		if err != nil {
			return fmt.Errorf("password reset repository: update password %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrResetTokenNotFound
	}
	return &token, nil
}
