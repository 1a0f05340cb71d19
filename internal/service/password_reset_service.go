package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibeconnect/social-backend/internal/logger"
	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
	"github.com/vibeconnect/social-backend/internal/repository"
	"github.com/vibeconnect/social-backend/internal/validation"
)

// PasswordResetRepository хранилище токенов сброса пароля.
type PasswordResetRepository interface {
	ReplaceToken(ctx context.Context, token *models.PasswordResetToken) error
	RedeemToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.PasswordResetToken, error)
}

// PasswordResetConfig параметры сброса пароля.
type PasswordResetConfig struct {
	TokenTTL time.Duration
	Now      func() time.Time
}

// PasswordResetService выдача и погашение токенов сброса пароля.
type PasswordResetService struct {
	users    UserRepository
	resets   PasswordResetRepository
	hasher   *PasswordHasher
	tokens   *TokenGenerator
	notifier Notifier
	cfg      PasswordResetConfig
}

// NewPasswordResetService создаёт сервис сброса пароля.
func NewPasswordResetService(
	users UserRepository,
	resets PasswordResetRepository,
	hasher *PasswordHasher,
	tokens *TokenGenerator,
	notifier Notifier,
	cfg PasswordResetConfig,
) *PasswordResetService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PasswordResetService{
		users:    users,
		resets:   resets,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
	}
}

// ForgotPassword выдаёт токен и отправляет ссылку, если аккаунт существует.
// Для незарегистрированного email результат снаружи неотличим.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return apperror.Validation("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logger.WithFields(logrus.Fields{"kind": "password_reset"}).Debug("reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("password reset: lookup: %w", err)
	}

	token, err := s.tokens.ResetToken()
	if err != nil {
		return err
	}

	now := s.cfg.Now()
	record := &models.PasswordResetToken{
		TokenHash: HashToken(token),
		Email:     user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.resets.ReplaceToken(ctx, record); err != nil {
		return fmt.Errorf("password reset: store token: %w", err)
	}

	s.notifier.PasswordReset(user.Email, user.Name, token)
	return nil
}

// ResetPassword погашает токен и сохраняет новый пароль.
// Токен одноразовый: повторная попытка даёт ErrInvalidOrExpiredToken.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return passwordError(err)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return apperror.ErrInvalidOrExpiredToken
	}

	passHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("password reset: %w", err)
	}

	redeemed, err := s.resets.RedeemToken(ctx, HashToken(token), passHash, s.cfg.Now())
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) || errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("password reset: redeem: %w", err)
	}

	if user, err := s.users.GetByEmail(ctx, redeemed.Email); err == nil {
		s.notifier.SecurityEvent(user.ID, EventPasswordReset, map[string]any{"email": user.Email})
	}
	return nil
}
