package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
	"github.com/vibeconnect/social-backend/internal/repository"
)

// SessionRepository описывает хранилище сессий.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	ListSessions(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Session, error)
	DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error
	DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptSessionID uuid.UUID) error
}

// SessionConfig сроки жизни сессий.
type SessionConfig struct {
	TTL           time.Duration
	RememberMeTTL time.Duration
	Now           func() time.Time
}

// SessionManager выпускает и проверяет сессии.
type SessionManager struct {
	repo   SessionRepository
	tokens *TokenGenerator
	cfg    SessionConfig
}

// NewSessionManager создаёт менеджер сессий. Нулевые сроки заменяются на 7 и 30 дней.
func NewSessionManager(repo SessionRepository, tokens *TokenGenerator, cfg SessionConfig) *SessionManager {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.RememberMeTTL <= 0 {
		cfg.RememberMeTTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionManager{repo: repo, tokens: tokens, cfg: cfg}
}

// TTL срок жизни новой сессии.
func (m *SessionManager) TTL(rememberMe bool) time.Duration {
	if rememberMe {
		return m.cfg.RememberMeTTL
	}
	return m.cfg.TTL
}

// Issue создаёт сессию и возвращает сам токен. Токен больше нигде не сохраняется.
func (m *SessionManager) Issue(ctx context.Context, userID uuid.UUID, rememberMe bool, meta map[string]string) (string, *models.Session, error) {
	token, err := m.tokens.SessionToken()
	if err != nil {
		return "", nil, err
	}

	session := &models.Session{
		UserID:     userID,
		TokenHash:  HashToken(token),
		RememberMe: rememberMe,
		ExpiresAt:  m.cfg.Now().Add(m.TTL(rememberMe)),
	}
	if meta != nil {
		if ua, ok := meta["user_agent"]; ok && ua != "" {
			ua = truncate(ua, 512)
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok && ip != "" {
			session.IPAddress = &ip
		}
	}

	if err := m.repo.CreateSession(ctx, session); err != nil {
		return "", nil, fmt.Errorf("session manager: %w", err)
	}
	return token, session, nil
}

// Authenticate находит действующую сессию по токену.
// Нет токена, неизвестный или просроченный токен дают ErrUnauthenticated.
func (m *SessionManager) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.ErrUnauthenticated
	}

	session, err := m.repo.GetSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperror.ErrUnauthenticated
		}
		return nil, fmt.Errorf("session manager: %w", err)
	}
	if session.Expired(m.cfg.Now()) {
		return nil, apperror.ErrUnauthenticated
	}
	return session, nil
}

// Revoke удаляет сессию по токену (logout). Неизвестный токен не ошибка.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return m.repo.DeleteSessionByTokenHash(ctx, HashToken(token))
}

// List возвращает действующие сессии пользователя.
func (m *SessionManager) List(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	return m.repo.ListSessions(ctx, userID, m.cfg.Now())
}

// Delete удаляет одну сессию пользователя.
func (m *SessionManager) Delete(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := m.repo.DeleteSessionByID(ctx, sessionID, userID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperror.ErrSessionNotFound
		}
		return err
	}
	return nil
}

// DeleteOthers удаляет все сессии пользователя, кроме текущей.
func (m *SessionManager) DeleteOthers(ctx context.Context, userID, currentSessionID uuid.UUID) error {
	return m.repo.DeleteAllSessionsExcept(ctx, userID, currentSessionID)
}

// truncate обрезает строку до max байт по границе руны. Postgres не примет невалидный UTF-8 в TEXT.
func truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
