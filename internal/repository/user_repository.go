package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/repository/common"
)

var (
	// ErrUserNotFound возвращается, когда запись пользователя не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken возвращается при попытке создать второй аккаунт с тем же email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken возвращается, когда username уже занят.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrSessionNotFound возвращается, когда сессия не найдена.
	ErrSessionNotFound = errors.New("session not found")
)

const userColumns = `id, email, name, username, password_hash, email_verified, bio, picture,
	auth_provider, provider_subject, last_login_at, created_at, updated_at`

const sessionColumns = `id, user_id, token_hash, user_agent, ip_address, remember_me, expires_at, created_at`

// UserRepository отвечает за работу с таблицами users и user_sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя. Email приводится к нижнему регистру,
// уникальность обеспечивает индекс по LOWER(email).
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.AuthProvider == "" {
		user.AuthProvider = models.ProviderEmail
	}

	query := `
		INSERT INTO users (email, name, username, password_hash, email_verified, picture, auth_provider, provider_subject)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx, query,
		user.Email, user.Name, user.Username, user.PasswordHash, user.EmailVerified,
		user.Picture, user.AuthProvider, user.ProviderSubject,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapUserWriteError("create", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email без учёта регистра.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	if err := r.db.GetContext(ctx, &user, query, strings.TrimSpace(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}

	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByField[models.User](ctx, r.db, "users", "id", id, ErrUserNotFound)
}

// MarkEmailVerified выставляет email_verified и возвращает обновлённого пользователя.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `
		UPDATE users SET email_verified = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: mark email verified %w", err)
	}

	return &user, nil
}

// LinkProvider привязывает внешний провайдер к существующему аккаунту.
// Провайдер уже подтвердил email, поэтому аккаунт считается подтверждённым.
// Если аккаунт не был подтверждён, пароль и сессии задал тот, кто не доказал
// владение адресом: пароль сбрасывается, сессии удаляются в той же транзакции.
func (r *UserRepository) LinkProvider(ctx context.Context, id uuid.UUID, subject, picture *string) (*models.User, error) {
	var user models.User
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var verified bool
		err := tx.GetContext(ctx, &verified, `SELECT email_verified FROM users WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("user repository: link provider lock %w", err)
		}

		query := `
			UPDATE users
			SET email_verified = TRUE,
				password_hash = CASE WHEN email_verified THEN password_hash ELSE NULL END,
				provider_subject = COALESCE(provider_subject, $2),
				picture = COALESCE(picture, $3),
				updated_at = NOW()
			WHERE id = $1
			RETURNING ` + userColumns
		if err := tx.GetContext(ctx, &user, query, id, subject, picture); err != nil {
			return fmt.Errorf("user repository: link provider %w", err)
		}

		if !verified {
			if _, err := tx.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, id); err != nil {
				return fmt.Errorf("user repository: link provider drop sessions %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Delete удаляет пользователя вместе с сессиями (ON DELETE CASCADE).
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("user repository: delete %w", err)
	}

	return nil
}

// UpdateProfile обновляет публичные поля профиля.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $2, username = $3, bio = $4, picture = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, user.ID, user.Name, user.Username, user.Bio, user.Picture).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return mapUserWriteError("update profile", err)
	}

	return nil
}

// UpdateLastLoginAt обновляет время последнего входа пользователя.
func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("user repository: update last login at %w", err)
	}

	return nil
}

// CreateSession сохраняет новую сессию пользователя.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO user_sessions (user_id, token_hash, user_agent, ip_address, remember_me, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		session.UserID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.RememberMe,
		session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}

	return nil
}

// GetSessionByTokenHash ищет сессию по хешу токена. Срок действия не проверяет.
func (r *UserRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	var session models.Session
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE token_hash = $1`
	if err := r.db.GetContext(ctx, &session, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("user repository: get session %w", err)
	}

	return &session, nil
}

// DeleteSessionByTokenHash удаляет сессию (logout).
func (r *UserRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}

	return nil
}

// ListSessions возвращает список активных на момент now сессий пользователя.
func (r *UserRepository) ListSessions(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
	`

	sessions := []models.Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID, now); err != nil {
		return nil, fmt.Errorf("user repository: list sessions %w", err)
	}

	return sessions, nil
}

// DeleteSessionByID удаляет сессию по идентификатору.
func (r *UserRepository) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("user repository: delete session by id %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("user repository: delete session by id rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteAllSessionsExcept удаляет все сессии пользователя кроме указанной.
func (r *UserRepository) DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptSessionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1 AND id != $2`, userID, exceptSessionID)
	if err != nil {
		return fmt.Errorf("user repository: delete all sessions except %w", err)
	}

	return nil
}

func mapUserWriteError(op string, err error) error {
	if constraint, ok := common.IsUniqueViolation(err); ok {
		if strings.Contains(constraint, "username") {
			return ErrUsernameTaken
		}
		return ErrEmailTaken
	}
	return fmt.Errorf("user repository: %s %w", op, err)
}
