package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vibeconnect/social-backend/internal/logger"
	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
	"github.com/vibeconnect/social-backend/internal/repository"
	"github.com/vibeconnect/social-backend/internal/validation"
)

// UserRepository описывает зависимости сервисов от таблицы users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) (*models.User, error)
	LinkProvider(ctx context.Context, id uuid.UUID, subject, picture *string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// VerificationRepository хранилище кодов подтверждения email.
type VerificationRepository interface {
	UpsertCode(ctx context.Context, pv *models.PendingVerification) error
	ConsumeCode(ctx context.Context, email, code string, now time.Time) (*models.PendingVerification, error)
}

// AuthConfig политика регистрации и входа.
type AuthConfig struct {
	VerificationCodeTTL  time.Duration
	RequireVerifiedLogin bool
	Now                  func() time.Time
}

// AuthService регистрация, подтверждение email, вход и профиль.
type AuthService struct {
	users    UserRepository
	codes    VerificationRepository
	sessions *SessionManager
	hasher   *PasswordHasher
	tokens   *TokenGenerator
	notifier Notifier
	cfg      AuthConfig
}

// AuthResult аккаунт и выданная ему сессия. TTL срок жизни сессии для cookie.
type AuthResult struct {
	User         *models.User
	Session      *models.Session
	SessionToken string
	TTL          time.Duration
}

// SignupInput данные регистрации.
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// SignupResult итог регистрации. Code отдаётся наружу только в режиме разработки.
type SignupResult struct {
	AuthResult
	Code string
}

// LoginInput данные для входа.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
}

// ProfileInput изменяемые поля профиля. nil означает «не менять».
type ProfileInput struct {
	Name     *string
	Username *string
	Bio      *string
	Picture  *string
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(
	users UserRepository,
	codes VerificationRepository,
	sessions *SessionManager,
	hasher *PasswordHasher,
	tokens *TokenGenerator,
	notifier Notifier,
	cfg AuthConfig,
) *AuthService {
	if cfg.VerificationCodeTTL <= 0 {
		cfg.VerificationCodeTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthService{
		users:    users,
		codes:    codes,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Signup создаёт неподтверждённый аккаунт, выдаёт код подтверждения
// и сразу открывает сессию.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, meta map[string]string) (*SignupResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, passwordError(err)
	}

	email := validation.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = deriveName(email)
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.ErrDuplicateAccount
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("auth service: signup lookup: %w", err)
	}

	passHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	user := &models.User{
		Email:         email,
		Name:          name,
		PasswordHash:  &passHash,
		EmailVerified: false,
		AuthProvider:  models.ProviderEmail,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Проигравший в гонке двух регистраций упирается в уникальный индекс.
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}

	// Сбой после создания аккаунта откатывает регистрацию целиком.
	code, err := s.storeCode(ctx, user)
	if err != nil {
		s.rollbackSignup(user, err)
		return nil, err
	}

	token, session, err := s.sessions.Issue(ctx, user.ID, false, meta)
	if err != nil {
		s.rollbackSignup(user, err)
		return nil, err
	}

	s.notifier.VerificationCode(user.Email, user.Name, code)

	return &SignupResult{
		AuthResult: AuthResult{User: user, Session: session, SessionToken: token, TTL: s.sessions.TTL(false)},
		Code:       code,
	}, nil
}

// VerifyEmail погашает код и активирует аккаунт. Код одноразовый:
// повторная попытка с тем же кодом даёт ErrInvalidCode.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string, meta map[string]string) (*AuthResult, error) {
	email = validation.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperror.ErrInvalidCode
	}

	if _, err := s.codes.ConsumeCode(ctx, email, code, s.cfg.Now()); err != nil {
		if errors.Is(err, repository.ErrVerificationCodeNotFound) {
			return nil, apperror.ErrInvalidCode
		}
		return nil, fmt.Errorf("auth service: consume code: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrAccountNotFound
		}
		return nil, fmt.Errorf("auth service: verify lookup: %w", err)
	}

	user, err = s.users.MarkEmailVerified(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth service: mark verified: %w", err)
	}

	token, session, err := s.sessions.Issue(ctx, user.ID, false, meta)
	if err != nil {
		return nil, err
	}

	s.notifier.Welcome(user.Email, user.Name)
	s.notifier.SecurityEvent(user.ID, EventEmailVerified, map[string]any{"email": user.Email})

	return &AuthResult{User: user, Session: session, SessionToken: token, TTL: s.sessions.TTL(false)}, nil
}

// ResendVerification выдаёт новый код, прежний перестаёт действовать.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (string, error) {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return "", apperror.Validation("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperror.ErrAccountNotFound
		}
		return "", fmt.Errorf("auth service: resend lookup: %w", err)
	}
	if user.EmailVerified {
		return "", apperror.ErrAlreadyVerified
	}

	return s.issueCode(ctx, user)
}

// Login проверяет пароль и открывает сессию на 7 или 30 дней (remember me).
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperror.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyDummy(in.Password)
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth service: login lookup: %w", err)
	}

	// Аккаунт только через OAuth: пароля нет, ответ тот же, что и на неверный пароль.
	if !user.HasPassword() {
		s.hasher.VerifyDummy(in.Password)
		return nil, apperror.ErrInvalidCredentials
	}
	if !s.hasher.Verify(in.Password, *user.PasswordHash) {
		return nil, apperror.ErrInvalidCredentials
	}

	if s.cfg.RequireVerifiedLogin && !user.EmailVerified {
		return nil, apperror.ErrEmailNotVerified
	}

	token, session, err := s.sessions.Issue(ctx, user.ID, in.RememberMe, meta)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLoginAt(ctx, user.ID); err != nil {
		logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("failed to update last login")
	}

	s.notifier.SecurityEvent(user.ID, EventSessionCreated, map[string]any{
		"session_id": session.ID,
		"user_agent": session.UserAgent,
		"ip_address": session.IPAddress,
		"expires_at": session.ExpiresAt,
	})

	return &AuthResult{User: user, Session: session, SessionToken: token, TTL: s.sessions.TTL(in.RememberMe)}, nil
}

// Authenticate возвращает сессию по токену для middleware.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	return s.sessions.Authenticate(ctx, token)
}

// Me возвращает аккаунт текущего пользователя.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrAccountNotFound
		}
		return nil, fmt.Errorf("auth service: me: %w", err)
	}
	return user, nil
}

// Logout закрывает сессию, которой подписан запрос.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("auth service: logout: %w", err)
	}
	return nil
}

// ListSessions действующие сессии пользователя.
func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	return s.sessions.List(ctx, userID)
}

// DeleteSession закрывает одну из сессий пользователя.
func (s *AuthService) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := s.sessions.Delete(ctx, userID, sessionID); err != nil {
		return err
	}
	s.notifier.SecurityEvent(userID, EventSessionRevoked, map[string]any{"session_id": sessionID})
	return nil
}

// DeleteOtherSessions закрывает все сессии, кроме текущей.
func (s *AuthService) DeleteOtherSessions(ctx context.Context, userID, currentSessionID uuid.UUID) error {
	if err := s.sessions.DeleteOthers(ctx, userID, currentSessionID); err != nil {
		return fmt.Errorf("auth service: delete other sessions: %w", err)
	}
	return nil
}

// UpdateProfile меняет имя, username, bio и аватар.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*models.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validation.ValidateName(name); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		user.Name = name
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			user.Username = nil
		} else {
			if err := validation.ValidateUsername(username); err != nil {
				return nil, apperror.Validation(err.Error())
			}
			user.Username = &username
		}
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if err := validation.ValidateBio(bio); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		user.Bio = optional(bio)
	}
	if in.Picture != nil {
		picture := strings.TrimSpace(*in.Picture)
		if picture != "" {
			if err := validation.ValidatePictureURL(picture); err != nil {
				return nil, apperror.Validation(err.Error())
			}
		}
		user.Picture = optional(picture)
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, apperror.ErrUsernameTaken
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrAccountNotFound
		}
		return nil, fmt.Errorf("auth service: update profile: %w", err)
	}
	return user, nil
}

// issueCode сохраняет новый код (последний выданный вытесняет прежний) и отправляет письмо.
func (s *AuthService) issueCode(ctx context.Context, user *models.User) (string, error) {
	code, err := s.storeCode(ctx, user)
	if err != nil {
		return "", err
	}

	s.notifier.VerificationCode(user.Email, user.Name, code)
	return code, nil
}

func (s *AuthService) storeCode(ctx context.Context, user *models.User) (string, error) {
	code, err := s.tokens.VerificationCode()
	if err != nil {
		return "", err
	}

	now := s.cfg.Now()
	pv := &models.PendingVerification{
		Email:     user.Email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.VerificationCodeTTL),
	}
	if err := s.codes.UpsertCode(ctx, pv); err != nil {
		return "", fmt.Errorf("auth service: store code: %w", err)
	}
	return code, nil
}

// rollbackSignup удаляет только что созданный аккаунт после сбоя регистрации.
func (s *AuthService) rollbackSignup(user *models.User, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.users.Delete(ctx, user.ID); err != nil {
		logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"cause":   cause.Error(),
			"error":   err.Error(),
		}).Error("failed to roll back signup")
	}
}

// passwordError переводит ошибку проверки пароля в ответ клиенту.
func passwordError(err error) error {
	if validation.IsPasswordTooLong(err) {
		return apperror.Validation(err.Error())
	}
	return apperror.Wrap(err, apperror.ErrCodeWeakPassword, apperror.ErrWeakPassword.Message)
}

// deriveName берёт имя из локальной части email, если пользователь его не указал.
func deriveName(email string) string {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "user"
	}
	return parts[0]
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
