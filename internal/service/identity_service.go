package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/oauth"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
	"github.com/vibeconnect/social-backend/internal/repository"
	"github.com/vibeconnect/social-backend/internal/validation"
)

const appleDefaultName = "Apple User"

// GoogleProfileFetcher обмен session_id Google на профиль.
type GoogleProfileFetcher interface {
	FetchProfile(ctx context.Context, sessionID string) (*oauth.GoogleProfile, error)
}

// AppleTokenVerifier проверка Apple id_token.
type AppleTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*oauth.AppleClaims, error)
}

// AppleCallbackInput поля формы, которую Apple присылает на redirect_uri.
type AppleCallbackInput struct {
	IDToken string
	Code    string
	User    string
	State   string
}

// IdentityService сводит вход через Google и Apple к одному аккаунту по email.
type IdentityService struct {
	users    UserRepository
	sessions *SessionManager
	google   GoogleProfileFetcher
	apple    AppleTokenVerifier
	notifier Notifier
}

// NewIdentityService создаёт сервис внешних провайдеров.
func NewIdentityService(
	users UserRepository,
	sessions *SessionManager,
	google GoogleProfileFetcher,
	apple AppleTokenVerifier,
	notifier Notifier,
) *IdentityService {
	return &IdentityService{
		users:    users,
		sessions: sessions,
		google:   google,
		apple:    apple,
		notifier: notifier,
	}
}

// GoogleLogin обменивает session_id на профиль и открывает сессию.
func (s *IdentityService) GoogleLogin(ctx context.Context, sessionID string, meta map[string]string) (*AuthResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperror.ErrInvalidSession
	}

	profile, err := s.google.FetchProfile(ctx, sessionID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInvalidSession, apperror.ErrInvalidSession.Message)
	}
	if validation.ValidateEmail(profile.Email) != nil {
		return nil, apperror.ErrInvalidSession
	}

	user, err := s.findOrCreate(ctx, externalIdentity{
		provider: models.ProviderGoogle,
		subject:  profile.ID,
		email:    profile.Email,
		name:     profile.Name,
		picture:  profile.Picture,
	})
	if err != nil {
		return nil, err
	}
	return s.open(ctx, user, meta)
}

// AppleLogin проверяет id_token из формы callback и открывает сессию.
func (s *IdentityService) AppleLogin(ctx context.Context, in AppleCallbackInput, meta map[string]string) (*AuthResult, error) {
	if strings.TrimSpace(in.IDToken) == "" {
		return nil, apperror.ErrMissingIDToken
	}

	claims, err := s.apple.Verify(ctx, strings.TrimSpace(in.IDToken))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInvalidIDToken, apperror.ErrInvalidIDToken.Message)
	}
	if validation.ValidateEmail(claims.Email) != nil {
		return nil, apperror.ErrInvalidIDToken
	}

	// Адрес private relay случайный, имя из него не выводим.
	name := appleUserName(in.User)
	if name == "" && claims.PrivateRelay() {
		name = appleDefaultName
	}

	user, err := s.findOrCreate(ctx, externalIdentity{
		provider: models.ProviderApple,
		subject:  claims.Subject,
		email:    claims.Email,
		name:     name,
	})
	if err != nil {
		return nil, err
	}
	return s.open(ctx, user, meta)
}

type externalIdentity struct {
	provider string
	subject  string
	email    string
	name     string
	picture  string
}

// findOrCreate ищет аккаунт по email. Существующий аккаунт привязывается
// к провайдеру и считается подтверждённым, новый создаётся без пароля.
// У неподтверждённого аккаунта при привязке пропадают пароль и сессии.
func (s *IdentityService) findOrCreate(ctx context.Context, id externalIdentity) (*models.User, error) {
	email := validation.NormalizeEmail(id.email)

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return s.link(ctx, user, id)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("identity service: lookup: %w", err)
	}

	name := strings.TrimSpace(id.name)
	if name == "" || validation.ValidateName(name) != nil {
		name = deriveName(email)
	}
	user = &models.User{
		Email:           email,
		Name:            name,
		EmailVerified:   true,
		AuthProvider:    id.provider,
		ProviderSubject: optional(id.subject),
		Picture:         optional(pictureOrEmpty(id.picture)),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			existing, lookupErr := s.users.GetByEmail(ctx, email)
			if lookupErr != nil {
				return nil, fmt.Errorf("identity service: lookup after race: %w", lookupErr)
			}
			return s.link(ctx, existing, id)
		}
		return nil, fmt.Errorf("identity service: create: %w", err)
	}
	return user, nil
}

func (s *IdentityService) link(ctx context.Context, user *models.User, id externalIdentity) (*models.User, error) {
	if user.EmailVerified && user.ProviderSubject != nil && (user.Picture != nil || id.picture == "") {
		return user, nil
	}
	linked, err := s.users.LinkProvider(ctx, user.ID, optional(id.subject), optional(pictureOrEmpty(id.picture)))
	if err != nil {
		return nil, fmt.Errorf("identity service: link provider: %w", err)
	}
	return linked, nil
}

func (s *IdentityService) open(ctx context.Context, user *models.User, meta map[string]string) (*AuthResult, error) {
	token, session, err := s.sessions.Issue(ctx, user.ID, false, meta)
	if err != nil {
		return nil, err
	}
	s.notifier.SecurityEvent(user.ID, EventSessionCreated, map[string]any{
		"session_id":    session.ID,
		"auth_provider": user.AuthProvider,
		"expires_at":    session.ExpiresAt,
	})
	return &AuthResult{User: user, Session: session, SessionToken: token, TTL: s.sessions.TTL(false)}, nil
}

// appleUserName достаёт имя из JSON поля user. Apple присылает его только при первом входе.
func appleUserName(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	var payload struct {
		Name struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		} `json:"name"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Name.FirstName + " " + payload.Name.LastName)
}

func pictureOrEmpty(picture string) string {
	picture = strings.TrimSpace(picture)
	if picture == "" || validation.ValidatePictureURL(picture) != nil {
		return ""
	}
	return picture
}
