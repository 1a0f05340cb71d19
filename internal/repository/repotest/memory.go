// Package repotest содержит хранилища в памяти с поведением sqlx-репозиториев.
// Используется в тестах сервисов и HTTP-обработчиков.
package repotest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/repository"
)

// Users хранит пользователей и сессии в памяти, повторяя поведение
// repository.UserRepository: email без учёта регистра, уникальность email и username.
type Users struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	sessions map[string]*models.Session
}

// NewUsers создаёт пустое хранилище.
func NewUsers() *Users {
	return &Users{
		users:    make(map[uuid.UUID]*models.User),
		sessions: make(map[string]*models.Session),
	}
}

func (m *Users) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.AuthProvider == "" {
		user.AuthProvider = models.ProviderEmail
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *Users) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *Users) MarkEmailVerified(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.EmailVerified = true
	copied := *u
	return &copied, nil
}

func (m *Users) LinkProvider(ctx context.Context, id uuid.UUID, subject, picture *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if !u.EmailVerified {
		u.PasswordHash = nil
		for hash, s := range m.sessions {
			if s.UserID == id {
				delete(m.sessions, hash)
			}
		}
	}
	u.EmailVerified = true
	if u.ProviderSubject == nil {
		u.ProviderSubject = subject
	}
	if u.Picture == nil {
		u.Picture = picture
	}
	copied := *u
	return &copied, nil
}

func (m *Users) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users, id)
	for hash, s := range m.sessions {
		if s.UserID == id {
			delete(m.sessions, hash)
		}
	}
	return nil
}

func (m *Users) UpdateProfile(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if user.Username != nil {
		for id, other := range m.users {
			if id != user.ID && other.Username != nil && strings.EqualFold(*other.Username, *user.Username) {
				return repository.ErrUsernameTaken
			}
		}
	}
	u.Name, u.Username, u.Bio, u.Picture = user.Name, user.Username, user.Bio, user.Picture
	return nil
}

func (m *Users) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[userID]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

// SetPassword меняет хеш пароля по email.
func (m *Users) SetPassword(email, hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			u.PasswordHash = &hash
			return true
		}
	}
	return false
}

func (m *Users) CreateSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	stored := *session
	m.sessions[session.TokenHash] = &stored
	return nil
}

func (m *Users) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[tokenHash]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, repository.ErrSessionNotFound
}

func (m *Users) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, tokenHash)
	return nil
}

func (m *Users) ListSessions(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := []models.Session{}
	for _, s := range m.sessions {
		if s.UserID == userID && now.Before(s.ExpiresAt) {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

func (m *Users) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, s := range m.sessions {
		if s.ID == sessionID && s.UserID == userID {
			delete(m.sessions, hash)
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (m *Users) DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptSessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, s := range m.sessions {
		if s.UserID == userID && s.ID != exceptSessionID {
			delete(m.sessions, hash)
		}
	}
	return nil
}

// Codes повторяет семантику UPSERT и DELETE ... RETURNING
// из repository.VerificationRepository.
type Codes struct {
	mu    sync.Mutex
	codes map[string]models.PendingVerification
}

// NewCodes создаёт пустое хранилище кодов.
func NewCodes() *Codes {
	return &Codes{codes: make(map[string]models.PendingVerification)}
}

func (m *Codes) UpsertCode(ctx context.Context, pv *models.PendingVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pv.Email = strings.ToLower(strings.TrimSpace(pv.Email))
	m.codes[pv.Email] = *pv
	return nil
}

func (m *Codes) ConsumeCode(ctx context.Context, email, code string, now time.Time) (*models.PendingVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	pv, ok := m.codes[email]
	if !ok || pv.Code != code || !now.Before(pv.ExpiresAt) {
		return nil, repository.ErrVerificationCodeNotFound
	}
	delete(m.codes, email)
	return &pv, nil
}

// Resets повторяет repository.PasswordResetRepository: прежние токены
// вытесняются, погашение удаляет токен и меняет пароль через Users.
type Resets struct {
	mu     sync.Mutex
	users  *Users
	tokens map[string]models.PasswordResetToken
}

// NewResets создаёт хранилище токенов, меняющее пароли в users.
func NewResets(users *Users) *Resets {
	return &Resets{users: users, tokens: make(map[string]models.PasswordResetToken)}
}

func (m *Resets) ReplaceToken(ctx context.Context, token *models.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, t := range m.tokens {
		if t.Email == token.Email {
			delete(m.tokens, hash)
		}
	}
	m.tokens[token.TokenHash] = *token
	return nil
}

func (m *Resets) RedeemToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[tokenHash]
	if !ok {
		return nil, repository.ErrResetTokenNotFound
	}
	delete(m.tokens, tokenHash)
	if token.Expired(now) {
		return nil, repository.ErrResetTokenNotFound
	}
	if !m.users.SetPassword(token.Email, passwordHash) {
		return nil, repository.ErrUserNotFound
	}
	return &token, nil
}

// Count число живых токенов.
func (m *Resets) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}
