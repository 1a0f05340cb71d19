package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vibeconnect/social-backend/internal/models"
	"github.com/vibeconnect/social-backend/internal/pkg/apperror"
	"github.com/vibeconnect/social-backend/internal/repository"
	"github.com/vibeconnect/social-backend/internal/repository/repotest"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

type testEnv struct {
	clock    *fakeClock
	users    *repotest.Users
	codes    *repotest.Codes
	resets   *repotest.Resets
	notifier *recordingNotifier
	hasher   *PasswordHasher
	sessions *SessionManager
	auth     *AuthService
	reset    *PasswordResetService
}

func newTestEnv(t *testing.T, cfg AuthConfig) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:    newFakeClock(),
		users:    repotest.NewUsers(),
		codes:    repotest.NewCodes(),
		notifier: newRecordingNotifier(),
		hasher:   NewPasswordHasher(bcrypt.MinCost),
	}
	env.resets = repotest.NewResets(env.users)

	tokens := NewTokenGenerator()
	env.sessions = NewSessionManager(env.users, tokens, SessionConfig{
		TTL:           7 * 24 * time.Hour,
		RememberMeTTL: 30 * 24 * time.Hour,
		Now:           env.clock.Now,
	})
	cfg.Now = env.clock.Now
	env.auth = NewAuthService(env.users, env.codes, env.sessions, env.hasher, tokens, env.notifier, cfg)
	env.reset = NewPasswordResetService(env.users, env.resets, env.hasher, tokens, env.notifier, PasswordResetConfig{
		TokenTTL: time.Hour,
		Now:      env.clock.Now,
	})
	return env
}

func (e *testEnv) signup(t *testing.T, email, password string) *SignupResult {
	t.Helper()
	res, err := e.auth.Signup(context.Background(), SignupInput{Email: email, Password: password, Name: "A"}, nil)
	require.NoError(t, err)
	return res
}

func TestAuthService_SignupVerifyLogin(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()

	res := env.signup(t, "a@x.com", "Passw0rd!")
	assert.Regexp(t, sixDigits, res.Code)
	assert.False(t, res.User.EmailVerified)
	assert.NotEmpty(t, res.SessionToken)
	assert.Equal(t, res.Code, env.notifier.codes["a@x.com"])

	// сессия после регистрации действует сразу
	session, err := env.auth.Authenticate(ctx, res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, session.UserID)

	verified, err := env.auth.VerifyEmail(ctx, "a@x.com", res.Code, nil)
	require.NoError(t, err)
	assert.True(t, verified.User.EmailVerified)
	assert.NotEqual(t, res.SessionToken, verified.SessionToken)
	assert.True(t, env.notifier.hasEvent(EventEmailVerified))

	_, err = env.auth.VerifyEmail(ctx, "a@x.com", res.Code, nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidCode)

	login, err := env.auth.Login(ctx, LoginInput{Email: "A@X.com", Password: "Passw0rd!"}, map[string]string{
		"user_agent": "test-agent",
		"ip":         "10.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", login.User.Email)
	require.NotNil(t, login.Session.UserAgent)
	assert.Equal(t, "test-agent", *login.Session.UserAgent)
	assert.True(t, env.notifier.hasEvent(EventSessionCreated))

	session, err = env.auth.Authenticate(ctx, login.SessionToken)
	require.NoError(t, err)
	me, err := env.auth.Me(ctx, session.UserID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", me.Email)
	assert.True(t, me.EmailVerified)
}

func TestAuthService_SignupWeakPassword(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})

	_, err := env.auth.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "short", Name: "A"}, nil)
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, apperror.ErrCodeWeakPassword, appErr.Code)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Contains(t, appErr.Message, "8 characters")
}

func TestAuthService_SignupTooLongPassword(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})

	_, err := env.auth.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: strings.Repeat("p", 73), Name: "A"}, nil)
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Contains(t, appErr.Message, "72 bytes")
	assert.NotContains(t, appErr.Message, "8 characters")
}

// codesDown хранилище кодов, в которое нельзя записать.
type codesDown struct {
	*repotest.Codes
	fail bool
}

func (c *codesDown) UpsertCode(ctx context.Context, pv *models.PendingVerification) error {
	if c.fail {
		return errors.New("db down")
	}
	return c.Codes.UpsertCode(ctx, pv)
}

func TestAuthService_SignupRollsBackOnCodeFailure(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()
	codes := &codesDown{Codes: env.codes, fail: true}
	env.auth = NewAuthService(env.users, codes, env.sessions, env.hasher, NewTokenGenerator(), env.notifier, AuthConfig{Now: env.clock.Now})

	_, err := env.auth.Signup(ctx, SignupInput{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}, nil)
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeInternal, apperror.From(err).Code)

	_, err = env.users.GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.Empty(t, env.notifier.codes["a@x.com"])

	// после восстановления хранилища та же регистрация проходит
	codes.fail = false
	res, err := env.auth.Signup(ctx, SignupInput{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Code, env.notifier.codes["a@x.com"])
}

func TestAuthService_SignupDuplicate(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()

	res := env.signup(t, "dup@x.com", "Passw0rd!")

	_, err := env.auth.Signup(ctx, SignupInput{Email: "DUP@x.com", Password: "Another1!", Name: "B"}, nil)
	assert.ErrorIs(t, err, apperror.ErrDuplicateAccount)

	_, err = env.auth.VerifyEmail(ctx, "dup@x.com", res.Code, nil)
	require.NoError(t, err)

	_, err = env.auth.Signup(ctx, SignupInput{Email: "dup@x.com", Password: "Another1!", Name: "B"}, nil)
	assert.ErrorIs(t, err, apperror.ErrDuplicateAccount)
}

func TestAuthService_SignupInvalidEmail(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})

	_, err := env.auth.Signup(context.Background(), SignupInput{Email: "not-an-email", Password: "Passw0rd!"}, nil)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeValidation))
}

func TestAuthService_SignupDerivesName(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})

	res, err := env.auth.Signup(context.Background(), SignupInput{Email: "jane.doe@x.com", Password: "Passw0rd!"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", res.User.Name)
}

func TestAuthService_VerificationCodeExpires(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	res := env.signup(t, "a@x.com", "Passw0rd!")

	env.clock.Advance(10*time.Minute + time.Second)

	_, err := env.auth.VerifyEmail(context.Background(), "a@x.com", res.Code, nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidCode)
}

func TestAuthService_VerifyWrongCode(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	res := env.signup(t, "a@x.com", "Passw0rd!")

	wrong := "100000"
	if res.Code == wrong {
		wrong = "100001"
	}
	_, err := env.auth.VerifyEmail(context.Background(), "a@x.com", wrong, nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidCode)

	// неверная попытка не сжигает правильный код
	_, err = env.auth.VerifyEmail(context.Background(), "a@x.com", res.Code, nil)
	assert.NoError(t, err)
}

func TestAuthService_ResendVerification(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()
	res := env.signup(t, "a@x.com", "Passw0rd!")

	var next string
	var err error
	// коды случайные, повторяем пока новый не отличается от старого
	for i := 0; i < 5; i++ {
		next, err = env.auth.ResendVerification(ctx, "a@x.com")
		require.NoError(t, err)
		if next != res.Code {
			break
		}
	}
	require.NotEqual(t, res.Code, next)
	assert.Regexp(t, sixDigits, next)

	_, err = env.auth.VerifyEmail(ctx, "a@x.com", res.Code, nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidCode)

	_, err = env.auth.VerifyEmail(ctx, "a@x.com", next, nil)
	require.NoError(t, err)

	_, err = env.auth.ResendVerification(ctx, "a@x.com")
	assert.ErrorIs(t, err, apperror.ErrAlreadyVerified)

	_, err = env.auth.ResendVerification(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, apperror.ErrAccountNotFound)
	assert.Equal(t, 404, apperror.From(err).HTTPStatus)
}

func TestAuthService_LoginFailures(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()
	env.signup(t, "a@x.com", "Passw0rd!")

	oauthOnly := &models.User{Email: "g@x.com", Name: "G", EmailVerified: true, AuthProvider: models.ProviderGoogle}
	require.NoError(t, env.users.Create(ctx, oauthOnly))

	cases := map[string]LoginInput{
		"wrong password": {Email: "a@x.com", Password: "wrong-password"},
		"unknown email":  {Email: "nobody@x.com", Password: "Passw0rd!"},
		"oauth only":     {Email: "g@x.com", Password: "Passw0rd!"},
		"empty":          {},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.auth.Login(ctx, in, nil)
			assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
			assert.Equal(t, 401, apperror.From(err).HTTPStatus)
		})
	}
}

func TestAuthService_LoginSessionTTL(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()
	env.signup(t, "a@x.com", "Passw0rd!")
	now := env.clock.Now()

	remembered, err := env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Passw0rd!", RememberMe: true}, nil)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(30*24*time.Hour), remembered.Session.ExpiresAt, time.Minute)
	assert.True(t, remembered.Session.RememberMe)

	regular, err := env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Passw0rd!"}, nil)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(7*24*time.Hour), regular.Session.ExpiresAt, time.Minute)

	// через 8 дней обычная сессия истекла, а remember me ещё действует
	env.clock.Advance(8 * 24 * time.Hour)
	_, err = env.auth.Authenticate(ctx, regular.SessionToken)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	_, err = env.auth.Authenticate(ctx, remembered.SessionToken)
	assert.NoError(t, err)
}

func TestAuthService_RequireVerifiedLogin(t *testing.T) {
	env := newTestEnv(t, AuthConfig{RequireVerifiedLogin: true})
	ctx := context.Background()
	res := env.signup(t, "a@x.com", "Passw0rd!")

	_, err := env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Passw0rd!"}, nil)
	assert.ErrorIs(t, err, apperror.ErrEmailNotVerified)

	_, err = env.auth.VerifyEmail(ctx, "a@x.com", res.Code, nil)
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Passw0rd!"}, nil)
	assert.NoError(t, err)
}

func TestAuthService_AuthenticateRejects(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()

	_, err := env.auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	_, err = env.auth.Authenticate(ctx, "session_unknown")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestAuthService_LogoutAndSessions(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()
	env.signup(t, "a@x.com", "Passw0rd!")

	first, err := env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Passw0rd!"}, nil)
	require.NoError(t, err)
	second, err := env.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Passw0rd!"}, nil)
	require.NoError(t, err)

	sessions, err := env.auth.ListSessions(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 3) // регистрация + два входа

	require.NoError(t, env.auth.DeleteSession(ctx, first.User.ID, first.Session.ID))
	_, err = env.auth.Authenticate(ctx, first.SessionToken)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	err = env.auth.DeleteSession(ctx, first.User.ID, first.Session.ID)
	assert.ErrorIs(t, err, apperror.ErrSessionNotFound)

	require.NoError(t, env.auth.DeleteOtherSessions(ctx, second.User.ID, second.Session.ID))
	sessions, err = env.auth.ListSessions(ctx, second.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, second.Session.ID, sessions[0].ID)

	require.NoError(t, env.auth.Logout(ctx, second.SessionToken))
	_, err = env.auth.Authenticate(ctx, second.SessionToken)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})
	ctx := context.Background()
	a := env.signup(t, "a@x.com", "Passw0rd!")
	b := env.signup(t, "b@x.com", "Passw0rd!")

	name, username, bio, picture := "Alice", "alice", "hello", "https://cdn.example.com/a.png"
	user, err := env.auth.UpdateProfile(ctx, a.User.ID, ProfileInput{
		Name: &name, Username: &username, Bio: &bio, Picture: &picture,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	require.NotNil(t, user.Username)
	assert.Equal(t, "alice", *user.Username)

	_, err = env.auth.UpdateProfile(ctx, b.User.ID, ProfileInput{Username: &username})
	assert.ErrorIs(t, err, apperror.ErrUsernameTaken)

	bad := "ftp://files"
	_, err = env.auth.UpdateProfile(ctx, b.User.ID, ProfileInput{Picture: &bad})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeValidation))
}
