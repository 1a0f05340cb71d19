package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibeconnect/social-backend/internal/oauth"
)

// recordingNotifier запоминает запрошенные уведомления вместо отправки.
type recordingNotifier struct {
	mu       sync.Mutex
	codes    map[string]string
	resets   map[string]string
	welcomed []string
	events   []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: make(map[string]string), resets: make(map[string]string)}
}

func (n *recordingNotifier) VerificationCode(email, name, code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = code
}

func (n *recordingNotifier) Welcome(email, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomed = append(n.welcomed, email)
}

func (n *recordingNotifier) PasswordReset(email, name, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets[email] = token
}

func (n *recordingNotifier) SecurityEvent(userID uuid.UUID, event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets[email]
}

func (n *recordingNotifier) hasEvent(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeGoogle struct {
	profiles map[string]*oauth.GoogleProfile
}

func (g *fakeGoogle) FetchProfile(ctx context.Context, sessionID string) (*oauth.GoogleProfile, error) {
	if p, ok := g.profiles[sessionID]; ok {
		return p, nil
	}
	return nil, oauth.ErrInvalidSession
}

type fakeApple struct {
	tokens map[string]*oauth.AppleClaims
}

func (a *fakeApple) Verify(ctx context.Context, idToken string) (*oauth.AppleClaims, error) {
	if c, ok := a.tokens[idToken]; ok {
		return c, nil
	}
	return nil, oauth.ErrInvalidIDToken
}
