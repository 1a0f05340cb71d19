// Package oauth содержит клиентов внешних провайдеров входа:
// обмен Google session_id на профиль и проверку Apple id_token.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidSession провайдер не признал session_id.
	ErrInvalidSession = errors.New("oauth: invalid session")
	// ErrInvalidIDToken подпись или клеймы id_token не прошли проверку.
	ErrInvalidIDToken = errors.New("oauth: invalid id_token")
)

// GoogleProfile профиль, который отдаёт сервис сессий Google OAuth.
type GoogleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleSessionClient обменивает session_id на проверенный профиль пользователя.
type GoogleSessionClient struct {
	sessionURL string
	httpClient *http.Client
}

// NewGoogleSessionClient создаёт клиента с таймаутом на один запрос.
func NewGoogleSessionClient(sessionURL string, timeout time.Duration) *GoogleSessionClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleSessionClient{
		sessionURL: sessionURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchProfile запрашивает профиль по session_id. Любой отказ провайдера,
// включая сетевую ошибку, возвращается как ErrInvalidSession.
func (c *GoogleSessionClient) FetchProfile(ctx context.Context, sessionID string) (*GoogleProfile, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth: build google session request: %w", err)
	}
	req.Header.Set("X-Session-ID", sessionID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: provider status %d", ErrInvalidSession, resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", ErrInvalidSession, err)
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	if profile.Email == "" {
		return nil, fmt.Errorf("%w: profile has no email", ErrInvalidSession)
	}

	return &profile, nil
}
