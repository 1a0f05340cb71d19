package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Ключи Apple меняются редко, держим их сутки.
	appleKeysTTL = 24 * time.Hour
	// Не чаще одного похода за ключами в минуту, что бы ни пришло в kid.
	appleKeysMinRefetch = time.Minute
)

// AppleConfig параметры Sign in with Apple.
type AppleConfig struct {
	ClientID    string
	RedirectURI string
	KeysURL     string
	Issuer      string
	Timeout     time.Duration
}

// AppleClaims клеймы id_token. Apple присылает email_verified
// и is_private_email то строкой, то булевым значением.
type AppleClaims struct {
	Email          string `json:"email"`
	EmailVerified  any    `json:"email_verified,omitempty"`
	IsPrivateEmail any    `json:"is_private_email,omitempty"`
	jwt.RegisteredClaims
}

// PrivateRelay сообщает, что email скрыт через Apple private relay.
func (c *AppleClaims) PrivateRelay() bool {
	return truthy(c.IsPrivateEmail) || strings.HasSuffix(c.Email, "@privaterelay.appleid.com")
}

// AppleVerifier проверяет id_token по публичным ключам Apple (JWKS).
type AppleVerifier struct {
	cfg        AppleConfig
	httpClient *http.Client
	now        func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastRefetch time.Time
}

// NewAppleVerifier создаёт верификатор. Ключи загружаются при первой проверке.
func NewAppleVerifier(cfg AppleConfig) *AppleVerifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &AppleVerifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// Config возвращает параметры для построения ссылки авторизации на клиенте.
func (v *AppleVerifier) Config() AppleConfig {
	return v.cfg
}

// Verify проверяет подпись RS256, issuer, audience и срок действия.
func (v *AppleVerifier) Verify(ctx context.Context, idToken string) (*AppleClaims, error) {
	if v.cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: apple client id is not configured", ErrInvalidIDToken)
	}

	claims := &AppleClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	token, err := parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidIDToken
	}

	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token has no email", ErrInvalidIDToken)
	}
	return claims, nil
}

// key ищет ключ в кеше; неизвестный kid означает ротацию, тогда ключи перечитываются.
func (v *AppleVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := v.now().Sub(v.fetchedAt) < appleKeysTTL
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if !v.claimRefetch() {
		if ok {
			return key, nil
		}
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}

// claimRefetch занимает слот обновления ключей, если прошлое было больше минуты назад.
func (v *AppleVerifier) claimRefetch() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if !v.lastRefetch.IsZero() && now.Sub(v.lastRefetch) < appleKeysMinRefetch {
		return false
	}
	v.lastRefetch = now
	return true
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *AppleVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.KeysURL, nil)
	if err != nil {
		return fmt.Errorf("build keys request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch apple keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch apple keys: status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		return fmt.Errorf("decode apple keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaKeyFromJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("apple keys response has no usable RSA keys")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = v.now()
	v.mu.Unlock()
	return nil
}

func rsaKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 1 {
		return nil, errors.New("bad exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	default:
		return false
	}
}
