package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "app.vibeconnect.web"
	testIssuer   = "https://appleid.apple.com"
	testKid      = "test-kid"
)

func TestGoogleFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Session-ID") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":      "g-1",
			"email":   "User@Gmail.com",
			"name":    "User",
			"picture": "https://lh3.googleusercontent.com/a.png",
		})
	}))
	defer srv.Close()

	client := NewGoogleSessionClient(srv.URL, time.Second)

	profile, err := client.FetchProfile(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user@gmail.com", profile.Email)
	assert.Equal(t, "g-1", profile.ID)

	_, err = client.FetchProfile(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = client.FetchProfile(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestGoogleFetchProfileWithoutEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"g-1"}`))
	}))
	defer srv.Close()

	_, err := NewGoogleSessionClient(srv.URL, time.Second).FetchProfile(context.Background(), "sid")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestGoogleProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewGoogleSessionClient(url, time.Second).FetchProfile(context.Background(), "sid")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

type appleFixture struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	verifier *AppleVerifier
	fetches  *int32
}

func newAppleFixture(t *testing.T) *appleFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKid,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(srv.Close)

	verifier := NewAppleVerifier(AppleConfig{
		ClientID: testClientID,
		KeysURL:  srv.URL,
		Issuer:   testIssuer,
		Timeout:  time.Second,
	})

	return &appleFixture{key: key, server: srv, verifier: verifier, fetches: &fetches}
}

func (f *appleFixture) sign(t *testing.T, claims jwt.MapClaims, kid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":              testIssuer,
		"aud":              testClientID,
		"sub":              "001234.abcdef",
		"iat":              now.Unix(),
		"exp":              now.Add(10 * time.Minute).Unix(),
		"email":            "xyz123@privaterelay.appleid.com",
		"email_verified":   "true",
		"is_private_email": "true",
	}
}

func TestAppleVerifyValidToken(t *testing.T) {
	f := newAppleFixture(t)

	claims, err := f.verifier.Verify(context.Background(), f.sign(t, validClaims(), testKid))
	require.NoError(t, err)
	assert.Equal(t, "xyz123@privaterelay.appleid.com", claims.Email)
	assert.Equal(t, "001234.abcdef", claims.Subject)
	assert.True(t, claims.PrivateRelay())

	// второй вызов берёт ключи из кеша
	_, err = f.verifier.Verify(context.Background(), f.sign(t, validClaims(), testKid))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(f.fetches))
}

func TestAppleVerifyRejects(t *testing.T) {
	f := newAppleFixture(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	wrongAudience := validClaims()
	wrongAudience["aud"] = "someone.else"

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "https://evil.example.com"

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noEmail := validClaims()
	delete(noEmail, "email")

	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	forged.Header["kid"] = testKid
	forgedToken, err := forged.SignedString(otherKey)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":        "not-a-jwt",
		"wrong audience": f.sign(t, wrongAudience, testKid),
		"wrong issuer":   f.sign(t, wrongIssuer, testKid),
		"expired":        f.sign(t, expired, testKid),
		"no email":       f.sign(t, noEmail, testKid),
		"unknown kid":    f.sign(t, validClaims(), "rotated"),
		"forged":         forgedToken,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.verifier.Verify(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidIDToken)
		})
	}
}

func TestAppleVerifyUnknownKidRefetchIsThrottled(t *testing.T) {
	f := newAppleFixture(t)
	now := time.Now()
	f.verifier.now = func() time.Time { return now }

	_, err := f.verifier.Verify(context.Background(), f.sign(t, validClaims(), testKid))
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(f.fetches))

	for i := 0; i < 5; i++ {
		_, err = f.verifier.Verify(context.Background(), f.sign(t, validClaims(), "forged-kid"))
		assert.ErrorIs(t, err, ErrInvalidIDToken)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(f.fetches))

	// через минуту неизвестный kid снова может перечитать ключи
	now = now.Add(appleKeysMinRefetch + time.Second)
	_, err = f.verifier.Verify(context.Background(), f.sign(t, validClaims(), "forged-kid"))
	assert.ErrorIs(t, err, ErrInvalidIDToken)
	assert.Equal(t, int32(2), atomic.LoadInt32(f.fetches))

	// известный ключ по-прежнему работает без новых запросов
	_, err = f.verifier.Verify(context.Background(), f.sign(t, validClaims(), testKid))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(f.fetches))
}

func TestAppleVerifyRejectsHS256(t *testing.T) {
	f := newAppleFixture(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	token.Header["kid"] = testKid
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidIDToken)
}

func TestAppleVerifyWithoutClientID(t *testing.T) {
	v := NewAppleVerifier(AppleConfig{Issuer: testIssuer, KeysURL: "http://127.0.0.1:1"})
	_, err := v.Verify(context.Background(), "x.y.z")
	assert.ErrorIs(t, err, ErrInvalidIDToken)
}
