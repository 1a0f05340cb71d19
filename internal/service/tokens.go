package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
)

// SessionTokenPrefix отличает токены сессий от прочих строк в логах и заголовках.
const SessionTokenPrefix = "session_"

const tokenBytes = 32

// TokenGenerator выдаёт коды подтверждения и непрозрачные токены из crypto/rand.
type TokenGenerator struct {
	random io.Reader
}

// NewTokenGenerator создаёт генератор поверх crypto/rand.
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{random: rand.Reader}
}

// VerificationCode возвращает шестизначный код, равномерно распределённый на 100000–999999.
func (g *TokenGenerator) VerificationCode() (string, error) {
	n, err := rand.Int(g.random, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("token generator: verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// SessionToken возвращает session_<base64url(32 байта)>.
func (g *TokenGenerator) SessionToken() (string, error) {
	raw, err := g.randomString()
	if err != nil {
		return "", fmt.Errorf("token generator: session token: %w", err)
	}
	return SessionTokenPrefix + raw, nil
}

// ResetToken возвращает base64url(32 байта).
func (g *TokenGenerator) ResetToken() (string, error) {
	raw, err := g.randomString()
	if err != nil {
		return "", fmt.Errorf("token generator: reset token: %w", err)
	}
	return raw, nil
}

func (g *TokenGenerator) randomString() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken возвращает hex(SHA-256) токена. В базе хранится только он.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
