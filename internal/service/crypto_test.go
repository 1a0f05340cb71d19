package service

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	second, err := h.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "соль должна отличаться")
	assert.NotContains(t, first, "Passw0rd!")
	assert.True(t, h.Verify("Passw0rd!", first))
	assert.False(t, h.Verify("passw0rd!", first))

	assert.False(t, h.Verify("Passw0rd!", ""))
	assert.False(t, h.Verify("Passw0rd!", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("Passw0rd!", "$2a$10$short"))
	assert.False(t, h.VerifyDummy("Passw0rd!"))
}

func TestPasswordHasherFallsBackToDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).cost)
}

func TestTokenGenerator_VerificationCode(t *testing.T) {
	g := NewTokenGenerator()

	for i := 0; i < 1000; i++ {
		code, err := g.VerificationCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestTokenGenerator_Tokens(t *testing.T) {
	g := NewTokenGenerator()
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		session, err := g.SessionToken()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(session, SessionTokenPrefix))
		// 32 байта в base64url без паддинга дают 43 символа
		assert.Len(t, strings.TrimPrefix(session, SessionTokenPrefix), 43)
		assert.NotContains(t, session, "+")
		assert.NotContains(t, session, "/")

		reset, err := g.ResetToken()
		require.NoError(t, err)
		assert.Len(t, reset, 43)

		for _, tok := range []string{session, reset} {
			_, dup := seen[tok]
			require.False(t, dup)
			seen[tok] = struct{}{}
		}
	}
}

func TestTokenGenerator_FailingSource(t *testing.T) {
	g := &TokenGenerator{random: strings.NewReader("too short")}

	_, err := g.SessionToken()
	assert.Error(t, err)
}

func TestHashToken(t *testing.T) {
	h := HashToken("session_abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("session_abc"))
	assert.NotEqual(t, h, HashToken("session_abd"))
}
