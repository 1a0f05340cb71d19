package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 512))

	// «ж» занимает два байта, граница 5 приходится на середину руны
	cut := truncate("жжжжж", 5)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, "жж", cut)

	assert.Equal(t, "ab", truncate("a\xffb", 512))
}

func TestSessionManager_IssueKeepsUserAgentValidUTF8(t *testing.T) {
	env := newTestEnv(t, AuthConfig{})

	ua := strings.Repeat("a", 511) + "ж" + strings.Repeat("b", 100)
	token, session, err := env.sessions.Issue(context.Background(), uuid.New(), false, map[string]string{"user_agent": ua})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotNil(t, session.UserAgent)
	assert.True(t, utf8.ValidString(*session.UserAgent))
	assert.Equal(t, strings.Repeat("a", 511), *session.UserAgent)
}
