package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (s *captureSender) SendEmail(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := msg.Validate(); err != nil {
		return err
	}
	s.messages = append(s.messages, msg)
	return s.err
}

func TestMailerVerificationCode(t *testing.T) {
	sender := &captureSender{}
	m := New(sender, "VibeConnect", "https://app.example.com/")

	require.NoError(t, m.SendVerificationCode(context.Background(), "a@x.com", "A", "123456"))
	require.Len(t, sender.messages, 1)

	msg := sender.messages[0]
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, TagVerification, msg.Tag)
	assert.Contains(t, msg.Subject, "123456")
	assert.Contains(t, msg.BodyHTML, "123456")
}

func TestMailerPasswordResetLink(t *testing.T) {
	sender := &captureSender{}
	m := New(sender, "VibeConnect", "https://app.example.com/")

	require.NoError(t, m.SendPasswordReset(context.Background(), "a@x.com", "", "tok_abc"))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].BodyHTML, "https://app.example.com/reset-password?token=tok_abc")
	assert.Equal(t, TagPasswordReset, sender.messages[0].Tag)
}

func TestMailerEscapesName(t *testing.T) {
	sender := &captureSender{}
	m := New(sender, "VibeConnect", "https://app.example.com")

	require.NoError(t, m.SendWelcome(context.Background(), "a@x.com", "<script>x</script>"))
	assert.NotContains(t, sender.messages[0].BodyHTML, "<script>")
}

func TestMailerPropagatesSenderError(t *testing.T) {
	sender := &captureSender{err: ErrFailedToSendEmail}
	m := New(sender, "VibeConnect", "https://app.example.com")

	err := m.SendWelcome(context.Background(), "a@x.com", "A")
	assert.True(t, errors.Is(err, ErrFailedToSendEmail))
}

func TestMessageValidate(t *testing.T) {
	assert.ErrorIs(t, Message{To: "bad", Subject: "s", BodyHTML: "b"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{To: "a@x.com", BodyHTML: "b"}.Validate(), ErrInvalidMessage)
	assert.NoError(t, Message{To: "a@x.com", Subject: "s", BodyHTML: "b"}.Validate())
}

func TestNewPostmarkSenderConfig(t *testing.T) {
	valid := PostmarkConfig{
		ServerToken:  "server",
		AccountToken: "account",
		SenderEmail:  "no-reply@example.com",
		SupportEmail: "support@example.com",
	}
	sender, err := NewPostmarkSender(valid)
	require.NoError(t, err)
	assert.NotNil(t, sender)

	missing := valid
	missing.AccountToken = ""
	_, err = NewPostmarkSender(missing)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	badSender := valid
	badSender.SenderEmail = "nope"
	_, err = NewPostmarkSender(badSender)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLogSenderHidesBody(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)

	s := NewLogSender(log, false)
	require.NoError(t, s.SendEmail(context.Background(), Message{
		To: "a@x.com", Subject: "code", BodyHTML: "<b>123456</b>", Tag: TagVerification,
	}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "a@x.com", entry.Data["email"])
	_, hasBody := entry.Data["body"]
	assert.False(t, hasBody)

	s = NewLogSender(log, true)
	require.NoError(t, s.SendEmail(context.Background(), Message{
		To: "a@x.com", Subject: "code", BodyHTML: "<b>123456</b>",
	}))
	assert.Equal(t, "<b>123456</b>", hook.LastEntry().Data["body"])
}
