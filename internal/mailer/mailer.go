// Package mailer доставляет транзакционные письма: код подтверждения,
// приветствие после активации и ссылку на сброс пароля.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrFailedToSendEmail = errors.New("mailer: failed to send email")
	ErrInvalidConfig     = errors.New("mailer: invalid config")
	ErrInvalidMessage    = errors.New("mailer: invalid message")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Теги писем, по ним письма группируются в статистике Postmark.
const (
	TagVerification  = "email-verification"
	TagWelcome       = "welcome"
	TagPasswordReset = "password-reset"
)

// Sender отправляет одно готовое письмо.
type Sender interface {
	SendEmail(ctx context.Context, msg Message) error
}

// Message готовое к отправке письмо.
type Message struct {
	To       string
	Subject  string
	BodyHTML string
	Tag      string
}

// Validate проверяет обязательные поля письма.
func (m Message) Validate() error {
	if !emailRegex.MatchString(strings.TrimSpace(m.To)) {
		return fmt.Errorf("%w: recipient %q", ErrInvalidMessage, m.To)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.BodyHTML) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// Mailer собирает письма из шаблонов и передаёт их Sender.
type Mailer struct {
	sender   Sender
	appName  string
	frontend string
}

// New создаёт Mailer. frontendURL используется для ссылок в письмах.
func New(sender Sender, appName, frontendURL string) *Mailer {
	return &Mailer{
		sender:   sender,
		appName:  appName,
		frontend: strings.TrimRight(frontendURL, "/"),
	}
}

// SendVerificationCode отправляет шестизначный код подтверждения.
func (m *Mailer) SendVerificationCode(ctx context.Context, to, name, code string) error {
	body, err := render(verificationTmpl, templateData{
		AppName: m.appName,
		Name:    name,
		Code:    code,
	})
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, Message{
		To:       to,
		Subject:  fmt.Sprintf("Your %s verification code: %s", m.appName, code),
		BodyHTML: body,
		Tag:      TagVerification,
	})
}

// SendWelcome отправляет приветствие после подтверждения email.
func (m *Mailer) SendWelcome(ctx context.Context, to, name string) error {
	body, err := render(welcomeTmpl, templateData{
		AppName: m.appName,
		Name:    name,
		Link:    m.frontend,
	})
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, Message{
		To:       to,
		Subject:  fmt.Sprintf("Welcome to %s", m.appName),
		BodyHTML: body,
		Tag:      TagWelcome,
	})
}

// SendPasswordReset отправляет ссылку на сброс пароля.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	body, err := render(resetTmpl, templateData{
		AppName: m.appName,
		Name:    name,
		Link:    m.ResetLink(token),
	})
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, Message{
		To:       to,
		Subject:  fmt.Sprintf("Reset your %s password", m.appName),
		BodyHTML: body,
		Tag:      TagPasswordReset,
	})
}

// ResetLink строит ссылку на страницу сброса пароля во фронтенде.
func (m *Mailer) ResetLink(token string) string {
	return m.frontend + "/reset-password?token=" + token
}
