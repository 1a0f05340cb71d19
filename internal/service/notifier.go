package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vibeconnect/social-backend/internal/goroutine"
	"github.com/vibeconnect/social-backend/internal/logger"
)

// События безопасности аккаунта, которые уходят в websocket.
const (
	EventSessionCreated = "session.created"
	EventEmailVerified  = "account.email_verified"
	EventPasswordReset  = "account.password_reset"
	EventSessionRevoked = "session.revoked"
)

// Notifier принимает побочные уведомления. Вызовы не блокируют запрос
// и не возвращают ошибок: сбой доставки только логируется.
type Notifier interface {
	VerificationCode(email, name, code string)
	Welcome(email, name string)
	PasswordReset(email, name, token string)
	SecurityEvent(userID uuid.UUID, event string, data any)
}

// Mailer отправка писем, см. пакет mailer.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, name, code string) error
	SendWelcome(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// EventPublisher доставляет событие живым подключениям пользователя.
type EventPublisher interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// AsyncNotifier отправляет письма и события в фоновых горутинах.
type AsyncNotifier struct {
	mailer  Mailer
	events  EventPublisher
	timeout time.Duration
}

// NewAsyncNotifier создаёт уведомитель. events может быть nil.
func NewAsyncNotifier(mailer Mailer, events EventPublisher, timeout time.Duration) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AsyncNotifier{mailer: mailer, events: events, timeout: timeout}
}

func (n *AsyncNotifier) VerificationCode(email, name, code string) {
	n.sendMail("verification_code", email, func(ctx context.Context) error {
		return n.mailer.SendVerificationCode(ctx, email, name, code)
	})
}

func (n *AsyncNotifier) Welcome(email, name string) {
	n.sendMail("welcome", email, func(ctx context.Context) error {
		return n.mailer.SendWelcome(ctx, email, name)
	})
}

func (n *AsyncNotifier) PasswordReset(email, name, token string) {
	n.sendMail("password_reset", email, func(ctx context.Context) error {
		return n.mailer.SendPasswordReset(ctx, email, name, token)
	})
}

func (n *AsyncNotifier) SecurityEvent(userID uuid.UUID, event string, data any) {
	if n.events == nil {
		return
	}
	goroutine.SafeGo(func() {
		if err := n.events.BroadcastToUser(userID, event, data); err != nil {
			logger.WithFields(logrus.Fields{
				"user_id": userID,
				"event":   event,
				"error":   err.Error(),
			}).Warn("security event not delivered")
		}
	})
}

func (n *AsyncNotifier) sendMail(kind, email string, send func(ctx context.Context) error) {
	if n.mailer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		defer cancel()

		if err := send(ctx); err != nil {
			logger.WithFields(logrus.Fields{
				"kind":  kind,
				"email": email,
				"error": err.Error(),
			}).Error("email delivery failed")
		}
	})
}
