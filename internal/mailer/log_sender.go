package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender пишет письма в лог вместо отправки. Используется, когда Postmark не настроен.
type LogSender struct {
	log         *logrus.Logger
	includeBody bool
}

// NewLogSender создаёт LogSender. Тело письма (с кодами и ссылками) пишется
// только при includeBody, то есть вне production.
func NewLogSender(log *logrus.Logger, includeBody bool) *LogSender {
	return &LogSender{log: log, includeBody: includeBody}
}

func (s *LogSender) SendEmail(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	fields := logrus.Fields{
		"email":   msg.To,
		"subject": msg.Subject,
		"tag":     msg.Tag,
	}
	if s.includeBody {
		fields["body"] = msg.BodyHTML
	}
	s.log.WithFields(fields).Info("email not sent: postmark is not configured")
	return nil
}
