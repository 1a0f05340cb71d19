package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init инициализирует структурированный логгер.
// В production пишем JSON, в development читаемый текст.
func Init(level string, production bool) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if production {
		Log.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// L возвращает глобальный логгер. Пока Init не вызван (например, в тестах),
// возвращается логгер, который ничего не пишет.
func L() *logrus.Logger {
	if Log != nil {
		return Log
	}
	return discard
}

// WithFields короткий путь к L().WithFields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return L().WithFields(fields)
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
