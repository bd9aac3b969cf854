// internal/infra/logger/sentry.go
package logger

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// SentryHook forwards error level entries to Sentry.
type SentryHook struct {
	hub *sentry.Hub
}

// InitSentry configures the Sentry client and attaches the hook to the
// global logger. It returns a flush function to call on shutdown.
func InitSentry(dsn, environment string) (func(), error) {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}); err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}
	Log.AddHook(NewSentryHook(sentry.CurrentHub()))
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func NewSentryHook(hub *sentry.Hub) *SentryHook {
	return &SentryHook{hub: hub}
}

func (h *SentryHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *SentryHook) Fire(entry *logrus.Entry) error {
	hub := h.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range entry.Data {
			if k == logrus.ErrorKey {
				continue
			}
			scope.SetExtra(k, v)
		}
		err, ok := entry.Data[logrus.ErrorKey].(error)
		if !ok {
			err = errors.New(entry.Message)
		} else {
			scope.SetExtra("message", entry.Message)
		}
		hub.CaptureException(err)
	})
	return nil
}
