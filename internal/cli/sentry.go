package cli

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// initSentry configures error reporting. An empty DSN leaves Sentry
// disabled and makes capture a no-op.
func initSentry(dsn, release string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
	})
}

func captureError(err error) {
	sentry.CaptureException(err)
}

func flushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
