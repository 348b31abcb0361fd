package tracking

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Init configures the global Sentry hub. An empty DSN disables sending.
func Init(dsn, environment string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func Flush() {
	sentry.Flush(2 * time.Second)
}

// CaptureError reports err with optional tags attached to the scope.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}
