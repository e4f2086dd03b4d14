// Package monitoring reports placement failures to Sentry.
package monitoring

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/greenplace/config"
	coremon "github.com/kilianp07/greenplace/core/monitoring"
)

// NewSentryMonitor returns a Monitor sending to the configured DSN. A config
// without DSN yields a no-op monitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if !cfg.Enabled() {
		return coremon.NopMonitor{}, nil
	}
	host, _ := os.Hostname()
	return newSentryMonitor(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		ServerName:       host,
	})
}

func newSentryMonitor(opts sentry.ClientOptions) (*sentryMonitor, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	scope := sentry.NewScope()
	scope.SetTag("service", "greenplace")
	return &sentryMonitor{hub: sentry.NewHub(client, scope)}, nil
}

// sentryMonitor reports through a private hub; the global sentry hub is not
// initialised.
type sentryMonitor struct {
	hub *sentry.Hub
}

// CaptureException sends err with tags. Events carrying a component and an
// error kind are fingerprinted by both.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if c, k := tags["component"], tags["error_kind"]; c != "" && k != "" {
			scope.SetFingerprint([]string{"{{ default }}", c, k})
		}
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) Flush(timeout time.Duration) bool { return s.hub.Flush(timeout) }
