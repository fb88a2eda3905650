// Package notify abstracts the outbound notification transport. The alert
// engine only sees the Sink interface; the concrete mail mechanics stay here.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Sink delivers one notification to a set of recipients. Implementations
// must treat an empty recipient list as a logged no-op, not an error.
type Sink interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}

// LogSink writes notifications to the log instead of delivering them. Used
// when no SMTP host is configured, and by tests.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, subject, body string, recipients []string) error {
	log.Info().
		Str("subject", subject).
		Strs("recipients", recipients).
		Msg("notification sink not configured, logging instead")
	log.Debug().Str("body", body).Msg("notification body")
	return nil
}
