package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/proactivedb/fleetmon/internal/config"
)

// SMTPSink sends notifications through a plain SMTP relay.
type SMTPSink struct {
	dialer *gomail.Dialer
	host   string
	port   int
	sender string
}

func NewSMTPSink(cfg *config.SMTPConfig) *SMTPSink {
	return &SMTPSink{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		host:   cfg.Host,
		port:   cfg.Port,
		sender: cfg.Sender,
	}
}

func (s *SMTPSink) Send(ctx context.Context, subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		log.Info().Str("subject", subject).Msg("no recipients resolved, skipping email")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.sender)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.diagnose(err)
		return fmt.Errorf("smtp send to %s: %w", strings.Join(recipients, ", "), err)
	}
	log.Info().Strs("recipients", recipients).Str("subject", subject).Msg("alert email sent")
	return nil
}

// diagnose logs actionable detail for the common failure mode: nothing
// listening on the configured host/port.
func (s *SMTPSink) diagnose(err error) {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		log.Error().
			Str("host", s.host).
			Int("port", s.port).
			Str("cause", opErr.Err.Error()).
			Msg("SMTP connection failed; check SMTP_HOST/SMTP_PORT, firewall rules, and that the relay is running")
		return
	}
	log.Error().Err(err).Str("host", s.host).Int("port", s.port).Msg("failed to send email")
}
