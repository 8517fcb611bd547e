package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender delivers a single message. Delivery is fire-and-forget from the
// caller's point of view: failures are logged upstream, never surfaced.
type Sender interface {
	Send(to, subject, body string) error
}

type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(host string, port int, user, password, from string) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTP) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// Noop discards messages. Used in tests and when SMTP is not configured.
type Noop struct{}

func (Noop) Send(string, string, string) error { return nil }
