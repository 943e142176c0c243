package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/notify"
	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"
)

const EmailCode = "email"

// Email mails events to the target's recipients through one SMTP relay.
type Email struct {
	from string
	send func(m *gomail.Message) error
}

func NewEmail(cfg *config.SMTPConfig) (*Email, error) {
	if cfg == nil || cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and from are required for email notifications")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	dialer := gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	return &Email{
		from: cfg.From,
		send: func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		},
	}, nil
}

func (e *Email) String() string {
	return EmailCode
}

func (e *Email) Wants(target *config.Target, ev notify.Event) bool {
	return target.EmailOn(ev.Outcome)
}

// Send has no cancellation; the SMTP dialer's own timeout bounds it.
func (e *Email) Send(_ context.Context, target *config.Target, ev notify.Event) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", target.Notify.Email...)
	m.SetHeader("Subject", fmt.Sprintf("[ddnsd] %s %s %s", ev.Domain, ev.Family.RecordType(), ev.Outcome))
	m.SetHeader("X-Ddnsd-Event", ev.ID)
	m.SetDateHeader("Date", ev.Timestamp)
	m.SetBody("text/plain", emailBody(ev))
	return errors.Wrapf(e.send(m), "mail %s", strings.Join(target.Notify.Email, ", "))
}

func emailBody(ev notify.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target:   %s\n", ev.TargetID)
	fmt.Fprintf(&b, "Record:   %s %s\n", ev.Domain, ev.Family.RecordType())
	fmt.Fprintf(&b, "Outcome:  %s\n", ev.Outcome)
	if ev.Old != "" {
		fmt.Fprintf(&b, "Previous: %s\n", ev.Old)
	}
	if ev.New != "" {
		fmt.Fprintf(&b, "Current:  %s\n", ev.New)
	}
	if ev.Stage != "" {
		fmt.Fprintf(&b, "Stage:    %s after %d attempt(s), %s\n", ev.Stage, ev.Attempts, ev.Kind)
	}
	fmt.Fprintf(&b, "Time:     %s\n\n%s\n", ev.Timestamp.Format("2006-01-02 15:04:05 MST"), ev.Detail)
	return b.String()
}
