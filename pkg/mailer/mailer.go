/**
 * @description
 * SMTP mail delivery for generated reports.
 */
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// Mail is one outgoing message. Attachments are file paths.
type Mail struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []string
}

// Config holds SMTP settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through an SMTP relay. At most one SMTP conversation
// runs per mailer, including one abandoned by a cancelled caller.
type SMTPMailer struct {
	from   string
	dialer sender
	slot   chan struct{}
}

// NewSMTPMailer creates a mailer. The host and sender address are required.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is not configured")
	}
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return nil, errors.New("mail from address is not configured")
	}
	from := cfg.FromAddress
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	}
	return &SMTPMailer{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		slot:   make(chan struct{}, 1),
	}, nil
}

func (m *SMTPMailer) message(mail Mail) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetBody("text/html", mail.HTMLBody)
	for _, path := range mail.Attachments {
		msg.Attach(path)
	}
	return msg
}

// Send delivers mail, giving up when ctx is done. No conversation is started
// once ctx is done. A conversation abandoned mid-flight may still complete, and
// holds the mailer's slot until it does, so abandoned sends never pile up.
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if strings.TrimSpace(mail.To) == "" {
		return errors.New("mail recipient is empty")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send mail to %s: %w", mail.To, err)
	}
	msg := m.message(mail)

	select {
	case m.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", mail.To, ctx.Err())
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-m.slot }()
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", mail.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", mail.To, ctx.Err())
	}
}
