// Package mailer delivers outbound notification email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/inkwell-io/inkwell/pkg/auth"
	"github.com/inkwell-io/inkwell/pkg/config"
	"github.com/inkwell-io/inkwell/pkg/observability"
)

// SMTPMailer implements auth.Notifier against a plain SMTP relay with
// optional AUTH PLAIN credentials. Delivery is synchronous; callers that
// need retry semantics layer them on top.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *observability.Logger

	// send is swappable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ auth.Notifier = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer from SMTP configuration. The From address
// must be set; host defaults are handled by config.
func NewSMTPMailer(cfg config.SMTPConfig, logger *observability.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		logger:   logger,
		send:     smtp.SendMail,
	}, nil
}

// Send delivers a single plain-text message to one recipient. The context
// deadline, if any, bounds the whole SMTP exchange.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient address is required")
	}

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	var a smtp.Auth
	if m.username != "" {
		a = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	msg := m.buildMessage(to, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, a, m.from, []string{to}, msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp delivery aborted: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			m.logger.WithError(err).WithField("smtp_host", m.host).Error("failed to deliver email")
			return fmt.Errorf("smtp delivery to %s failed: %w", m.host, err)
		}
	}

	m.logger.WithField("smtp_host", m.host).Debug("email delivered")
	return nil
}

func (m *SMTPMailer) buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// sanitizeHeader strips CR/LF so message fields cannot inject extra
// headers into the envelope.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return v
}
