// Package mail sends report and failure notification emails.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapreport/pkg/core"
	"gopkg.in/gomail.v2"
)

// Message is one email without attachments. When both bodies are set the
// text body is the primary part and HTML the alternative.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the transport account.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// SSL forces implicit TLS; otherwise STARTTLS is used when offered.
	SSL bool
}

type dialSender interface {
	Dial() (gomail.SendCloser, error)
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through an SMTP server.
type SMTPMailer struct {
	from   string
	dialer dialSender
	logger *slog.Logger
}

// NewSMTPMailer creates an SMTPMailer. A nil logger discards output.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	if cfg.SSL {
		d.SSL = true
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{from: from, dialer: d, logger: logger}
}

// Send delivers msg. gomail does not take a context, so ctx is only checked
// before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return &core.MailError{Subject: msg.Subject, Err: err}
	}
	gm, err := m.build(msg)
	if err != nil {
		return &core.MailError{Subject: msg.Subject, Err: err}
	}
	if err := m.dialer.DialAndSend(gm); err != nil {
		return &core.MailError{Subject: msg.Subject, Err: err}
	}
	m.logger.Info("email sent", slog.String("subject", msg.Subject), slog.Int("recipients", len(msg.To)))
	return nil
}

// Check connects and authenticates to the server without sending anything.
func (m *SMTPMailer) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sc, err := m.dialer.Dial()
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	return sc.Close()
}

func (m *SMTPMailer) build(msg Message) (*gomail.Message, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	if msg.HTML == "" && msg.Text == "" {
		return nil, fmt.Errorf("empty body")
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		gm.SetBody("text/plain", msg.Text)
		gm.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		gm.SetBody("text/html", msg.HTML)
	default:
		gm.SetBody("text/plain", msg.Text)
	}
	return gm, nil
}

var _ Mailer = (*SMTPMailer)(nil)
