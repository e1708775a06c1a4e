// AngelaMos | 2026
// mail.go

package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/tfg-registry/internal/config"
)

type Message struct {
	To       string
	Subject  string
	Body     string
	Template string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Recorder counts deliveries. *metrics.Metrics satisfies it.
type Recorder interface {
	MailSent(template string, err error)
}

func New(cfg config.MailConfig, logger *slog.Logger, rec Recorder) Sender {
	if !cfg.Enabled {
		return &LogSender{logger: logger}
	}
	return NewSMTPSender(cfg, logger, rec)
}

// LogSender writes messages to the log instead of delivering them. Used in
// development and whenever SMTP is disabled.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail not sent, smtp disabled",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
	)
	return nil
}

type SMTPSender struct {
	cfg    config.MailConfig
	logger *slog.Logger
	rec    Recorder
}

func NewSMTPSender(cfg config.MailConfig, logger *slog.Logger, rec Recorder) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{cfg: cfg, logger: logger, rec: rec}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (err error) {
	if s.rec != nil {
		defer func() { s.rec.MailSent(msg.Template, err) }()
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	if err := s.deliver(ctx, msg.To, BuildMessage(s.cfg, msg, time.Now())); err != nil {
		s.logger.Error("mail delivery failed", "to", msg.To, "template", msg.Template, "error", err)
		return err
	}

	s.logger.Info("mail sent", "to", msg.To, "template", msg.Template)
	return nil
}

func (s *SMTPSender) deliver(ctx context.Context, to string, body []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect smtp: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // best effort

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // best effort
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // best effort

	if s.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}

	_ = client.Quit() //nolint:errcheck // message already accepted
	return nil
}

// BuildMessage renders a plain-text RFC 5322 message.
func BuildMessage(cfg config.MailConfig, msg Message, now time.Time) []byte {
	var b strings.Builder

	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", cfg.FromName), cfg.From)
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))

	return []byte(b.String())
}
