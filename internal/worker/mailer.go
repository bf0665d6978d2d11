package worker

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aura-portal/backend/config"
)

// Message is one outgoing plain-text email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender, or a logging sender when no SMTP host is configured.
func NewSender(cfg config.EmailConfig, logger *zap.Logger) Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		return &LogSender{logger: logger}
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender sends through an SMTP relay with PLAIN auth when credentials are set.
type SMTPSender struct {
	cfg config.EmailConfig
}

// Send implements Sender. net/smtp has no context support; ctx is checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{msg.To}, compose(s.cfg, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// compose renders RFC 5322 headers and body with CRLF line endings.
func compose(cfg config.EmailConfig, msg Message) []byte {
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	to := mail.Address{Name: msg.ToName, Address: msg.To}
	var b strings.Builder
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + to.String() + "\r\n")
	b.WriteString("Subject: " + mimeHeader(msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

// mimeHeader leaves ASCII untouched and encodes anything else as an RFC 2047 word.
func mimeHeader(s string) string {
	return mime.QEncoding.Encode("utf-8", s)
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (not sent, SMTP disabled)",
		zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
