package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emery-Xu/news-aggregator/internal/config"
	"github.com/emery-Xu/news-aggregator/internal/domain"
	"github.com/emery-Xu/news-aggregator/internal/ports"
)

const mimeBoundary = "digest-boundary-9c4f1a"

// SMTPSender delivers digests over SMTP as multipart/alternative messages,
// with a local file fallback for failed deliveries.
type SMTPSender struct {
	cfg         config.SMTPConfig
	fallbackDir string
	logger      *slog.Logger
	now         func() time.Time
}

var _ ports.DigestSender = (*SMTPSender)(nil)

// NewSMTPSender wires the sender from email configuration.
func NewSMTPSender(cfg config.EmailConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:         cfg.SMTP,
		fallbackDir: cfg.FallbackDir,
		logger:      logger,
		now:         time.Now,
	}
}

// Send delivers the digest to one recipient. STARTTLS is used by default;
// disabling use_tls switches to implicit TLS (port 465 style).
func (s *SMTPSender) Send(ctx context.Context, to string, content domain.EmailContent) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	msg := s.buildMessage(to, content)

	errCh := make(chan error, 1)
	go func() {
		if s.cfg.UseSTARTTLS() {
			errCh <- s.sendSTARTTLS(addr, to, msg)
		} else {
			errCh <- s.sendImplicitTLS(addr, to, msg)
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send digest to %s: %w", to, err)
		}
		s.log().Info("digest sent", "to", to, "subject", content.Subject)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send digest to %s: %w", to, ctx.Err())
	}
}

func (s *SMTPSender) sendSTARTTLS(addr, to string, msg []byte) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	return smtp.SendMail(addr, auth, s.cfg.FromEmail, []string{to}, msg)
}

func (s *SMTPSender) sendImplicitTLS(addr, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(s.cfg.FromEmail); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return client.Quit()
}

// buildMessage assembles a multipart/alternative MIME message so clients can
// pick plain text or HTML.
func (s *SMTPSender) buildMessage(to string, content domain.EmailContent) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", content.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(content.PlainTextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(content.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}

// SaveToFile writes the HTML digest into the fallback directory and returns
// the written path.
func (s *SMTPSender) SaveToFile(content domain.EmailContent) (string, error) {
	dir := s.fallbackDir
	if dir == "" {
		dir = "data/digests"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create fallback dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("digest-%s.html", s.now().Format("2006-01-02-150405")))
	if err := os.WriteFile(path, []byte(content.HTMLBody), 0o644); err != nil {
		return "", fmt.Errorf("write fallback digest: %w", err)
	}

	s.log().Warn("digest saved to file instead of being sent", "path", path)
	return path, nil
}

func (s *SMTPSender) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
