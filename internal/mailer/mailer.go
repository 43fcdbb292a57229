package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"path/filepath"
	"strings"
	"time"

	"github.com/soundpack/backend/internal/config"
)

// Attachment is one file included with an outbound message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a fully rendered outbound email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
	Headers     map[string]string
}

// Sender delivers rendered messages. Send returns an error on transport
// failure; callers decide whether to record or retry.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail over a plain SMTP submission endpoint.
type SMTPSender struct {
	cfg  config.SMTPConfig
	from string
}

// NewSMTPSender constructs a sender for the configured SMTP endpoint.
func NewSMTPSender(cfg config.SMTPConfig, from string) *SMTPSender {
	return &SMTPSender{cfg: cfg, from: from}
}

// Send renders the message as multipart MIME and submits it.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.Configured() {
		return fmt.Errorf("smtp: transport not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("smtp: recipient is required")
	}

	body, err := render(s.from, msg)
	if err != nil {
		return fmt.Errorf("render message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.from, []string{msg.To}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	return nil
}

const boundary = "soundpack-mime-boundary"

func render(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer

	write := func(format string, args ...any) {
		fmt.Fprintf(&buf, format, args...)
	}

	write("From: %s\r\n", from)
	write("To: %s\r\n", msg.To)
	write("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	write("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	for k, v := range msg.Headers {
		write("%s: %s\r\n", k, v)
	}
	write("Content-Type: multipart/mixed; boundary=%q\r\n", boundary)
	write("\r\n")

	if msg.Text != "" {
		write("--%s\r\n", boundary)
		write("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		write("%s\r\n", msg.Text)
	}

	html := msg.HTML
	if html == "" && msg.Text == "" {
		html = "<p>Thanks for your purchase!</p>"
	}
	if html != "" {
		write("--%s\r\n", boundary)
		write("Content-Type: text/html; charset=utf-8\r\n\r\n")
		write("%s\r\n", html)
	}

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		name := filepath.Base(att.Filename)

		write("--%s\r\n", boundary)
		write("Content-Type: %s; name=%q\r\n", contentType, name)
		write("Content-Disposition: attachment; filename=%q\r\n", name)
		write("Content-Transfer-Encoding: base64\r\n\r\n")

		encoded := base64.StdEncoding.EncodeToString(att.Content)
		for len(encoded) > 76 {
			write("%s\r\n", encoded[:76])
			encoded = encoded[76:]
		}
		write("%s\r\n", encoded)
	}

	write("--%s--\r\n", boundary)

	if strings.TrimSpace(buf.String()) == "" {
		return nil, fmt.Errorf("empty message")
	}

	return buf.Bytes(), nil
}
