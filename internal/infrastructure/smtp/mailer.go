package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/blog-otp-auth/internal/config"
	"github.com/blog-otp-auth/internal/infrastructure/notify"
	"gopkg.in/gomail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer delivers OTP emails over SMTP.
type Mailer struct {
	dialer sender
	from   string
	ttl    time.Duration
}

func NewMailer(cfg *config.Config) *Mailer {
	from := cfg.SMTPFrom
	if cfg.SMTPUsername != "" && from == "" {
		from = cfg.SMTPUsername
	}
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	d.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}
	return &Mailer{dialer: d, from: from, ttl: cfg.OTPTTL}
}

func (m *Mailer) SendOTP(ctx context.Context, email, code string) error {
	html, err := notify.RenderHTML(code, m.ttl)
	if err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", notify.Subject)
	msg.SetBody("text/plain", notify.PlainText(code, m.ttl))
	msg.AddAlternative("text/html", html)

	if err := notify.Await(ctx, func() error { return m.dialer.DialAndSend(msg) }); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
