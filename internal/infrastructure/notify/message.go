// Package notify holds the OTP email body shared by the delivery backends
// and a log-only notifier for development.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"
)

const Subject = "Your Login OTP"

var body = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Login Verification</h2>
  <p>Your OTP for login is:</p>
  <h1 style="color: #4F46E5; font-size: 32px; letter-spacing: 5px;">{{.Code}}</h1>
  <p style="color: #666;">This OTP will expire in {{.Minutes}} minutes.</p>
  <p style="color: #999; font-size: 12px;">If you didn't request this OTP, please ignore this email.</p>
</div>`))

// RenderHTML returns the email body for code valid for ttl.
func RenderHTML(code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := body.Execute(&buf, struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: int(ttl.Minutes())})
	if err != nil {
		return "", fmt.Errorf("render otp email: %w", err)
	}
	return buf.String(), nil
}

// PlainText is the body used where HTML is not supported.
func PlainText(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your OTP for login is %s. It expires in %d minutes.", code, int(ttl.Minutes()))
}

// LogNotifier writes codes to the log instead of sending them.
// Development only; config validation refuses it elsewhere.
type LogNotifier struct{}

func (LogNotifier) SendOTP(_ context.Context, email, code string) error {
	slog.Warn("otp delivery disabled, logging code", "email", email, "code", code)
	return nil
}

// Await runs send in a goroutine and returns when it finishes or ctx is
// done, for clients that take no context.
func Await(ctx context.Context, send func() error) error {
	done := make(chan error, 1)
	go func() { done <- send() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
