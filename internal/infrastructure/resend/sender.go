// Package resend delivers OTP emails through the Resend API.
package resend

import (
	"context"
	"fmt"
	"time"

	"github.com/blog-otp-auth/internal/infrastructure/notify"
	"github.com/resend/resend-go/v2"
)

type Sender struct {
	send func(*resend.SendEmailRequest) error
	from string
	ttl  time.Duration
}

func NewSender(apiKey, from string, ttl time.Duration) *Sender {
	client := resend.NewClient(apiKey)
	return &Sender{
		send: func(req *resend.SendEmailRequest) error {
			_, err := client.Emails.Send(req)
			return err
		},
		from: from,
		ttl:  ttl,
	}
}

func (s *Sender) SendOTP(ctx context.Context, email, code string) error {
	html, err := notify.RenderHTML(code, s.ttl)
	if err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{email},
		Subject: notify.Subject,
		Html:    html,
		Text:    notify.PlainText(code, s.ttl),
	}
	if err := notify.Await(ctx, func() error { return s.send(req) }); err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}
