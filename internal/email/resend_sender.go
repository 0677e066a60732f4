package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender envia correos con la API de Resend.
type ResendSender struct {
	from string
	send func(req *resend.SendEmailRequest) error
}

func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("resend api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("resend from is required")
	}
	client := resend.NewClient(apiKey)
	return &ResendSender{
		from: from,
		send: func(req *resend.SendEmailRequest) error {
			_, err := client.Emails.Send(req)
			return err
		},
	}, nil
}

func (s *ResendSender) SendPasswordResetOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: resetSubject,
		Text:    resetBody(code, expiresAt),
	}
	if err := s.send(req); err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}
