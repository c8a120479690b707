package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// sendGridClient is the subset of *sendgrid.Client used here.
type sendGridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGrid delivers through the SendGrid v3 mail API.
type SendGrid struct {
	From   string
	client sendGridClient
}

func NewSendGrid(apiKey, from string) *SendGrid {
	return &SendGrid{From: from, client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	email := sgmail.NewV3MailInit(
		sgmail.NewEmail("", s.From),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		sgmail.NewContent("text/html", msg.HTML),
	)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		body := resp.Body
		if len(body) > 512 {
			body = body[:512]
		}
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, strings.TrimSpace(body))
	}
	return nil
}
