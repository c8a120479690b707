// Package mail delivers transactional email (verification codes, temporary
// passwords) through SendGrid or SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/oggyb/campusknot/internal/config"
)

// ErrNotConfigured is returned when no delivery backend is set up.
var ErrNotConfigured = errors.New("mail: no delivery backend configured")

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Chain tries each mailer in order and stops at the first success.
type Chain []Mailer

func (c Chain) Send(ctx context.Context, msg Message) error {
	if len(c) == 0 {
		return ErrNotConfigured
	}
	var errs []error
	for _, m := range c {
		err := m.Send(ctx, msg)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// New builds the delivery chain from config: SendGrid first, then SMTP.
// With neither configured, every Send fails with ErrNotConfigured.
func New(cfg config.MailConfig) Mailer {
	var chain Chain
	if cfg.SendGridAPIKey != "" {
		chain = append(chain, NewSendGrid(cfg.SendGridAPIKey, cfg.From))
	}
	if cfg.SMTPHost != "" {
		chain = append(chain, NewSMTP(cfg))
	}
	return chain
}

var (
	verificationTmpl = template.Must(template.New("verification").Parse(`<div style="font-family:sans-serif;max-width:480px;margin:auto">
<h2>{{.App}}</h2>
<p>Your verification code is:</p>
<p style="font-size:32px;letter-spacing:8px;font-weight:bold">{{.Secret}}</p>
<p>It expires in 10 minutes. If you did not request it, ignore this email.</p>
</div>`))

	tempPasswordTmpl = template.Must(template.New("temp_password").Parse(`<div style="font-family:sans-serif;max-width:480px;margin:auto">
<h2>{{.App}}</h2>
<p>Your temporary password is:</p>
<p style="font-size:24px;font-weight:bold">{{.Secret}}</p>
<p>Log in with it and change it from your profile.</p>
</div>`))
)

type emailData struct {
	App    string
	Secret string
}

// render executes t into a string. Execute only fails on writer errors.
func render(t *template.Template, data emailData) string {
	var b bytes.Buffer
	_ = t.Execute(&b, data)
	return b.String()
}

// VerificationEmail renders the one-time code message.
func VerificationEmail(appName, to, code string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your %s verification code", appName),
		HTML:    render(verificationTmpl, emailData{App: appName, Secret: code}),
	}
}

// TemporaryPasswordEmail renders the password reset message.
func TemporaryPasswordEmail(appName, to, password string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your %s temporary password", appName),
		HTML:    render(tempPasswordTmpl, emailData{App: appName, Secret: password}),
	}
}
