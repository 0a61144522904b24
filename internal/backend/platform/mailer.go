package platform

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
)

// Mailer sends account mail.
type Mailer interface {
	SendConfirmation(ctx context.Context, to, link string) error
}

// LogMailer writes the confirmation link to the log instead of sending it.
// Used outside production.
type LogMailer struct{}

func (LogMailer) SendConfirmation(ctx context.Context, to, link string) error {
	platformLog.Info(ctx, "confirmation email (not sent)", map[string]any{"to": to, "link": link})
	return nil
}

// SESMailer sends mail through AWS SES.
type SESMailer struct {
	svc    *ses.SES
	sender string
}

// NewSESMailer creates an SES client from the default AWS credential chain.
func NewSESMailer(region, sender string) (*SESMailer, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS session: %w", err)
	}
	return &SESMailer{svc: ses.New(sess), sender: sender}, nil
}

func (m *SESMailer) SendConfirmation(ctx context.Context, to, link string) error {
	defer observability.TrackBackendCall("mail", "send_confirmation")()

	subject := "Confirm your Campus Hub account"
	htmlBody := fmt.Sprintf(`<h1>Welcome to Campus Hub</h1><p><a href="%s">Confirm your email</a> to start posting.</p>`, link)
	textBody := fmt.Sprintf("Confirm your email to start posting: %s", link)

	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(to)},
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Html: &ses.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(htmlBody),
				},
				Text: &ses.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(textBody),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(subject),
			},
		},
		Source: aws.String(m.sender),
	}
	if _, err := m.svc.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}
