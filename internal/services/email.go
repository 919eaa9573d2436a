package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

// ErrChannelNotConfigured is returned by senders built without credentials.
var ErrChannelNotConfigured = errors.New("delivery channel not configured")

const defaultFromEmail = "no-reply@devforge.local"

type EmailService interface {
	SendEmail(ctx context.Context, toEmail, subject, plainText, htmlContent string) error
	Configured() bool
}

type emailService struct {
	log       *logger.Logger
	client    *sendgrid.Client
	fromEmail string
}

// NewEmailService always succeeds; without SENDGRID_API_KEY every send
// fails with ErrChannelNotConfigured.
func NewEmailService(log *logger.Logger, cfg config.ShareConfig) EmailService {
	serviceLog := log.With("service", "EmailService")
	es := &emailService{log: serviceLog, fromEmail: cfg.SendgridFromEmail}
	if es.fromEmail == "" {
		serviceLog.Warn("SENDGRID_FROM_EMAIL not set; using fallback " + defaultFromEmail)
		es.fromEmail = defaultFromEmail
	}
	if cfg.SendgridAPIKey == "" {
		serviceLog.Warn("SENDGRID_API_KEY not set; email sharing disabled")
		return es
	}
	es.client = sendgrid.NewSendClient(cfg.SendgridAPIKey)
	return es
}

func (es *emailService) Configured() bool {
	return es.client != nil
}

func (es *emailService) SendEmail(ctx context.Context, toEmail, subject, plainText, htmlContent string) error {
	if es.client == nil {
		return fmt.Errorf("email: %w", ErrChannelNotConfigured)
	}
	from := mail.NewEmail("DevForge", es.fromEmail)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	response, err := es.client.SendWithContext(ctx, message)
	if err != nil {
		es.log.Warn("Sendgrid email send failed", "error", err)
		return err
	}
	if response.StatusCode >= 400 {
		es.log.Warn("Sendgrid rejected email", "statusCode", response.StatusCode)
		return fmt.Errorf("sendgrid returned HTTP %d", response.StatusCode)
	}
	es.log.Info("Email sent", "statusCode", response.StatusCode)
	return nil
}
