package services

import (
	"context"
	"fmt"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

type TextService interface {
	SendText(ctx context.Context, toNumber string, body string) error
	Configured() bool
}

type textService struct {
	log    *logger.Logger
	client *twilio.RestClient
	from   string
}

func NewTextService(log *logger.Logger, cfg config.ShareConfig) TextService {
	ts := &textService{log: log.With("service", "TextService"), from: cfg.TwilioFromNumber}
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		ts.log.Warn("Twilio variables not set; SMS sharing disabled")
		return ts
	}
	ts.client = twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	return ts
}

func (ts *textService) Configured() bool {
	return ts.client != nil
}

func (ts *textService) SendText(ctx context.Context, toNumber string, body string) error {
	if ts.client == nil {
		return fmt.Errorf("sms: %w", ErrChannelNotConfigured)
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(ts.from)
	params.SetBody(body)

	resp, err := ts.client.Api.CreateMessage(params)
	if err != nil {
		ts.log.Warn("Failed to send Text via Twilio", "error", err)
		return err
	}
	sid, status := "", ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	if resp.Status != nil {
		status = *resp.Status
	}
	ts.log.Info("Successfully sent Text via Twilio", "sid", sid, "status", status)
	return nil
}
