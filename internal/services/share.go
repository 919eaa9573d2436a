package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devforge-org/devforge-backend/internal/export"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/templates"
	"github.com/devforge-org/devforge-backend/internal/types"
	"github.com/devforge-org/devforge-backend/internal/utils"
)

var phoneRegex = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

type ShareInput struct {
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type ShareResult struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

type ShareService interface {
	Share(ctx context.Context, conversationID uuid.UUID, in ShareInput) (*ShareResult, error)
}

type shareService struct {
	log           *logger.Logger
	conversations ConversationService
	email         EmailService
	text          TextService
	publicBaseURL string
	now           func() time.Time
}

func NewShareService(
	log *logger.Logger,
	conversations ConversationService,
	email EmailService,
	text TextService,
	publicBaseURL string,
) ShareService {
	return &shareService{
		log:           log.With("service", "ShareService"),
		conversations: conversations,
		email:         email,
		text:          text,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		now:           time.Now,
	}
}

func (ss *shareService) Share(ctx context.Context, conversationID uuid.UUID, in ShareInput) (*ShareResult, error) {
	ss.log.Info("Starting Share now...", "conversationID", conversationID)
	email, err := utils.NormalizeEmail(in.Email)
	if err != nil {
		return nil, invalidInput("%s", err.Error())
	}
	phone := ""
	if in.Phone != nil {
		phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(*in.Phone))
		if phone != "" && !phoneRegex.MatchString(phone) {
			return nil, invalidInput("phone must be in E.164 form, e.g. +15551234567")
		}
	}
	if email == nil && phone == "" {
		return nil, invalidInput("an email or phone target is required")
	}
	if email != nil && !ss.email.Configured() {
		return nil, upstreamError("email sharing is not configured")
	}
	if phone != "" && !ss.text.Configured() {
		return nil, upstreamError("SMS sharing is not configured")
	}

	conv, err := ss.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := ss.conversations.Messages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	title := export.Title(conv)
	link := fmt.Sprintf("%s/conversations/%s", ss.publicBaseURL, conv.ID)
	res := &ShareResult{}

	if email != nil {
		body, err := ss.emailBody(title, link, msgs)
		if err != nil {
			return nil, err
		}
		plain := fmt.Sprintf("%s\n\nOpen it in DevForge: %s\n", title, link)
		if err := ss.email.SendEmail(ctx, *email, "DevForge conversation: "+title, plain, body); err != nil {
			return nil, deliveryError(err)
		}
		res.Email = true
	}
	if phone != "" {
		if err := ss.text.SendText(ctx, phone, smsSummary(title, int64(len(msgs)), link)); err != nil {
			return nil, deliveryError(err)
		}
		res.SMS = true
	}
	ss.log.Info("Conversation shared :)", "conversationID", conv.ID, "email", res.Email, "sms", res.SMS)
	return res, nil
}

func (ss *shareService) emailBody(title, link string, msgs []*types.Message) (string, error) {
	transcript, err := export.MessagesHTML(msgs)
	if err != nil {
		return "", fmt.Errorf("failed to render transcript: %w", err)
	}
	return templates.RenderShareHTML(templates.ShareEmailData{
		Title:        title,
		Link:         link,
		MessageCount: len(msgs),
		Transcript:   template.HTML(transcript),
		Year:         ss.now().Year(),
	})
}

func deliveryError(err error) error {
	if errors.Is(err, ErrChannelNotConfigured) {
		return upstreamError("%v", err)
	}
	return upstreamError("delivery failed: %v", err)
}

func smsSummary(title string, count int64, link string) string {
	if len([]rune(title)) > 60 {
		title = string([]rune(title)[:60])
	}
	noun := "messages"
	if count == 1 {
		noun = "message"
	}
	return fmt.Sprintf("DevForge: %q (%d %s) %s", title, count, noun, link)
}
