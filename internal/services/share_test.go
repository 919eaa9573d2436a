package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct {
	to, subject, plain, html string
}

type fakeEmail struct {
	configured bool
	err        error
	sent       []sentEmail
}

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, plain, html string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to, subject, plain, html})
	return nil
}

func (f *fakeEmail) Configured() bool { return f.configured }

type fakeText struct {
	configured bool
	bodies     []string
}

func (f *fakeText) SendText(_ context.Context, to, body string) error {
	f.bodies = append(f.bodies, to+" "+body)
	return nil
}

func (f *fakeText) Configured() bool { return f.configured }

func TestShare(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "eli")
	e.withLLMConfig(t, ctx)
	conv, err := e.conversations.Create(ctx, ConversationInput{Title: strPtr("Release notes")})
	require.NoError(t, err)
	_, err = e.conversations.Send(ctx, conv.ID, SendInput{Content: "draft them", WebSearch: boolPtr(false)}, nil)
	require.NoError(t, err)

	email := &fakeEmail{configured: true}
	text := &fakeText{configured: true}
	share := NewShareService(e.log, e.conversations, email, text, "https://devforge.example/")

	res, err := share.Share(ctx, conv.ID, ShareInput{Email: strPtr("team@example.com"), Phone: strPtr("+1 (555) 123-4567")})
	require.NoError(t, err)
	assert.True(t, res.Email)
	assert.True(t, res.SMS)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "team@example.com", email.sent[0].to)
	assert.Equal(t, "DevForge conversation: Release notes", email.sent[0].subject)
	assert.Contains(t, email.sent[0].plain, "https://devforge.example/conversations/"+conv.ID.String())
	assert.Contains(t, email.sent[0].html, "Hello from the model")

	require.Len(t, text.bodies, 1)
	assert.Equal(t, `+15551234567 DevForge: "Release notes" (2 messages) https://devforge.example/conversations/`+conv.ID.String(), text.bodies[0])
}

func TestShare_Rejects(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "fay")
	conv, err := e.conversations.Create(ctx, ConversationInput{})
	require.NoError(t, err)

	email := &fakeEmail{}
	text := &fakeText{}
	share := NewShareService(e.log, e.conversations, email, text, "http://localhost:8080")

	_, err = share.Share(ctx, conv.ID, ShareInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = share.Share(ctx, conv.ID, ShareInput{Email: strPtr("not an email")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = share.Share(ctx, conv.ID, ShareInput{Phone: strPtr("555-1234")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// channels not configured
	_, err = share.Share(ctx, conv.ID, ShareInput{Email: strPtr("a@example.com")})
	assert.ErrorIs(t, err, ErrUpstream)
	_, err = share.Share(ctx, conv.ID, ShareInput{Phone: strPtr("+15551234567")})
	assert.ErrorIs(t, err, ErrUpstream)

	email.configured = true
	email.err = errors.New("smtp down")
	_, err = share.Share(ctx, conv.ID, ShareInput{Email: strPtr("a@example.com")})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestSMSSummary(t *testing.T) {
	assert.Equal(t, `DevForge: "Hi" (1 message) http://x/c`, smsSummary("Hi", 1, "http://x/c"))
	long := smsSummary(strings.Repeat("é", 80), 3, "l")
	assert.Equal(t, `DevForge: "`+strings.Repeat("é", 60)+`" (3 messages) l`, long)
}
