package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/errordata"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/services"
)

type ConversationHandler struct {
	log                 *logger.Logger
	conversationService services.ConversationService
	shareService        services.ShareService
}

func NewConversationHandler(log *logger.Logger, conversationService services.ConversationService, shareService services.ShareService) *ConversationHandler {
	return &ConversationHandler{
		log:                 log.With("handler", "ConversationHandler"),
		conversationService: conversationService,
		shareService:        shareService,
	}
}

func (ch *ConversationHandler) List(c *gin.Context) {
	convs, err := ch.conversationService.List(c.Request.Context(), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (ch *ConversationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	conv, err := ch.conversationService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (ch *ConversationHandler) Create(c *gin.Context) {
	var req services.ConversationInput
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	conv, err := ch.conversationService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (ch *ConversationHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.ConversationInput
	if !bindJSON(c, &req) {
		return
	}
	conv, err := ch.conversationService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (ch *ConversationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := ch.conversationService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *ConversationHandler) Messages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	msgs, err := ch.conversationService.Messages(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (ch *ConversationHandler) ClearMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := ch.conversationService.ClearMessages(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// Send answers with JSON, or with an SSE stream of delta/done/error events
// when the body asks for stream.
func (ch *ConversationHandler) Send(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.SendInput
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	if !req.Stream {
		res, err := ch.conversationService.Send(ctx, id, req, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	w := &sseWriter{c: c}
	res, err := ch.conversationService.Send(ctx, id, req, func(delta string) error {
		return w.event("delta", gin.H{"content": delta})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			ch.log.Debug("Client went away during stream", "conversationID", id)
			return
		}
		if !w.started {
			respondError(c, err)
			return
		}
		errordata.Record(ctx, err)
		status, msg := publicError(err)
		_ = w.event("error", gin.H{"error": msg, "status": status})
		return
	}
	_ = w.event("done", res)
}

func (ch *ConversationHandler) Export(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, conv, err := ch.conversationService.Export(c.Request.Context(), id, c.Query("format"))
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "conversation-"+conv.ID.String()+"."+doc.Extension)
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func (ch *ConversationHandler) Share(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.ShareInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := ch.shareService.Share(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
