package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/services"
)

type LLMConfigHandler struct {
	llmConfigService services.LLMConfigService
}

func NewLLMConfigHandler(llmConfigService services.LLMConfigService) *LLMConfigHandler {
	return &LLMConfigHandler{llmConfigService: llmConfigService}
}

func (lh *LLMConfigHandler) List(c *gin.Context) {
	configs, err := lh.llmConfigService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

func (lh *LLMConfigHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cfg, err := lh.llmConfigService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (lh *LLMConfigHandler) Create(c *gin.Context) {
	var req services.LLMConfigInput
	if !bindJSON(c, &req) {
		return
	}
	cfg, err := lh.llmConfigService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (lh *LLMConfigHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.LLMConfigInput
	if !bindJSON(c, &req) {
		return
	}
	cfg, err := lh.llmConfigService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (lh *LLMConfigHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := lh.llmConfigService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (lh *LLMConfigHandler) SetDefault(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cfg, err := lh.llmConfigService.SetDefault(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (lh *LLMConfigHandler) Test(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := lh.llmConfigService.Test(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (lh *LLMConfigHandler) Models(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	models, err := lh.llmConfigService.Models(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
