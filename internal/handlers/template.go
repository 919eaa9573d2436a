package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/services"
)

type TemplateHandler struct {
	templateService services.TemplateService
}

func NewTemplateHandler(templateService services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

func (th *TemplateHandler) List(c *gin.Context) {
	templates, err := th.templateService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (th *TemplateHandler) Get(c *gin.Context) {
	tmpl, err := th.templateService.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}
