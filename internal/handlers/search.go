package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/services"
)

type SearchHandler struct {
	searchService services.SearchService
}

func NewSearchHandler(searchService services.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

func (sh *SearchHandler) ListEngines(c *gin.Context) {
	engines, err := sh.searchService.ListEngines(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engines)
}

func (sh *SearchHandler) GetEngine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	engine, err := sh.searchService.GetEngine(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engine)
}

func (sh *SearchHandler) CreateEngine(c *gin.Context) {
	var req services.SearchEngineInput
	if !bindJSON(c, &req) {
		return
	}
	engine, err := sh.searchService.CreateEngine(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, engine)
}

func (sh *SearchHandler) UpdateEngine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.SearchEngineInput
	if !bindJSON(c, &req) {
		return
	}
	engine, err := sh.searchService.UpdateEngine(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, engine)
}

func (sh *SearchHandler) DeleteEngine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := sh.searchService.DeleteEngine(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (sh *SearchHandler) Search(c *gin.Context) {
	var req services.SearchInput
	if !bindJSON(c, &req) {
		return
	}
	resp, err := sh.searchService.Search(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
