package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/services"
)

type ProjectHandler struct {
	projectService services.ProjectService
}

func NewProjectHandler(projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (ph *ProjectHandler) List(c *gin.Context) {
	projects, err := ph.projectService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (ph *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := ph.projectService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (ph *ProjectHandler) Create(c *gin.Context) {
	var req services.ProjectInput
	if !bindJSON(c, &req) {
		return
	}
	project, err := ph.projectService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (ph *ProjectHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.ProjectInput
	if !bindJSON(c, &req) {
		return
	}
	project, err := ph.projectService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (ph *ProjectHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := ph.projectService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ph *ProjectHandler) Generate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := ph.projectService.Generate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (ph *ProjectHandler) Download(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rc, project, err := ph.projectService.OpenArchive(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "application/zip", rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + project.Name + `.zip"`,
	})
}

func (ph *ProjectHandler) Scaffold(c *gin.Context) {
	var req services.ScaffoldInput
	if !bindJSON(c, &req) {
		return
	}
	archive, err := ph.projectService.Scaffold(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, req.ProjectName+".zip")
	c.Data(http.StatusOK, "application/zip", archive)
}

func (ph *ProjectHandler) ListPlans(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	plans, err := ph.projectService.ListPlans(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (ph *ProjectHandler) GetPlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	plan, err := ph.projectService.GetPlan(c.Request.Context(), id, c.Param("version"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (ph *ProjectHandler) CreatePlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.PlanInput
	if !bindJSON(c, &req) {
		return
	}
	plan, err := ph.projectService.CreatePlan(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (ph *ProjectHandler) GeneratePlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.GeneratePlanInput
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	plan, err := ph.projectService.GeneratePlan(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}
