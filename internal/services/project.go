package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/bucket"
	"github.com/devforge-org/devforge-backend/internal/eventdata"
	"github.com/devforge-org/devforge-backend/internal/generator"
	"github.com/devforge-org/devforge-backend/internal/llm"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/normalization"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/socket"
	"github.com/devforge-org/devforge-backend/internal/types"
)

const maxPlanBytes = 256 << 10

type ProjectInput struct {
	Name         *string                `json:"name"`
	Description  *string                `json:"description"`
	TemplateSlug *string                `json:"templateSlug"`
	Variables    map[string]string      `json:"variables"`
	Metadata     map[string]interface{} `json:"metadata"`
}

type ScaffoldInput struct {
	TemplateSlug string            `json:"templateSlug"`
	ProjectName  string            `json:"projectName"`
	Variables    map[string]string `json:"variables"`
}

type PlanInput struct {
	Content string `json:"content"`
	Summary string `json:"summary"`
}

type GeneratePlanInput struct {
	LLMConfigID  *uuid.UUID `json:"llmConfigId"`
	Instructions string     `json:"instructions"`
}

type ProjectService interface {
	List(ctx context.Context) ([]*types.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Project, error)
	Create(ctx context.Context, in ProjectInput) (*types.Project, error)
	Update(ctx context.Context, id uuid.UUID, in ProjectInput) (*types.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Generate(ctx context.Context, id uuid.UUID) (*types.Project, error)
	OpenArchive(ctx context.Context, id uuid.UUID) (io.ReadCloser, *types.Project, error)
	Scaffold(ctx context.Context, in ScaffoldInput) ([]byte, error)

	ListPlans(ctx context.Context, projectID uuid.UUID) ([]*types.ProjectPlanVersion, error)
	// GetPlan accepts a 1-based version number or "latest".
	GetPlan(ctx context.Context, projectID uuid.UUID, version string) (*types.ProjectPlanVersion, error)
	CreatePlan(ctx context.Context, projectID uuid.UUID, in PlanInput) (*types.ProjectPlanVersion, error)
	GeneratePlan(ctx context.Context, projectID uuid.UUID, in GeneratePlanInput) (*types.ProjectPlanVersion, error)
}

type projectService struct {
	db              *gorm.DB
	log             *logger.Logger
	projectRepo     repos.ProjectRepo
	templateRepo    repos.TemplateRepo
	planVersionRepo repos.PlanVersionRepo
	fileRepo        repos.FileRepo
	bucket          bucket.Bucket
	llmClient       *llm.Client
	llmConfigs      LLMConfigService
	emitter         Emitter
	now             func() time.Time
}

func NewProjectService(
	db *gorm.DB,
	log *logger.Logger,
	projectRepo repos.ProjectRepo,
	templateRepo repos.TemplateRepo,
	planVersionRepo repos.PlanVersionRepo,
	fileRepo repos.FileRepo,
	b bucket.Bucket,
	llmClient *llm.Client,
	llmConfigs LLMConfigService,
	emitter Emitter,
) ProjectService {
	return &projectService{
		db:              db,
		log:             log.With("service", "ProjectService"),
		projectRepo:     projectRepo,
		templateRepo:    templateRepo,
		planVersionRepo: planVersionRepo,
		fileRepo:        fileRepo,
		bucket:          b,
		llmClient:       llmClient,
		llmConfigs:      llmConfigs,
		emitter:         emitter,
		now:             time.Now,
	}
}

func archiveKey(userID, projectID uuid.UUID) string {
	return path.Join("projects", userID.String(), projectID.String()+".zip")
}

func (ps *projectService) List(ctx context.Context) ([]*types.Project, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := ps.projectRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (ps *projectService) Get(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	project, err := ps.projectRepo.GetByIDForUser(ctx, nil, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "project")
	}
	return project, nil
}

func (ps *projectService) Create(ctx context.Context, in ProjectInput) (*types.Project, error) {
	ps.log.Info("Starting Create project now...")
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	project := &types.Project{UserID: userID, Status: types.ProjectStatusDraft}
	if err := ps.applyInput(ctx, project, in); err != nil {
		return nil, err
	}
	if _, err := ps.projectRepo.Create(ctx, nil, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	ps.log.Info("Project created :)", "projectID", project.ID)
	return project, nil
}

func (ps *projectService) Update(ctx context.Context, id uuid.UUID, in ProjectInput) (*types.Project, error) {
	project, err := ps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ps.applyInput(ctx, project, in); err != nil {
		return nil, err
	}
	if err := ps.projectRepo.Save(ctx, nil, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

func (ps *projectService) applyInput(ctx context.Context, project *types.Project, in ProjectInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := generator.ValidateProjectName(name); err != nil {
			return invalidInput("%s", err.Error())
		}
		project.Name = name
	}
	if project.Name == "" {
		return invalidInput("name is required")
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.TemplateSlug != nil {
		slug := strings.ToLower(strings.TrimSpace(*in.TemplateSlug))
		if slug == "" {
			project.TemplateID = nil
		} else {
			tmpl, err := ps.templateRepo.GetBySlug(ctx, nil, slug)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return invalidInput("unknown template %q", slug)
				}
				return err
			}
			project.TemplateID = &tmpl.ID
		}
	}
	if in.Variables != nil {
		project.Variables = datatypes.NewJSONType(in.Variables)
	}
	if in.Metadata != nil {
		project.Metadata = datatypes.JSONMap(in.Metadata)
	}
	return nil
}

func (ps *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	project, err := ps.Get(ctx, id)
	if err != nil {
		return err
	}
	// Plans go with the project; attached files outlive it unattached.
	txErr := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ps.planVersionRepo.DeleteByProject(ctx, tx, project.ID); err != nil {
			return err
		}
		if _, err := ps.fileRepo.DetachProject(ctx, tx, project.ID); err != nil {
			return err
		}
		if err := ps.projectRepo.Delete(ctx, tx, project.UserID, project.ID); err != nil {
			return notFoundOr(err, "project")
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}
	if project.ArchiveKey != "" {
		if err := ps.bucket.Delete(ctx, project.ArchiveKey); err != nil && !errors.Is(err, bucket.ErrObjectNotFound) {
			ps.log.Warn("Failed to delete project archive", "projectID", project.ID, "error", err)
		}
	}
	return nil
}

func (ps *projectService) templateFor(ctx context.Context, project *types.Project) (*types.ProjectTemplate, error) {
	if project.TemplateID == nil {
		return nil, invalidInput("project has no template")
	}
	tmpl, err := ps.templateRepo.GetByID(ctx, nil, *project.TemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidInput("project template no longer exists")
		}
		return nil, err
	}
	return tmpl, nil
}

func generationError(err error) error {
	if errors.Is(err, generator.ErrInvalidProjectName) ||
		errors.Is(err, generator.ErrUnsafePath) ||
		errors.Is(err, generator.ErrDuplicatePath) {
		return invalidInput("%s", err.Error())
	}
	return fmt.Errorf("failed to generate project: %w", err)
}

func (ps *projectService) Generate(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	ps.log.Info("Starting Generate project now...", "projectID", id)
	project, err := ps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tmpl, err := ps.templateFor(ctx, project)
	if err != nil {
		return nil, err
	}

	archive, genErr := generator.Generate(project.Name, templateFiles(tmpl), templateVars(tmpl, project.Variables.Data()))
	if genErr != nil {
		project.Status = types.ProjectStatusFailed
		if err := ps.projectRepo.Save(ctx, nil, project); err != nil {
			ps.log.Warn("Failed to mark project failed", "projectID", project.ID, "error", err)
		}
		return nil, generationError(genErr)
	}

	key := archiveKey(project.UserID, project.ID)
	if err := ps.bucket.Upload(ctx, key, bytes.NewReader(archive), int64(len(archive)), "application/zip"); err != nil {
		return nil, fmt.Errorf("failed to store archive: %w", err)
	}
	now := ps.now().UTC()
	project.ArchiveKey = key
	project.Status = types.ProjectStatusGenerated
	project.GeneratedAt = &now
	if err := ps.projectRepo.Save(ctx, nil, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	publish(ctx, ps.emitter, eventdata.Event{
		Channel: socket.UserChannel(project.UserID),
		Type:    eventdata.ProjectGenerated,
		Data:    map[string]interface{}{"projectId": project.ID, "name": project.Name, "size": len(archive)},
	})
	ps.log.Info("Project generated :)", "projectID", project.ID, "bytes", len(archive))
	return project, nil
}

func (ps *projectService) OpenArchive(ctx context.Context, id uuid.UUID) (io.ReadCloser, *types.Project, error) {
	project, err := ps.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if project.Status != types.ProjectStatusGenerated || project.ArchiveKey == "" {
		return nil, nil, fmt.Errorf("%w: project has not been generated", ErrNotFound)
	}
	rc, _, err := ps.bucket.Open(ctx, project.ArchiveKey)
	if err != nil {
		if errors.Is(err, bucket.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("%w: project archive", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return rc, project, nil
}

func (ps *projectService) Scaffold(ctx context.Context, in ScaffoldInput) ([]byte, error) {
	name := strings.TrimSpace(in.ProjectName)
	if err := generator.ValidateProjectName(name); err != nil {
		return nil, invalidInput("%s", err.Error())
	}
	slug := strings.ToLower(strings.TrimSpace(in.TemplateSlug))
	if slug == "" {
		return nil, invalidInput("templateSlug is required")
	}
	tmpl, err := ps.templateRepo.GetBySlug(ctx, nil, slug)
	if err != nil {
		return nil, notFoundOr(err, "template")
	}
	archive, err := generator.Generate(name, templateFiles(tmpl), templateVars(tmpl, in.Variables))
	if err != nil {
		return nil, generationError(err)
	}
	return archive, nil
}

func (ps *projectService) ListPlans(ctx context.Context, projectID uuid.UUID) ([]*types.ProjectPlanVersion, error) {
	if _, err := ps.Get(ctx, projectID); err != nil {
		return nil, err
	}
	plans, err := ps.planVersionRepo.ListByProject(ctx, nil, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (ps *projectService) GetPlan(ctx context.Context, projectID uuid.UUID, version string) (*types.ProjectPlanVersion, error) {
	if _, err := ps.Get(ctx, projectID); err != nil {
		return nil, err
	}
	if version == "" || version == "latest" {
		plan, err := ps.planVersionRepo.GetLatest(ctx, nil, projectID)
		if err != nil {
			return nil, notFoundOr(err, "plan version")
		}
		return plan, nil
	}
	n, err := strconv.Atoi(version)
	if err != nil || n < 1 {
		return nil, invalidInput("version must be a positive number or \"latest\"")
	}
	plan, err := ps.planVersionRepo.GetByVersion(ctx, nil, projectID, n)
	if err != nil {
		return nil, notFoundOr(err, "plan version")
	}
	return plan, nil
}

func (ps *projectService) CreatePlan(ctx context.Context, projectID uuid.UUID, in PlanInput) (*types.ProjectPlanVersion, error) {
	if _, err := ps.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return ps.appendPlan(ctx, projectID, in.Content, in.Summary, types.PlanSourceManual)
}

func (ps *projectService) appendPlan(ctx context.Context, projectID uuid.UUID, content, summary, source string) (*types.ProjectPlanVersion, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalidInput("content is required")
	}
	if len(content) > maxPlanBytes {
		return nil, invalidInput("content is larger than %d bytes", maxPlanBytes)
	}
	plan := &types.ProjectPlanVersion{
		ProjectID: projectID,
		Content:   content,
		Summary:   normalization.Truncate(normalization.CollapseWhitespace(summary), 200),
		Source:    source,
	}
	if _, err := ps.planVersionRepo.CreateNext(ctx, nil, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan version: %w", err)
	}
	return plan, nil
}

func (ps *projectService) GeneratePlan(ctx context.Context, projectID uuid.UUID, in GeneratePlanInput) (*types.ProjectPlanVersion, error) {
	ps.log.Info("Starting GeneratePlan now...", "projectID", projectID)
	project, err := ps.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cfg, err := ps.llmConfigs.Resolve(ctx, project.UserID, in.LLMConfigID, nil)
	if err != nil {
		return nil, err
	}

	var previous *types.ProjectPlanVersion
	if p, err := ps.planVersionRepo.GetLatest(ctx, nil, projectID); err == nil {
		previous = p
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	var tmpl *types.ProjectTemplate
	if project.TemplateID != nil {
		tmpl, _ = ps.templateFor(ctx, project)
	}

	res, err := ps.llmClient.Chat(ctx, EndpointFor(cfg), planPrompt(project, tmpl, previous, in.Instructions))
	if err != nil {
		return nil, upstreamError("plan generation failed: %v", err)
	}
	summary := "Generated with " + cfg.Model
	if previous != nil {
		summary = fmt.Sprintf("Revision of v%d generated with %s", previous.Version, cfg.Model)
	}
	return ps.appendPlan(ctx, projectID, res.Content, summary, types.PlanSourceLLM)
}

func planPrompt(project *types.Project, tmpl *types.ProjectTemplate, previous *types.ProjectPlanVersion, instructions string) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", project.Description)
	}
	if tmpl != nil {
		fmt.Fprintf(&b, "Template: %s (%s)\n", tmpl.Name, tmpl.Language)
		fmt.Fprintf(&b, "Template files: %s\n", strings.Join(tmpl.FilePaths(), ", "))
	}
	if previous != nil {
		fmt.Fprintf(&b, "\nCurrent plan (v%d):\n%s\n", previous.Version, previous.Content)
	}
	if s := strings.TrimSpace(instructions); s != "" {
		fmt.Fprintf(&b, "\nInstructions: %s\n", s)
	}
	b.WriteString("\nWrite the next version of the development plan in Markdown.")

	return []llm.Message{
		{Role: types.RoleSystem, Content: "You are a senior engineer writing concise, actionable project plans in Markdown with milestones and tasks."},
		{Role: types.RoleUser, Content: b.String()},
	}
}
