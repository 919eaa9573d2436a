package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/devforge-org/devforge-backend/internal/generator"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/types"
)

// TemplateDetail lists a template's paths without their contents.
type TemplateDetail struct {
	*types.ProjectTemplate
	Files []string `json:"files"`
}

type TemplateService interface {
	List(ctx context.Context) ([]*types.ProjectTemplate, error)
	Get(ctx context.Context, slug string) (*TemplateDetail, error)
}

type templateService struct {
	log          *logger.Logger
	templateRepo repos.TemplateRepo
}

func NewTemplateService(log *logger.Logger, templateRepo repos.TemplateRepo) TemplateService {
	return &templateService{log: log.With("service", "TemplateService"), templateRepo: templateRepo}
}

func (ts *templateService) List(ctx context.Context) ([]*types.ProjectTemplate, error) {
	templates, err := ts.templateRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

func (ts *templateService) Get(ctx context.Context, slug string) (*TemplateDetail, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, invalidInput("slug is required")
	}
	tmpl, err := ts.templateRepo.GetBySlug(ctx, nil, slug)
	if err != nil {
		return nil, notFoundOr(err, "template")
	}
	return &TemplateDetail{ProjectTemplate: tmpl, Files: tmpl.FilePaths()}, nil
}

// templateVars resolves the declared variables of tmpl: given values win over
// defaults and undeclared names are dropped so their tokens stay untouched.
func templateVars(tmpl *types.ProjectTemplate, given map[string]string) map[string]string {
	vars := map[string]string{}
	for _, v := range tmpl.Variables.Data() {
		if val, ok := given[v.Name]; ok {
			vars[v.Name] = val
			continue
		}
		vars[v.Name] = v.Default
	}
	return vars
}

func templateFiles(tmpl *types.ProjectTemplate) []generator.File {
	src := tmpl.Files.Data()
	out := make([]generator.File, 0, len(src))
	for _, f := range src {
		out = append(out, generator.File{Path: f.Path, Content: f.Content})
	}
	return out
}
