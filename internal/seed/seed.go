package seed

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/types"
)

// Result counts what a sync changed.
type Result struct {
	Created int
	Updated int
	Deleted int
}

// SeedAll syncs project templates from the embedded manifests and cfg.Dir.
func SeedAll(ctx context.Context, db *gorm.DB, templateRepo repos.TemplateRepo, cfg config.TemplatesConfig, log *logger.Logger) error {
	log.Info("Running SeedAll... syncing project templates")
	res, err := SyncTemplates(ctx, db, templateRepo, cfg.Dir, log)
	if err != nil {
		return fmt.Errorf("failed to sync templates: %w", err)
	}
	log.Info("SeedAll Complete!", "created", res.Created, "updated", res.Updated, "deleted", res.Deleted)
	return nil
}

// SyncTemplates makes the template table match the built-in manifests plus those in dir.
// Directory manifests whose slug collides with a built-in are ignored.
func SyncTemplates(ctx context.Context, db *gorm.DB, templateRepo repos.TemplateRepo, dir string, log *logger.Logger) (Result, error) {
	var res Result
	builtin, err := LoadBuiltin()
	if err != nil {
		return res, fmt.Errorf("failed loading built-in templates: %w", err)
	}
	fromDir, err := LoadDir(dir)
	if err != nil {
		return res, fmt.Errorf("failed loading templates from %s: %w", dir, err)
	}

	desired := make(map[string]*types.ProjectTemplate, len(builtin)+len(fromDir))
	order := make([]string, 0, len(builtin)+len(fromDir))
	for _, t := range builtin {
		desired[t.Slug] = t
		order = append(order, t.Slug)
	}
	for _, t := range fromDir {
		if _, taken := desired[t.Slug]; taken {
			log.Warn("Template in directory shadows a built-in, ignoring", "slug", t.Slug, "dir", dir)
			continue
		}
		desired[t.Slug] = t
		order = append(order, t.Slug)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := templateRepo.ListAll(ctx, tx)
		if err != nil {
			return fmt.Errorf("failed fetching existing templates: %w", err)
		}
		existingMap := make(map[string]*types.ProjectTemplate, len(existing))
		for _, e := range existing {
			existingMap[e.Slug] = e
		}

		var toDelete []uuid.UUID
		for _, e := range existing {
			if _, ok := desired[e.Slug]; !ok && e.Source == types.TemplateSourceDirectory {
				toDelete = append(toDelete, e.ID)
			}
		}
		var toCreate []*types.ProjectTemplate
		for _, slug := range order {
			want := desired[slug]
			have, ok := existingMap[slug]
			if !ok {
				toCreate = append(toCreate, want)
				continue
			}
			if !changed(have, want) {
				continue
			}
			apply(have, want)
			if err := templateRepo.Save(ctx, tx, have); err != nil {
				return fmt.Errorf("failed updating template %s: %w", slug, err)
			}
			res.Updated++
		}
		if err := templateRepo.DeleteByIDs(ctx, tx, toDelete); err != nil {
			return fmt.Errorf("failed deleting removed templates: %w", err)
		}
		res.Deleted = len(toDelete)
		if _, err := templateRepo.Create(ctx, tx, toCreate); err != nil {
			return fmt.Errorf("failed creating new templates: %w", err)
		}
		res.Created = len(toCreate)
		return nil
	})
	return res, err
}

func changed(have, want *types.ProjectTemplate) bool {
	return have.Name != want.Name ||
		have.Description != want.Description ||
		have.Language != want.Language ||
		have.Version != want.Version ||
		have.Source != want.Source ||
		!reflect.DeepEqual(have.Tags.Data(), want.Tags.Data()) ||
		!reflect.DeepEqual(have.Variables.Data(), want.Variables.Data()) ||
		!reflect.DeepEqual(have.Files.Data(), want.Files.Data())
}

func apply(dst, src *types.ProjectTemplate) {
	dst.Name = src.Name
	dst.Description = src.Description
	dst.Language = src.Language
	dst.Version = src.Version
	dst.Source = src.Source
	dst.Tags = src.Tags
	dst.Variables = src.Variables
	dst.Files = src.Files
}
