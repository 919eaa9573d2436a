package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/testutil"
	"github.com/devforge-org/devforge-backend/internal/types"
)

const customManifest = `
slug: Custom-Tool
name: Custom tool
language: Rust
tags: [rust]
files:
  - path: Cargo.toml
    content: |
      [package]
      name = "{{projectName}}"
`

func writeManifest(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadBuiltin(t *testing.T) {
	templates, err := LoadBuiltin()
	require.NoError(t, err)

	slugs := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		slugs = append(slugs, tmpl.Slug)
		assert.Equal(t, types.TemplateSourceBuiltin, tmpl.Source)
		assert.NotEmpty(t, tmpl.Files.Data(), tmpl.Slug)
	}
	assert.ElementsMatch(t, []string{"go-service", "python-cli", "react-vite"}, slugs)
}

func TestLoadDir(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		templates, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, templates)
	})

	t.Run("skips non manifests", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, "custom.yml", customManifest)
		writeManifest(t, dir, "notes.txt", "not yaml")
		templates, err := LoadDir(dir)
		require.NoError(t, err)
		require.Len(t, templates, 1)
		assert.Equal(t, "custom-tool", templates[0].Slug)
		assert.Equal(t, types.TemplateSourceDirectory, templates[0].Source)
		assert.Equal(t, []string{"rust"}, templates[0].Tags.Data())
	})

	t.Run("invalid manifests", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, "a.yaml", "slug: a\nname: A\n")
		_, err := LoadDir(dir)
		assert.ErrorContains(t, err, "at least one file")

		dir = t.TempDir()
		writeManifest(t, dir, "a.yaml", "slug: [unclosed\n")
		_, err = LoadDir(dir)
		assert.ErrorContains(t, err, "parse a.yaml")

		dir = t.TempDir()
		writeManifest(t, dir, "a.yaml", customManifest)
		writeManifest(t, dir, "b.yaml", customManifest)
		_, err = LoadDir(dir)
		assert.ErrorContains(t, err, "duplicate template slug")
	})
}

func TestSyncTemplates(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewSQLite(t)
	log := logger.NewNop()
	repo := repos.NewTemplateRepo(gdb, log)
	dir := t.TempDir()
	writeManifest(t, dir, "custom.yaml", customManifest)

	res, err := SyncTemplates(ctx, gdb, repo, dir, log)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 4}, res)

	res, err = SyncTemplates(ctx, gdb, repo, dir, log)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res, "second sync is a no-op")

	writeManifest(t, dir, "custom.yaml", customManifest+"description: Now described\n")
	res, err = SyncTemplates(ctx, gdb, repo, dir, log)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1}, res)
	got, err := repo.GetBySlug(ctx, nil, "custom-tool")
	require.NoError(t, err)
	assert.Equal(t, "Now described", got.Description)

	require.NoError(t, os.Remove(filepath.Join(dir, "custom.yaml")))
	res, err = SyncTemplates(ctx, gdb, repo, dir, log)
	require.NoError(t, err)
	assert.Equal(t, Result{Deleted: 1}, res)

	all, err := repo.ListAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3, "built-ins survive")
}

func TestSyncTemplates_DirectoryCannotShadowBuiltin(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewSQLite(t)
	log := logger.NewNop()
	repo := repos.NewTemplateRepo(gdb, log)
	dir := t.TempDir()
	writeManifest(t, dir, "go.yaml", "slug: go-service\nname: Impostor\nfiles:\n  - path: x\n    content: y\n")

	res, err := SyncTemplates(ctx, gdb, repo, dir, log)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)

	got, err := repo.GetBySlug(ctx, nil, "go-service")
	require.NoError(t, err)
	assert.Equal(t, "Go HTTP service", got.Name)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, 20*time.Millisecond, func(context.Context) error {
			calls <- struct{}{}
			return nil
		}, logger.NewNop())
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeManifest(t, dir, "notes.txt", "ignored")
	writeManifest(t, dir, "custom.yaml", customManifest)
	writeManifest(t, dir, "custom.yaml", customManifest+"version: \"2\"\n")

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("resync was not called")
	}

	cancel()
	require.NoError(t, <-done)
}
