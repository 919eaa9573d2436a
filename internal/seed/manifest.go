package seed

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/devforge-org/devforge-backend/internal/types"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Manifest is the on-disk form of a project template.
type Manifest struct {
	Slug        string                   `yaml:"slug"`
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Language    string                   `yaml:"language"`
	Version     string                   `yaml:"version"`
	Tags        []string                 `yaml:"tags"`
	Variables   []types.TemplateVariable `yaml:"variables"`
	Files       []types.TemplateFile     `yaml:"files"`
}

func (m *Manifest) validate() error {
	m.Slug = strings.ToLower(strings.TrimSpace(m.Slug))
	if m.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("template %q: name is required", m.Slug)
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("template %q: at least one file is required", m.Slug)
	}
	return nil
}

func (m *Manifest) toTemplate(source string) *types.ProjectTemplate {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	vars := m.Variables
	if vars == nil {
		vars = []types.TemplateVariable{}
	}
	return &types.ProjectTemplate{
		Slug:        m.Slug,
		Name:        strings.TrimSpace(m.Name),
		Description: strings.TrimSpace(m.Description),
		Language:    m.Language,
		Version:     m.Version,
		Tags:        datatypes.NewJSONType(tags),
		Variables:   datatypes.NewJSONType(vars),
		Files:       datatypes.NewJSONType(m.Files),
		Source:      source,
	}
}

func parseManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &m, nil
}

func isManifest(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func loadFS(fsys fs.FS, source string) ([]*types.ProjectTemplate, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	seen := make(map[string]string)
	var out []*types.ProjectTemplate
	for _, e := range entries {
		if e.IsDir() || !isManifest(e.Name()) {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		m, err := parseManifest(e.Name(), data)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[m.Slug]; dup {
			return nil, fmt.Errorf("duplicate template slug %q in %s and %s", m.Slug, prev, e.Name())
		}
		seen[m.Slug] = e.Name()
		out = append(out, m.toTemplate(source))
	}
	return out, nil
}

// LoadBuiltin returns the templates compiled into the binary.
func LoadBuiltin() ([]*types.ProjectTemplate, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	return loadFS(sub, types.TemplateSourceBuiltin)
}

// LoadDir returns the templates found in dir. A missing dir yields none.
func LoadDir(dir string) ([]*types.ProjectTemplate, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	return loadFS(os.DirFS(dir), types.TemplateSourceDirectory)
}
