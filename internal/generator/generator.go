// Package generator renders project templates into zip archives.
package generator

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidProjectName = errors.New("invalid project name")
	ErrUnsafePath         = errors.New("unsafe template path")
	ErrDuplicatePath      = errors.New("duplicate template path")
)

// archiveTime is stamped on every entry so equal input gives equal bytes.
var archiveTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	projectNameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)
	tokenRegex       = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	driveRegex       = regexp.MustCompile(`^[A-Za-z]:`)
)

type File struct {
	Path    string
	Content string
}

// ValidateProjectName enforces 1..64 chars of [A-Za-z0-9._-], not "." or
// "..", and no leading dot or dash.
func ValidateProjectName(name string) error {
	if !projectNameRegex.MatchString(name) {
		return fmt.Errorf("%w: use 1-64 letters, digits, dot, dash or underscore", ErrInvalidProjectName)
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w: must not start with a dot or dash", ErrInvalidProjectName)
	}
	return nil
}

// CleanPath normalises a template path to a relative slash path or rejects
// it when it is empty, absolute or climbs out with "..".
func CleanPath(p string) (string, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if raw == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if strings.HasPrefix(raw, "/") || driveRegex.MatchString(raw) {
		return "", fmt.Errorf("%w: %q is absolute", ErrUnsafePath, p)
	}
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q contains ..", ErrUnsafePath, p)
		}
	}
	cleaned := path.Clean(raw)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("%w: %q is empty after cleaning", ErrUnsafePath, p)
	}
	return cleaned, nil
}

// Substitute replaces {{projectName}} and every declared variable. Spaces
// inside the braces are tolerated; unknown tokens are left as they are.
func Substitute(s string, vars map[string]string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return tokenRegex.ReplaceAllStringFunc(s, func(tok string) string {
		name := tokenRegex.FindStringSubmatch(tok)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return tok
	})
}

// Render validates and substitutes every file. The result is sorted by path.
func Render(projectName string, files []File, vars map[string]string) ([]File, error) {
	if err := ValidateProjectName(projectName); err != nil {
		return nil, err
	}
	all := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		all[k] = v
	}
	all["projectName"] = projectName

	out := make([]File, 0, len(files))
	seen := map[string]bool{}
	for _, f := range files {
		if _, err := CleanPath(f.Path); err != nil {
			return nil, err
		}
		p, err := CleanPath(Substitute(f.Path, all))
		if err != nil {
			return nil, err
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, p)
		}
		seen[p] = true
		out = append(out, File{Path: p, Content: Substitute(f.Content, all)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// WriteZip writes files under a top-level projectName/ directory.
func WriteZip(w io.Writer, projectName string, files []File) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		hdr := &zip.FileHeader{
			Name:     projectName + "/" + f.Path,
			Method:   zip.Deflate,
			Modified: archiveTime,
		}
		hdr.SetMode(0o644)
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(fw, f.Content); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Generate renders and zips in one step.
func Generate(projectName string, files []File, vars map[string]string) ([]byte, error) {
	rendered, err := Render(projectName, files, vars)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteZip(&buf, projectName, rendered); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
