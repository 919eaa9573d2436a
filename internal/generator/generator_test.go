package generator

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProjectName(t *testing.T) {
	for _, ok := range []string{"app", "my-app_2", "a.b", "X"} {
		assert.NoError(t, ValidateProjectName(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", ".hidden", "-flag", "has space", "a/b", string(make([]byte, 65))} {
		assert.ErrorIs(t, ValidateProjectName(bad), ErrInvalidProjectName, bad)
	}
}

func TestCleanPath(t *testing.T) {
	p, err := CleanPath("src//./main.go")
	require.NoError(t, err)
	assert.Equal(t, "src/main.go", p)

	p, err = CleanPath(`cmd\app\main.go`)
	require.NoError(t, err)
	assert.Equal(t, "cmd/app/main.go", p)

	for _, bad := range []string{"", "  ", "/etc/passwd", `\x`, "C:/win", "c:x", "../x", "a/../../x", "a/..", ".", "./"} {
		_, err := CleanPath(bad)
		assert.ErrorIs(t, err, ErrUnsafePath, bad)
	}
}

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"projectName": "demo", "port": "8080"}
	assert.Equal(t, "demo demo 8080 {{unknown}}", Substitute("{{projectName}} {{ projectName }} {{port}} {{unknown}}", vars))
	assert.Equal(t, "no tokens", Substitute("no tokens", vars))
}

func TestRenderRejectsTraversalAfterSubstitution(t *testing.T) {
	_, err := Render("demo", []File{{Path: "{{dir}}/x.txt"}}, map[string]string{"dir": ".."})
	assert.ErrorIs(t, err, ErrUnsafePath)

	_, err = Render("demo", []File{{Path: "{{dir}}x.txt"}}, map[string]string{"dir": "/"})
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestRenderRejectsDuplicates(t *testing.T) {
	_, err := Render("demo", []File{{Path: "a.txt"}, {Path: "./a.txt"}}, nil)
	assert.True(t, errors.Is(err, ErrDuplicatePath))
}

func TestGenerateZip(t *testing.T) {
	files := []File{
		{Path: "{{projectName}}.go", Content: "package {{ projectName }}\n"},
		{Path: "README.md", Content: "# {{projectName}} on {{port}}"},
	}
	data, err := Generate("demo", files, map[string]string{"port": "9000"})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "demo/README.md", zr.File[0].Name)
	assert.Equal(t, "demo/demo.go", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "package demo\n", string(body))
	assert.Equal(t, "-rw-r--r--", zr.File[0].Mode().String())

	again, err := Generate("demo", files, map[string]string{"port": "9000"})
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestGenerateInvalidName(t *testing.T) {
	_, err := Generate("../evil", []File{{Path: "a"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidProjectName)
}
