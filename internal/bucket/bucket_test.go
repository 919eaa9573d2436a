package bucket

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

func TestCleanKey(t *testing.T) {
	got, err := CleanKey("files/u1/f1/main.go")
	require.NoError(t, err)
	assert.Equal(t, "files/u1/f1/main.go", got)

	for _, bad := range []string{"", "/abs", "a/../b", "a//b", "./a", "a\\b"} {
		_, err := CleanKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocal(t.TempDir(), logger.NewNop())
	require.NoError(t, err)

	body := "package main\n"
	require.NoError(t, b.Upload(ctx, "files/u/f/main.go", strings.NewReader(body), int64(len(body)), "text/x-go"))

	rc, info, err := b.Open(ctx, "files/u/f/main.go")
	require.NoError(t, err)
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
	assert.Equal(t, int64(len(body)), info.Size)
	assert.Equal(t, "text/x-go", info.ContentType)

	require.NoError(t, b.Delete(ctx, "files/u/f/main.go"))
	_, _, err = b.Open(ctx, "files/u/f/main.go")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.NoError(t, b.Delete(ctx, "files/u/f/main.go"))
}

func TestLocalRejectsTraversal(t *testing.T) {
	b, err := NewLocal(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	err = b.Upload(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)
}
