package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

func TestNormalizeUsername(t *testing.T) {
	got, err := NormalizeUsername("  Alice.Dev ")
	require.NoError(t, err)
	assert.Equal(t, "alice.dev", got)

	for _, bad := range []string{"", "ab", "has space", "emoji😀", "slash/name"} {
		_, err := NormalizeUsername(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	raw := " Dev@Example.com "
	got, err = NormalizeEmail(&raw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "dev@example.com", *got)

	bad := "not-an-email"
	_, err = NormalizeEmail(&bad)
	assert.Error(t, err)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword(context.Background(), logger.NewNop(), "s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "AL", Initials("ada lovelace"))
	assert.Equal(t, "JD", Initials("john.doe"))
	assert.Equal(t, "X", Initials("x"))
	assert.Equal(t, "?", Initials("  "))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "main.go", SanitizeFileName("main.go"))
	assert.Equal(t, "passwd", SanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "evil.txt", SanitizeFileName("C:\\temp\\evil.txt"))
	assert.Equal(t, "my_file_1_.txt", SanitizeFileName("my file(1).txt"))
	assert.Equal(t, "file", SanitizeFileName(""))
	assert.Equal(t, "file", SanitizeFileName(".."))
}
