package vectorstore

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestChunkText(t *testing.T) {
	assert.Nil(t, ChunkText("   \n", 10, 2))
	assert.Equal(t, []string{"abc"}, ChunkText("abc", 10, 2))
	assert.Equal(t, []string{"abcde", "defgh", "ghij"}, ChunkText("abcdefghij", 5, 2))
}

func TestChunkTextDefaultsAndRunes(t *testing.T) {
	text := strings.Repeat("é", 2500)
	chunks := ChunkText(text, ChunkSize, ChunkOverlap)
	assert.Len(t, chunks, 3)
	assert.Equal(t, ChunkSize, len([]rune(chunks[0])))
	assert.Equal(t, 2500-2000, len([]rune(chunks[2])))
}

func TestPointIDStable(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, PointID(id, 3), PointID(id, 3))
	assert.NotEqual(t, PointID(id, 3), PointID(id, 4))
	_, err := uuid.Parse(PointID(id, 0))
	assert.NoError(t, err)
}

func TestParseHostPort(t *testing.T) {
	h, p := parseHostPort("qdrant:7000", "localhost", 6334)
	assert.Equal(t, "qdrant", h)
	assert.Equal(t, 7000, p)
	h, p = parseHostPort("qdrant", "localhost", 6334)
	assert.Equal(t, "qdrant", h)
	assert.Equal(t, 6334, p)
}
