package eventdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendWithoutBuffer(t *testing.T) {
	assert.False(t, Append(context.Background(), Event{Type: FileAnalyzed}))
}

func TestAppendAndDrain(t *testing.T) {
	ctx := WithEventData(context.Background())
	require.True(t, Append(ctx, Event{Channel: "user:1", Type: ConversationUpdated}))
	require.True(t, Append(ctx, Event{Channel: "user:1", Type: ProjectGenerated}))

	ed := GetEventData(ctx)
	require.NotNil(t, ed)
	got := ed.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, ConversationUpdated, got[0].Type)
	assert.Equal(t, ProjectGenerated, got[1].Type)
	assert.Empty(t, ed.Drain())
}
