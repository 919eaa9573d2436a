package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInputString(t *testing.T) {
	assert.Equal(t, "alice", ParseInputString("  Alice \n"))
	assert.Equal(t, "", ParseInputString("   "))
}

func TestParseInputStringPtr(t *testing.T) {
	assert.Nil(t, ParseInputStringPtr(nil))
	blank := "  "
	assert.Nil(t, ParseInputStringPtr(&blank))
	v := " Bob@Example.COM "
	got := ParseInputStringPtr(&v)
	if assert.NotNil(t, got) {
		assert.Equal(t, "bob@example.com", *got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "hello big world", CollapseWhitespace("  hello \n\t big   world "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 10))
	assert.Equal(t, "", Truncate("hi", 0))
}
