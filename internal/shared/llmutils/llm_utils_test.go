package llmutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	// "é" is two bytes; cutting inside it backs off to the rune start
	assert.Equal(t, "a...", Truncate("aé", 2))
}

func TestStripThink(t *testing.T) {
	assert.Equal(t, "answer", StripThink("<think>\nplan\n</think>answer"))
	assert.Equal(t, "no tags", StripThink("no tags"))
}

func TestStringOrDefault(t *testing.T) {
	assert.Equal(t, "x", StringOrDefault("x", "y"))
	assert.Equal(t, "y", StringOrDefault("", "y"))
}
