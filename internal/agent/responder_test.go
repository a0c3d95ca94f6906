package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateReply(t *testing.T) {
	assert.Equal(t, "hello", truncateReply("hello", 10))
	assert.Equal(t, "hello", truncateReply("hello", 5))
	assert.Equal(t, "hel", truncateReply("hello", 3))

	// Zero or negative max disables truncation.
	assert.Equal(t, "hello", truncateReply("hello", 0))
	assert.Equal(t, "hello", truncateReply("hello", -1))
}

func TestTruncateReplyKeepsRunesIntact(t *testing.T) {
	// A cut landing inside the two-byte é backs up to the previous rune.
	assert.Equal(t, "h", truncateReply("héllo", 2))
	assert.Equal(t, "hé", truncateReply("héllo", 3))

	// Same for a four-byte emoji.
	s := "ok " + "\U0001F44D" + " done"
	for max := 1; max <= len(s); max++ {
		out := truncateReply(s, max)
		assert.True(t, utf8.ValidString(out), "max %d produced invalid utf8", max)
		assert.LessOrEqual(t, len(out), max)
		assert.True(t, strings.HasPrefix(s, out))
	}
}
