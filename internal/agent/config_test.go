package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"personality": "friendly support rep",
	})
	require.NoError(t, err)
	assert.Equal(t, "friendly support rep", cfg.Personality)
	assert.Equal(t, defaultMaxReplyLength, cfg.MaxReplyLength)
	assert.Zero(t, cfg.MinReplyDelayMs)
	assert.Zero(t, cfg.MaxReplyDelayMs)
}

func TestParseConfigWeakTyping(t *testing.T) {
	// Numbers arrive as json floats or strings depending on the client.
	cfg, err := ParseConfig(map[string]interface{}{
		"min_reply_delay_ms": float64(500),
		"max_reply_delay_ms": "1500",
		"keyword_triggers":   []interface{}{"price", "order"},
	})
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MinReplyDelayMs)
	assert.Equal(t, 1500, cfg.MaxReplyDelayMs)
	assert.Equal(t, []string{"price", "order"}, cfg.KeywordTriggers)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig(map[string]interface{}{
		"personality": "x",
		"tempurature": 0.7,
	})
	assert.Error(t, err)
}

func TestParseConfigValidation(t *testing.T) {
	_, err := ParseConfig(map[string]interface{}{"min_reply_delay_ms": -1})
	assert.Error(t, err)

	_, err = ParseConfig(map[string]interface{}{
		"min_reply_delay_ms": 2000,
		"max_reply_delay_ms": 1000,
	})
	assert.Error(t, err)

	_, err = ParseConfig(map[string]interface{}{"max_reply_delay_ms": maxReplyDelayCeiling + 1})
	assert.Error(t, err)

	// Max delay defaults to min when only min is set.
	cfg, err := ParseConfig(map[string]interface{}{"min_reply_delay_ms": 750})
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.MaxReplyDelayMs)
}

func TestConfigMatches(t *testing.T) {
	open := Config{}
	assert.True(t, open.Matches("anything at all"))

	cfg := Config{KeywordTriggers: []string{"Price", "order status"}}
	assert.True(t, cfg.Matches("what is the PRICE of this?"))
	assert.True(t, cfg.Matches("my Order Status please"))
	assert.False(t, cfg.Matches("hello there"))
	assert.False(t, cfg.Matches(""))
}

func TestReplyDelayBounds(t *testing.T) {
	cfg := Config{MinReplyDelayMs: 100, MaxReplyDelayMs: 200}
	for i := 0; i < 50; i++ {
		d := replyDelay(cfg)
		assert.GreaterOrEqual(t, d.Milliseconds(), int64(100))
		assert.LessOrEqual(t, d.Milliseconds(), int64(200))
	}
	assert.Zero(t, replyDelay(Config{}))
}
