package agent

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	defaultMaxReplyLength = 1000
	maxReplyDelayCeiling  = 120_000 // two minutes
)

// Config is the fixed set of recognized agent options. Arbitrary blobs are
// rejected at the boundary; unknown keys are a validation error.
type Config struct {
	Personality     string   `mapstructure:"personality" json:"personality"`
	MinReplyDelayMs int      `mapstructure:"min_reply_delay_ms" json:"min_reply_delay_ms"`
	MaxReplyDelayMs int      `mapstructure:"max_reply_delay_ms" json:"max_reply_delay_ms"`
	KeywordTriggers []string `mapstructure:"keyword_triggers" json:"keyword_triggers"`
	MaxReplyLength  int      `mapstructure:"max_reply_length" json:"max_reply_length"`
}

// ParseConfig decodes and validates a raw option map into a Config.
func ParseConfig(raw map[string]interface{}) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("agent config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate normalizes defaults and checks option ranges.
func (c *Config) Validate() error {
	if c.MinReplyDelayMs < 0 || c.MaxReplyDelayMs < 0 {
		return fmt.Errorf("agent config: reply delays must be >= 0")
	}
	if c.MaxReplyDelayMs == 0 {
		c.MaxReplyDelayMs = c.MinReplyDelayMs
	}
	if c.MinReplyDelayMs > c.MaxReplyDelayMs {
		return fmt.Errorf("agent config: min_reply_delay_ms %d > max_reply_delay_ms %d",
			c.MinReplyDelayMs, c.MaxReplyDelayMs)
	}
	if c.MaxReplyDelayMs > maxReplyDelayCeiling {
		return fmt.Errorf("agent config: max_reply_delay_ms %d exceeds ceiling %d",
			c.MaxReplyDelayMs, maxReplyDelayCeiling)
	}
	if c.MaxReplyLength < 0 {
		return fmt.Errorf("agent config: max_reply_length must be >= 0")
	}
	if c.MaxReplyLength == 0 {
		c.MaxReplyLength = defaultMaxReplyLength
	}
	return nil
}

// Matches reports whether the inbound body should trigger this agent. An
// empty trigger list matches everything.
func (c Config) Matches(body string) bool {
	if len(c.KeywordTriggers) == 0 {
		return true
	}
	lower := strings.ToLower(body)
	for _, kw := range c.KeywordTriggers {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
