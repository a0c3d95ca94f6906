package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Equal(t, "waconsole", cfg.System.Appid)
	assert.Equal(t, 1850, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.True(t, cfg.WhatsApp.AutoConnect)
	assert.Equal(t, 30, cfg.WhatsApp.SendTimeout)
	assert.Equal(t, 64, cfg.WhatsApp.HubQueueSize)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "waconsole.yml")
	data := []byte(`
web:
  host: 127.0.0.1
  port: 9000
whatsapp:
  auto_connect: false
  hub_queue_size: 128
agent:
  endpoint: https://ai.example.com/v1/complete
`)
	require.NoError(t, os.WriteFile(cfile, data, 0o644))

	cfg := LoadConfig(cfile)
	assert.Equal(t, "127.0.0.1", cfg.Web.Host)
	assert.Equal(t, 9000, cfg.Web.Port)
	assert.False(t, cfg.WhatsApp.AutoConnect)
	assert.Equal(t, 128, cfg.WhatsApp.HubQueueSize)
	assert.Equal(t, "https://ai.example.com/v1/complete", cfg.Agent.Endpoint)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("WACONSOLE_WEB_PORT", "8088")
	t.Setenv("WACONSOLE_DB_HOST", "db.internal")
	t.Setenv("WACONSOLE_AGENT_APIKEY", "secret")

	cfg := LoadConfig("")
	assert.Equal(t, 8088, cfg.Web.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "secret", cfg.Agent.ApiKey)
}

func TestLoadConfigFloorsBadValues(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "waconsole.yml")
	require.NoError(t, os.WriteFile(cfile, []byte("whatsapp:\n  send_timeout: -5\n  hub_queue_size: 0\n"), 0o644))

	cfg := LoadConfig(cfile)
	assert.Equal(t, 30, cfg.WhatsApp.SendTimeout)
	assert.Equal(t, 64, cfg.WhatsApp.HubQueueSize)
}
