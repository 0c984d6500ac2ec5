package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "purifier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
purifier:
  login_id: user@example.com
  password: secret
  token: abc
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, cfg.SchemaVersion)
	assert.Equal(t, DefaultHTTPAddr, cfg.Core.HTTPAddr)
	assert.Equal(t, DefaultGRPCAddr, cfg.Core.GRPCAddr)
	assert.Equal(t, DefaultBaseURL, cfg.Purifier.BaseURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.Purifier.RequestTimeout)
	assert.Empty(t, cfg.Purifier.CredentialsBlob)
	assert.Equal(t, DefaultTopicPrefix, cfg.MQTT.TopicPrefix)
	assert.Equal(t, DefaultMaxPerMinute, cfg.Rate.MaxPerMinute)
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
core:
  http_addr: 127.0.0.1:1
purifier:
  base_url: https://example.invalid/
  login_id: user@example.com
  password: secret
  token: abc
  request_timeout: 2s
`)
	t.Setenv("GOHOME_CORE_HTTP_ADDR", "127.0.0.1:2")
	t.Setenv("GOHOME_CORE_ENABLED_PLUGINS", "purifier, home")
	t.Setenv("GOHOME_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("GOHOME_MQTT_TOPIC_PREFIX", "/house/purifier/")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:2", cfg.Core.HTTPAddr)
	assert.Equal(t, "https://example.invalid", cfg.Purifier.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Purifier.RequestTimeout)
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, "house/purifier", cfg.MQTT.TopicPrefix)

	enabled, all := cfg.Core.Enabled()
	assert.False(t, all)
	assert.Equal(t, map[string]bool{"purifier": true, "home": true}, enabled)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("GOHOME_PURIFIER_CREDENTIALS_DIR", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCredentialsName, cfg.Purifier.CredentialsBlob)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"partial inline credentials": `
purifier:
  login_id: user@example.com
`,
		"no credential source": `
logging:
  level: info
`,
		"bad log format": `
logging:
  format: xml
purifier:
  login_id: a
  password: b
  token: c
`,
		"blob without bucket": `
blob:
  endpoint: http://minio:9000
  access_key_file: /a
  secret_key_file: /b
`,
		"negative budget floor": `
purifier:
  login_id: a
  password: b
  token: c
rate:
  budget_floor: -1
`,
		"wrong schema": `
schema_version: 7
purifier:
  login_id: a
  password: b
  token: c
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
