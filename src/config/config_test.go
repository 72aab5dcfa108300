package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

const validYAML = `
name: trading-backbone
host: 0.0.0.0
port: 8000
log_level: INFO
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  credential_key: "unit-test-credential-key"
gateway:
  root_uri: "https://gateway.example.com"
storage:
  db_type: sqlite
  db_path: "./backbone.db"
`

// -----------------------------------------------------------------------------

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfig_AppliesDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Auth.AccessTokenExpireMin)
	assert.Equal(t, 30, cfg.Auth.RefreshTokenExpireDays)
	assert.Equal(t, 12, cfg.Sessions.ValidityHours)
	assert.Equal(t, 1, cfg.Streaming.PollIntervalSeconds)
	assert.Equal(t, "xbom", cfg.Streaming.ExchangeMIC)
	assert.Equal(t, 7, cfg.Gateway.RequestTimeout)
	assert.Equal(t, "WEBAPI", cfg.Gateway.Source)
}

func TestNewConfig_MissingFile(t *testing.T) {
	_, err := NewConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestNewConfig_MalformedYAML(t *testing.T) {
	_, err := NewConfig(writeConfig(t, "name: [unclosed"))
	assert.Error(t, err)
}

func TestNewConfig_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "short jwt secret",
			yaml: `
name: trading-backbone
host: 0.0.0.0
port: 8000
auth:
  jwt_secret: "too-short"
  credential_key: "key"
gateway:
  root_uri: "https://gateway.example.com"
storage:
  db_type: sqlite
  db_path: "./backbone.db"
`,
		},
		{
			name: "missing credential key",
			yaml: `
name: trading-backbone
host: 0.0.0.0
port: 8000
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
gateway:
  root_uri: "https://gateway.example.com"
storage:
  db_type: sqlite
  db_path: "./backbone.db"
`,
		},
		{
			name: "privileged port",
			yaml: `
name: trading-backbone
host: 0.0.0.0
port: 80
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  credential_key: "key"
gateway:
  root_uri: "https://gateway.example.com"
storage:
  db_type: sqlite
  db_path: "./backbone.db"
`,
		},
		{
			name: "postgres without connection string",
			yaml: `
name: trading-backbone
host: 0.0.0.0
port: 8000
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  credential_key: "key"
gateway:
  root_uri: "https://gateway.example.com"
storage:
  db_type: postgres
`,
		},
		{
			name: "events enabled without address",
			yaml: `
name: trading-backbone
host: 0.0.0.0
port: 8000
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  credential_key: "key"
gateway:
  root_uri: "https://gateway.example.com"
storage:
  db_type: sqlite
  db_path: "./backbone.db"
events:
  enabled: true
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(out))

	reloaded, err := NewConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, reloaded.Name)
	assert.Equal(t, cfg.Auth.JWTSecret, reloaded.Auth.JWTSecret)
	assert.Equal(t, cfg.Storage.DBPath, reloaded.Storage.DBPath)
}
