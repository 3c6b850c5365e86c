package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty file yields defaults",
			yaml: "",
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 350*time.Millisecond, cfg.Dispatch.MinInterval)
				assert.Equal(t, VenuePaper, cfg.Venue.Kind)
				assert.Equal(t, "./data/logs", cfg.Dispatch.LogDir)
			},
		},
		{
			name: "overrides and env expansion",
			yaml: `
service:
  log_level: debug
dispatch:
  min_interval: 500ms
  log_dir: /var/log/ordergate
venue:
  kind: alpaca
  api_key: ${TEST_ALPACA_KEY}
  api_secret: ${TEST_ALPACA_SECRET}
`,
			env: map[string]string{"TEST_ALPACA_KEY": "PK123", "TEST_ALPACA_SECRET": "shh"},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Service.LogLevel)
				assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.MinInterval)
				assert.Equal(t, "PK123", cfg.Venue.APIKey)
				assert.Equal(t, "shh", cfg.Venue.APISecret)
			},
		},
		{
			name: "unset credential is reported",
			yaml: `
venue:
  kind: alpaca
  api_key: ${TEST_UNSET_KEY_XYZ}
  api_secret: s
`,
			wantErr: "${TEST_UNSET_KEY_XYZ} is not set",
		},
		{
			name:    "unknown field rejected",
			yaml:    "plugins_dir: ./plugins\n",
			wantErr: "field plugins_dir not found",
		},
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "service.log_level",
		},
		{
			name: "api enabled without auth",
			yaml: `
api:
  enabled: true
  listen: 127.0.0.1:9000
`,
			wantErr: "api.auth requires",
		},
		{
			name: "api token without scopes",
			yaml: `
api:
  enabled: true
  listen: 127.0.0.1:9000
  auth:
    tokens:
      - token: abc
`,
			wantErr: "scopes must be non-empty",
		},
		{
			name: "api token with unknown scope",
			yaml: `
api:
  enabled: true
  listen: 127.0.0.1:9000
  auth:
    tokens:
      - token: abc
        scopes: [jobs:rw]
`,
			wantErr: `unknown scope "jobs:rw"`,
		},
		{
			name: "schedules and webhooks",
			yaml: `
schedules:
  - name: open
    queue: morning
    at: "09:31"
  - name: sweep
    queue: signals
    every: 5m
    jitter: 10s
webhooks:
  listen: 127.0.0.1:8081
  endpoints:
    - path: /signals/momentum
      queue: signals
      dispatch: true
      secret: ${TEST_SIGNAL_SECRET}
`,
			env: map[string]string{"TEST_SIGNAL_SECRET": "whsec"},
			checkFn: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Schedules, 2)
				assert.Equal(t, "09:31", cfg.Schedules[0].At)
				assert.Equal(t, 5*time.Minute, cfg.Schedules[1].Every)
				assert.Equal(t, 10*time.Second, cfg.Schedules[1].Jitter)
				require.NotNil(t, cfg.Webhooks)
				assert.Equal(t, "whsec", cfg.Webhooks.Endpoints[0].Secret)
				assert.True(t, cfg.Webhooks.Endpoints[0].Dispatch)
			},
		},
		{
			name: "schedule with both every and at",
			yaml: `
schedules:
  - name: open
    queue: morning
    every: 1h
    at: "09:31"
`,
			wantErr: "set only one of every and at",
		},
		{
			name: "schedule with bad time of day",
			yaml: `
schedules:
  - name: open
    queue: morning
    at: "9:31am"
`,
			wantErr: `schedules[0].at "9:31am" must be HH:MM`,
		},
		{
			name: "duplicate schedule names",
			yaml: `
schedules:
  - {name: s, queue: a, every: 1m}
  - {name: s, queue: b, every: 1m}
`,
			wantErr: `duplicate schedule name "s"`,
		},
		{
			name: "webhook without secret",
			yaml: `
webhooks:
  listen: 127.0.0.1:8081
  endpoints:
    - path: /signals/momentum
      queue: signals
`,
			wantErr: "webhooks.endpoints[0].secret is required",
		},
		{
			name: "webhook path must be absolute",
			yaml: `
webhooks:
  listen: 127.0.0.1:8081
  endpoints:
    - path: signals
      queue: signals
      secret: s
`,
			wantErr: `path "signals" must start with /`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, t.TempDir(), tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, cfg.SourcePath)
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OG_TEST_DOTENV_KEY=from-dotenv\n"), 0o600))
	writeConfig(t, dir, "api:\n  enabled: true\n  listen: 127.0.0.1:9000\n  auth:\n    api_key: ${OG_TEST_DOTENV_KEY}\n")
	t.Cleanup(func() { _ = os.Unsetenv("OG_TEST_DOTENV_KEY") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.API.Auth.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "config file not found"))
}

func TestChecksumsDetectTampering(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "service:\n  log_level: info\n")

	manifest, err := WriteChecksums(path)
	require.NoError(t, err)
	assert.Contains(t, manifest.Hashes, "config.yaml")
	assert.NotContains(t, manifest.Hashes, ".env")

	_, err = Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("service:\n  log_level: debug\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch for config.yaml")
}

func TestGetPathRedactsSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Venue.APISecret = "top-secret"

	v, err := cfg.GetPath("dispatch.min_interval")
	require.NoError(t, err)
	assert.Equal(t, "350ms", v)

	v, err = cfg.GetPath("venue.api_secret")
	require.NoError(t, err)
	assert.Equal(t, redacted, v)

	_, err = cfg.GetPath("venue.nope")
	assert.Error(t, err)
	assert.Equal(t, "top-secret", cfg.Venue.APISecret, "Redacted must not mutate the original")
}
