package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/makeitmeme/internal/model"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	cfg := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, cfg)
	require.NoError(t, fs.Parse(args))
	return cfg, Resolve(fs, cfg)
}

func TestDefaults(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, model.DefaultSessionConfig(), cfg.Rules())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("MIM_PORT", "9090")
	t.Setenv("MIM_ROUND_DURATION", "90s")
	t.Setenv("MIM_ADMIN_USERNAMES", "root,ops")

	cfg, err := parse(t)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.RoundDuration)
	assert.Equal(t, []string{"root", "ops"}, cfg.AdminUsernames)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("MIM_PORT", "9090")

	cfg, err := parse(t, "--port", "7070")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage: sqlite
database-dsn: /tmp/game.db
rounds: 5
cors-origins:
  - https://a.example
  - https://b.example
`), 0o600))
	t.Setenv("MIM_ROUNDS", "4")

	cfg, err := parse(t, "--config", path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Storage)
	assert.Equal(t, "/tmp/game.db", cfg.DatabaseDSN)
	// The environment wins over the file
	assert.Equal(t, 4, cfg.Rounds)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestConfigFileFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 6060\n"), 0o600))
	t.Setenv("MIM_CONFIG", path)

	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Port)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := parse(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad port", []string{"--port", "0"}},
		{"unknown storage", []string{"--storage", "mongo"}},
		{"sqlite without dsn", []string{"--storage", "sqlite"}},
		{"bad log level", []string{"--log-level", "loud"}},
		{"bad log format", []string{"--log-format", "xml"}},
		{"one player", []string{"--max-players", "1"}},
		{"no rounds", []string{"--rounds", "0"}},
		{"zero sweep", []string{"--sweep-interval", "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse(t, tt.args...)
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLevel(t *testing.T) {
	cfg, err := parse(t, "--log-level", "debug")
	require.NoError(t, err)
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())
}
