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

func testLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.lookupEnv = func(key string) (string, bool) {
		val, ok := env[key]
		return val, ok
	}
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, 42069, config.Network.TCP.Port)
	assert.Equal(t, "./database", config.Storage.DatabasePath)
	assert.Equal(t, EngineBadger, config.Storage.Engine)
	assert.Equal(t, ":)", config.Security.Salt)
	assert.True(t, config.IsDevelopment())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty app name", func(c *Config) { c.App.Name = "" }, ErrInvalidAppName},
		{"bad environment", func(c *Config) { c.App.Environment = "moon" }, ErrInvalidEnvironment},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
		{"bad port", func(c *Config) { c.Network.TCP.Port = 70000 }, ErrInvalidPort},
		{"bad websocket path", func(c *Config) {
			c.Network.WebSocket.Enabled = true
			c.Network.WebSocket.Path = "ws"
		}, ErrInvalidWebSocketPath},
		{"negative max connections", func(c *Config) { c.Network.Limits.MaxConnections = -1 }, ErrInvalidMaxConnections},
		{"bad engine", func(c *Config) { c.Storage.Engine = "sled" }, ErrInvalidStorageEngine},
		{"no database path", func(c *Config) { c.Storage.DatabasePath = "" }, ErrInvalidDatabasePath},
		{"zero mailbox", func(c *Config) { c.Actor.MailboxSize = 0 }, ErrInvalidMailboxSize},
		{"admin without password", func(c *Config) { c.Security.Admin.Name = "root" }, ErrInvalidAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.ErrorIs(t, config.Validate(), tt.want)
		})
	}

	t.Run("in memory needs no path", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.DatabasePath = ""
		config.Storage.InMemory = true
		assert.NoError(t, config.Validate())
	})
}

func TestLoadYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "harsh.yaml", `
log:
  level: debug
network:
  tcp:
    port: 4000
    keep_alive: false
storage:
  engine: sqlite
  database_path: /var/lib/harsh/db
actor:
  process_timeout: 5s
`)

	config, err := testLoader(nil).LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, LogLevelDebug, config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, 4000, config.Network.TCP.Port)
	assert.False(t, config.Network.TCP.KeepAlive)
	assert.Equal(t, "127.0.0.1", config.Network.TCP.Address)
	assert.Equal(t, EngineSQLite, config.Storage.Engine)
	assert.Equal(t, "/var/lib/harsh/db", config.Storage.DatabasePath)
	assert.Equal(t, 5*time.Second, config.Actor.ProcessTimeout)
	assert.Equal(t, 1000, config.Actor.MailboxSize)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"network": {"tcp": {"port": 5000}}, "security": {"salt": "pepper"}}`)

	config, err := testLoader(nil).LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, config.Network.TCP.Port)
	assert.Equal(t, "pepper", config.Security.Salt)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := testLoader(nil).LoadFromFile(writeFile(t, dir, "harsh.toml", "x = 1"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = testLoader(nil).LoadFromFile(writeFile(t, dir, "broken.yaml", "log: [unclosed"))
	assert.ErrorIs(t, err, ErrConfigParseError)

	_, err = testLoader(nil).LoadFromFile(writeFile(t, dir, "invalid.yaml", "log:\n  level: loud\n"))
	assert.ErrorIs(t, err, ErrInvalidLogLevel)

	_, err = testLoader(nil).LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	loader := testLoader(map[string]string{
		"HARSH_LOG_LEVEL":           "WARN",
		"HARSH_NETWORK_TCP_ADDRESS": "0.0.0.0",
		"HARSH_NETWORK_TCP_PORT":    "6000",
		"HARSH_STORAGE_ENGINE":      "sqlite",
		"HARSH_DATABASE_PATH":       "/tmp/harsh",
		"HARSH_ADMIN_NAME":          "root",
		"HARSH_ADMIN_PASSWORD":      "hunter2",
	})
	loader.SetSearchPaths([]string{t.TempDir()})

	config, err := loader.AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, config.Log.Level)
	assert.Equal(t, "0.0.0.0:6000", config.Network.TCP.Listen())
	assert.Equal(t, EngineSQLite, config.Storage.Engine)
	assert.Equal(t, "/tmp/harsh", config.Storage.DatabasePath)
	assert.Equal(t, AdminConfig{Name: "root", Password: "hunter2"}, config.Security.Admin)
}

func TestEnvironmentBadPort(t *testing.T) {
	loader := testLoader(map[string]string{"HARSH_NETWORK_TCP_PORT": "http"})
	loader.SetSearchPaths(nil)

	_, err := loader.AutoLoad()
	assert.ErrorIs(t, err, ErrEnvironmentVarError)
}

func TestAutoLoadDiscoversFile(t *testing.T) {
	empty := t.TempDir()
	dir := t.TempDir()
	writeFile(t, dir, "config.yml", "app:\n  name: discovered\n")

	loader := testLoader(nil).SetSearchPaths([]string{empty, dir})
	found, err := loader.FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), found)

	config, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, "discovered", config.App.Name)
}

func TestAutoLoadWithoutFileUsesDefaults(t *testing.T) {
	loader := testLoader(nil).SetSearchPaths([]string{t.TempDir()})
	_, err := loader.FindConfigFile()
	assert.ErrorIs(t, err, ErrConfigFileNotFound)

	config, err := loader.AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "harsh.yaml")
	loader := testLoader(nil)
	require.NoError(t, loader.WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "database_path: ./database"))

	config, err := loader.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadFromReader(t *testing.T) {
	config, err := testLoader(nil).LoadFromReader(strings.NewReader("app:\n  debug: true\n"), FormatYAML)
	require.NoError(t, err)
	assert.True(t, config.App.Debug)
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "harsh.yaml", "log:\n  level: info\n")

	watcher, err := NewWatcher(path, testLoader(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, watcher.GetConfig().Log.Level)

	changes := make(chan LogLevel, 1)
	watcher.OnConfigChange(func(oldConfig, newConfig *Config) {
		assert.Equal(t, LogLevelInfo, oldConfig.Log.Level)
		changes <- newConfig.Log.Level
	})

	writeFile(t, dir, "harsh.yaml", "log:\n  level: debug\n")
	require.NoError(t, watcher.Reload())
	assert.Equal(t, LogLevelDebug, <-changes)
	assert.Equal(t, LogLevelDebug, watcher.GetConfig().Log.Level)

	writeFile(t, dir, "harsh.yaml", "log:\n  level: loud\n")
	assert.Error(t, watcher.Reload())
	assert.Equal(t, LogLevelDebug, watcher.GetConfig().Log.Level)
}

func TestWatcherNoticesWrites(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "harsh.yaml", "log:\n  level: info\n")

	watcher, err := NewWatcher(path, testLoader(nil), nil)
	require.NoError(t, err)
	watcher.debounce = 10 * time.Millisecond
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	writeFile(t, dir, "harsh.yaml", "log:\n  level: error\n")
	assert.Eventually(t, func() bool {
		return watcher.GetConfig().Log.Level == LogLevelError
	}, 5*time.Second, 20*time.Millisecond)
}
