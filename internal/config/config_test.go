package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifeeder/internal/feed"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Ingest.TimeoutSec)
	assert.Equal(t, 100, cfg.Ingest.CacheCap)
	assert.Equal(t, 400, cfg.Ingest.DebounceMS)
	assert.Equal(t, 3, cfg.Notifications.MaxPerCycle)
	assert.True(t, cfg.Notifications.Enabled)
	assert.False(t, cfg.Notifications.QuietFirstRun)
	assert.Equal(t, "log", cfg.Notifications.Backend)
	assert.Empty(t, cfg.Path)
	assert.False(t, strings.HasPrefix(cfg.Database.Path, "~"), "paths are expanded")
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("NOTIFEEDER_TEST_DIR", dir)
	body := `
database:
  path: $NOTIFEEDER_TEST_DIR/db.sqlite
feeds:
  - https://bare.example.com/rss
  - title: Titled
    url: https://titled.example.com/feed
ingest:
  timeout_sec: 5
notifications:
  enabled: false
  backend: NTFY
  ntfy:
    topic: my-topic
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, filepath.Join(dir, "db.sqlite"), cfg.Database.Path)
	assert.Equal(t, []feed.Source{
		{URL: "https://bare.example.com/rss"},
		{Title: "Titled", URL: "https://titled.example.com/feed"},
	}, cfg.Sources())
	assert.Equal(t, 5, cfg.Ingest.TimeoutSec)
	assert.Equal(t, 100, cfg.Ingest.CacheCap, "unset keys keep defaults")
	assert.False(t, cfg.Notifications.Enabled)
	assert.Equal(t, "ntfy", cfg.Notifications.Backend)
	assert.Equal(t, "my-topic", cfg.Notifications.Ntfy.Topic)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feeds: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaultPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom.yaml")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", p)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Database.Path = "/data/first.db"
	cfg.Feeds = []Feed{{Title: "A", URL: "https://a.example/rss"}}

	written, err := Write(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	cfg.Database.Path = "/data/second.db"
	_, err = Write(path, cfg)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/first.db", loaded.Database.Path, "existing database path is preserved")
	assert.Equal(t, cfg.Sources(), loaded.Sources())

	backups, err := filepath.Glob(path + ".bak-*")
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "", ExpandPath(""))
}
