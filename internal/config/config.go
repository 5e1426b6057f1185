package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"notifeeder/internal/feed"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "NOTIFEEDER_CONFIG"

type ConfigLoad func() (Config, error)

// Loader returns a ConfigLoad reading path, or the default location when path is empty.
func Loader(path string) ConfigLoad {
	return func() (Config, error) { return Load(path) }
}

// Feed is a configured feed. In YAML it is either a bare url or {title, url}.
type Feed feed.Source

func (f *Feed) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.URL = strings.TrimSpace(node.Value)
		return nil
	}
	var src feed.Source
	if err := node.Decode(&src); err != nil {
		return err
	}
	*f = Feed(src)
	return nil
}

type Database struct {
	Path string `yaml:"path"`
}

type Ingest struct {
	TimeoutSec  int `yaml:"timeout_sec"`
	CacheCap    int `yaml:"cache_cap"`
	DebounceMS  int `yaml:"debounce_ms"`
	IntervalMin int `yaml:"interval_min"`
}

func (i Ingest) Timeout() time.Duration  { return time.Duration(i.TimeoutSec) * time.Second }
func (i Ingest) Debounce() time.Duration { return time.Duration(i.DebounceMS) * time.Millisecond }
func (i Ingest) Interval() time.Duration { return time.Duration(i.IntervalMin) * time.Minute }

type Ntfy struct {
	Topic string `yaml:"topic"`
	Token string `yaml:"token,omitempty"`
}

type Notifications struct {
	Enabled       bool   `yaml:"enabled"`
	MaxPerCycle   int    `yaml:"max_per_cycle"`
	QuietFirstRun bool   `yaml:"quiet_first_run"`
	Backend       string `yaml:"backend"`
	Ntfy          Ntfy   `yaml:"ntfy,omitempty"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

type Metrics struct {
	Listen string `yaml:"listen,omitempty"`
}

// Config carries every setting notifeeder reads from disk.
type Config struct {
	Database      Database      `yaml:"database"`
	Feeds         []Feed        `yaml:"feeds"`
	Ingest        Ingest        `yaml:"ingest"`
	Notifications Notifications `yaml:"notifications"`
	Log           Log           `yaml:"log"`
	Metrics       Metrics       `yaml:"metrics"`

	// Path is the file the config was read from; empty when defaults were used.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Database: Database{Path: FallbackDBPath()},
		Ingest: Ingest{
			TimeoutSec:  12,
			CacheCap:    100,
			DebounceMS:  400,
			IntervalMin: 15,
		},
		Notifications: Notifications{
			Enabled:     true,
			MaxPerCycle: 3,
			Backend:     "log",
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// FallbackDBPath is the database location when the config names none.
func FallbackDBPath() string {
	if runtime.GOOS == "darwin" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Notifeeder", "notifeeder.db")
	}
	return "~/.local/share/notifeeder/notifeeder.db"
}

// DefaultPath resolves the config file: $NOTIFEEDER_CONFIG, else ~/.config/notifeeder/config.yaml.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return ExpandPath(p), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "notifeeder", "config.yaml"), nil
}

// Load reads the config at path (or DefaultPath when empty) over Default().
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		p, err := DefaultPath()
		if err != nil {
			return finish(cfg), nil
		}
		path = p
	}
	path = ExpandPath(path)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return finish(cfg), nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	return finish(cfg), nil
}

// finish fills zero values back to defaults and expands paths.
func finish(cfg Config) Config {
	def := Default()
	if strings.TrimSpace(cfg.Database.Path) == "" {
		cfg.Database.Path = def.Database.Path
	}
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	if cfg.Ingest.TimeoutSec <= 0 {
		cfg.Ingest.TimeoutSec = def.Ingest.TimeoutSec
	}
	if cfg.Ingest.CacheCap <= 0 {
		cfg.Ingest.CacheCap = def.Ingest.CacheCap
	}
	if cfg.Ingest.DebounceMS <= 0 {
		cfg.Ingest.DebounceMS = def.Ingest.DebounceMS
	}
	if cfg.Ingest.IntervalMin <= 0 {
		cfg.Ingest.IntervalMin = def.Ingest.IntervalMin
	}
	if cfg.Notifications.MaxPerCycle <= 0 {
		cfg.Notifications.MaxPerCycle = def.Notifications.MaxPerCycle
	}
	cfg.Notifications.Backend = strings.ToLower(strings.TrimSpace(cfg.Notifications.Backend))
	if cfg.Notifications.Backend == "" {
		cfg.Notifications.Backend = def.Notifications.Backend
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	cfg.Log.File = ExpandPath(cfg.Log.File)
	return cfg
}

// Sources returns the configured feeds as seed sources.
func (c Config) Sources() []feed.Source {
	out := make([]feed.Source, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		out = append(out, feed.Source(f))
	}
	return out
}

// ExpandPath expands leading ~ and environment variables in a filesystem path.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	// Expand environment variables like $HOME
	p = os.ExpandEnv(p)
	// Expand leading ~
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}
