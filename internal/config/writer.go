package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Write renders cfg to path (DefaultPath when empty). An existing file is
// backed up first and its database path is preserved.
func Write(path string, cfg Config) (string, error) {
	if strings.TrimSpace(path) == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", fmt.Errorf("failed to resolve config path: %w", err)
		}
		path = p
	}
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	// Preserve existing database path if present (avoid clobber).
	if prev, err := loadExistingConfig(path); err == nil {
		if db, ok := prev["database"].(map[string]any); ok {
			if v, ok := db["path"].(string); ok && strings.TrimSpace(v) != "" {
				cfg.Database.Path = v
			}
		}
		if err := BackupFile(path); err != nil {
			return "", fmt.Errorf("failed to back up config: %w", err)
		}
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("# notifeeder configuration\n")
	sb.WriteString("# feeds seed the feed list on first run; afterwards use `notifeeder feeds`.\n")
	sb.Write(body)
	return path, os.WriteFile(path, []byte(sb.String()), 0o644)
}

// loadExistingConfig loads existing configuration from a file
func loadExistingConfig(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// BackupFile creates a backup of the specified file with a timestamp
func BackupFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ts := time.Now().Format("20060102-150405")
	bak := path + ".bak-" + ts
	return os.WriteFile(bak, b, 0o644)
}
