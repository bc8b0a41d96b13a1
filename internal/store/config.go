package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config is the user's ~/.taskboard/config.json. Every field is optional;
// CLI flags and TASKBOARD_* environment variables override it.
type Config struct {
	// DBPath is the SQLite database file. Defaults to <config dir>/taskboard.sqlite.
	DBPath string `json:"dbPath,omitempty"`

	// Dimension is the default grouping dimension ("status", "assignee", ...).
	Dimension string `json:"dimension,omitempty"`
	// HideEmpty hides groups without items on the board.
	HideEmpty bool `json:"hideEmpty,omitempty"`
	// ProjectID scopes boards to one project.
	ProjectID string `json:"projectId,omitempty"`

	RetryAttempts  int `json:"retryAttempts,omitempty"`
	RetryBackoffMs int `json:"retryBackoffMs,omitempty"`

	// RedisURL enables the cache mirror (redis://host:port/db).
	RedisURL string `json:"redisUrl,omitempty"`
	// Listen is the HTTP address for `taskboard serve`.
	Listen string `json:"listen,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`

	TUI *TUIConfig `json:"tui,omitempty"`
}

type TUIConfig struct {
	// NoColor forces the ASCII color profile.
	NoColor bool `json:"noColor,omitempty"`
	// ColumnWidth is the board column width in cells.
	ColumnWidth int `json:"columnWidth,omitempty"`
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.taskboard).
	if v := strings.TrimSpace(os.Getenv("TASKBOARD_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".taskboard"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultDBPath is the database used when neither config nor flags name one.
func DefaultDBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskboard.sqlite"), nil
}

func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	// Hand-edited configs may carry // comments and trailing commas.
	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	// Keep the previous config around; CLI, TUI and server may all write it.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, "config.json.bak.*.tmp", path+".bak", prev, 0o644)
	}
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}
