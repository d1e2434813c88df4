package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	xdgAppName = "flowdeck"
	configFile = "config.yaml"
)

// Config is the top-level application configuration. Everything that used
// to be implicit process-wide setup (auth provider wiring, storage
// location) is derived from this struct once at startup.
type Config struct {
	// Timezone is the IANA zone used to bucket events by calendar day.
	// Empty means the system local zone.
	Timezone string `yaml:"timezone"`

	// CalendarID is the Google calendar to read and write. "primary"
	// targets the signed-in account's default calendar.
	CalendarID string `yaml:"calendar_id"`

	// MaxResults caps the upcoming-events fetch.
	MaxResults int64 `yaml:"max_results"`

	// DataDir holds the persisted todo collection, focus history and
	// captured-notification queue. Relative paths are resolved against
	// the config directory; empty means "<configdir>/data".
	DataDir string `yaml:"data_dir"`

	// ClientSecretsFile and TokenFile configure the OAuth provider.
	// Relative paths are resolved against the config directory.
	ClientSecretsFile string `yaml:"client_secrets_file"`
	TokenFile         string `yaml:"token_file"`

	// FocusMinutes is the default focus-session length.
	FocusMinutes int `yaml:"focus_minutes"`

	// RefreshCron is the schedule used by watch mode for periodic
	// calendar refresh, e.g. "*/15 * * * *".
	RefreshCron string `yaml:"refresh_cron"`
}

func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Default returns the in-memory default configuration.
func Default() *Config {
	return &Config{
		CalendarID:        "primary",
		MaxResults:        5,
		ClientSecretsFile: "credentials.json",
		TokenFile:         "token.json",
		FocusMinutes:      25,
		RefreshCron:       "*/15 * * * *",
	}
}

// Normalize fills missing or out-of-range values so partially-filled
// config files still behave.
func (c *Config) Normalize() {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.ClientSecretsFile == "" {
		c.ClientSecretsFile = "credentials.json"
	}
	if c.TokenFile == "" {
		c.TokenFile = "token.json"
	}
	if c.FocusMinutes <= 0 {
		c.FocusMinutes = 25
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
}

// Load reads the config from path. On first run (file missing) it writes
// the defaults and returns them.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the config atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".flowdeck-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ResolvePath resolves a possibly-relative credential or data path
// against the config directory.
func (c *Config) ResolvePath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// ResolveDataDir returns the effective data directory.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.ResolvePath(c.DataDir)
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// Location loads the configured timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
