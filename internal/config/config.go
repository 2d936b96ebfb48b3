// Package config loads and saves the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"audiencier/internal/validate"
)

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "Europe/Paris"
	defaultDatabase      = "data/audiencier.db"
	defaultExportPath    = "data/audiences.ics"
	defaultRefresh       = "*/30 * * * *"
	defaultSweepCron     = "5 0 * * *"
	defaultHorizonDays   = 60
	defaultSearchDelayMs = 300
	defaultExportDelayMs = 2000
)

// ICSConfig describes an external court calendar subscription.
type ICSConfig struct {
	URL string `yaml:"url" json:"url"`
	// ID prefixes the event IDs of this source and names its cache file.
	ID string `yaml:"id" json:"id"`
	// Name is used as the jurisdiction of imported hearings.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the dashboard and API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that defines "today" for the agenda.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// Database is the SQLite file path.
	Database string `yaml:"database" json:"database"`

	// ExportPath is where the ICS export is rewritten after mutations.
	// Empty disables the file export; /calendar.ics still works.
	ExportPath string `yaml:"export_path" json:"export_path"`

	// RefreshCron schedules the refresh of external ICS sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// SweepCron schedules the marking of unreported past hearings.
	SweepCron string `yaml:"sweep_cron" json:"sweep_cron"`

	// HorizonDays bounds the expansion of recurring external events.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	SearchDebounceMs int `yaml:"search_debounce_ms" json:"search_debounce_ms"`
	ExportDebounceMs int `yaml:"export_debounce_ms" json:"export_debounce_ms"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           defaultListen,
		Timezone:         defaultTimezone,
		WeekStart:        "monday",
		Database:         defaultDatabase,
		ExportPath:       defaultExportPath,
		RefreshCron:      defaultRefresh,
		SweepCron:        defaultSweepCron,
		HorizonDays:      defaultHorizonDays,
		SearchDebounceMs: defaultSearchDelayMs,
		ExportDebounceMs: defaultExportDelayMs,
		LogLevel:         "info",
		ICS:              []ICSConfig{},
	}
}

// Normalize fills in missing or out-of-range values so that partially
// written files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if !validate.OneOf(c.WeekStart, "monday", "sunday") {
		c.WeekStart = "monday"
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.SweepCron == "" {
		c.SweepCron = defaultSweepCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.SearchDebounceMs <= 0 {
		c.SearchDebounceMs = defaultSearchDelayMs
	}
	if c.ExportDebounceMs <= 0 {
		c.ExportDebounceMs = defaultExportDelayMs
	}
	if !validate.OneOf(c.LogLevel, "debug", "info", "warn", "error") {
		c.LogLevel = "info"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics%d", i+1)
		}
		if c.ICS[i].Name == "" {
			c.ICS[i].Name = c.ICS[i].ID
		}
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{"refresh": c.RefreshCron, "sweep_cron": c.SweepCron} {
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", name, spec, err))
		}
	}
	seen := map[string]bool{}
	for _, src := range c.ICS {
		if src.URL == "" {
			errs = append(errs, fmt.Errorf("ics source %q: url is empty", src.ID))
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Errorf("ics source %q: duplicate id", src.ID))
		}
		seen[src.ID] = true
	}
	if c.BasicAuth != nil {
		creds := validate.Credentials{Username: c.BasicAuth.Username, Password: c.BasicAuth.Password}
		if err := validate.Run(creds, validate.CredentialsRules); err != nil {
			errs = append(errs, fmt.Errorf("basic_auth: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, or time.Local when it cannot
// be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMs) * time.Millisecond
}

func (c *Config) ExportDebounce() time.Duration {
	return time.Duration(c.ExportDebounceMs) * time.Millisecond
}

// Load reads the YAML file at path. On first run the file does not exist:
// the defaults are written with 0600 permissions and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg atomically: temp file in the same directory, 0600, rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".audiencier-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
