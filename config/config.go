// Package config loads and validates the migration configuration file.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/louiss0/access-sharepoint-migrator/custom_errors"
	"github.com/louiss0/access-sharepoint-migrator/internal/jsonc"
)

// EnvPrefix prefixes every environment variable override, e.g. A2SP_SHAREPOINT_CLIENT_SECRET.
const EnvPrefix = "A2SP"

// DefaultFileName is the configuration file looked up when --config is not given.
const DefaultFileName = "config.json"

const (
	DriverODBC   = "odbc"
	DriverSQLite = "sqlite"
)

const (
	defaultDriver     = DriverODBC
	defaultBatchSize  = 100
	defaultRetryCount = 3
	defaultLogLevel   = "INFO"
	defaultConcurrent = 1

	MaxBatchSize   = 5000
	MaxRetryCount  = 10
	MaxConcurrency = 16
)

var (
	SupportedDrivers   = []string{DriverODBC, DriverSQLite}
	SupportedLogLevels = []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}
)

// AccessDB describes the source database.
type AccessDB struct {
	FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`
	Driver   string `mapstructure:"driver" json:"driver,omitempty" yaml:"driver,omitempty"`
	// DSN replaces the generated connection string when set.
	DSN    string   `mapstructure:"dsn" json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Tables []string `mapstructure:"tables" json:"tables,omitempty" yaml:"tables,omitempty"`
	// PrimaryKeys overrides key detection per table.
	PrimaryKeys map[string][]string `mapstructure:"primary_keys" json:"primary_keys,omitempty" yaml:"primary_keys,omitempty"`
}

// SharePoint holds the target site and the app registration used to reach it.
type SharePoint struct {
	SiteURL      string `mapstructure:"site_url" json:"site_url" yaml:"site_url"`
	ClientID     string `mapstructure:"client_id" json:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"client_secret" yaml:"client_secret"`
	TenantID     string `mapstructure:"tenant_id" json:"tenant_id" yaml:"tenant_id"`
	// GraphURL and AuthorityHost are overridable for sovereign clouds.
	GraphURL      string `mapstructure:"graph_url" json:"graph_url,omitempty" yaml:"graph_url,omitempty"`
	AuthorityHost string `mapstructure:"authority_host" json:"authority_host,omitempty" yaml:"authority_host,omitempty"`
}

// MigrationSettings tunes batching, retries and output.
type MigrationSettings struct {
	BatchSize      int    `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size"`
	RetryCount     int    `mapstructure:"retry_count" json:"retry_count" yaml:"retry_count"`
	LogLevel       string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	Concurrency    int    `mapstructure:"concurrency" json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	ListPrefix     string `mapstructure:"list_prefix" json:"list_prefix,omitempty" yaml:"list_prefix,omitempty"`
	CheckpointFile string `mapstructure:"checkpoint_file" json:"checkpoint_file,omitempty" yaml:"checkpoint_file,omitempty"`
}

// Config is the whole configuration file.
type Config struct {
	AccessDB          AccessDB          `mapstructure:"access_db" json:"access_db" yaml:"access_db"`
	SharePoint        SharePoint        `mapstructure:"sharepoint" json:"sharepoint" yaml:"sharepoint"`
	MigrationSettings MigrationSettings `mapstructure:"migration_settings" json:"migration_settings" yaml:"migration_settings"`
}

// secretKeys may be missing from the file entirely; AutomaticEnv only sees keys viper already knows.
var secretKeys = []string{
	"sharepoint.client_id",
	"sharepoint.client_secret",
	"sharepoint.tenant_id",
	"sharepoint.site_url",
	"access_db.file_path",
	"access_db.dsn",
}

// Load reads the configuration file at path, applies A2SP_* environment overrides and defaults,
// and validates the result. Relative access_db.file_path values resolve against the config file.
func Load(path string) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if cfg.AccessDB.FilePath != "" && !filepath.IsAbs(cfg.AccessDB.FilePath) {
		cfg.AccessDB.FilePath = filepath.Join(filepath.Dir(path), cfg.AccessDB.FilePath)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadRaw returns the file's decoded key tree without defaults or overrides.
func LoadRaw(path string) (map[string]any, error) {
	v := viper.New()
	if err := readInto(v, path); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("access_db.driver", defaultDriver)
	v.SetDefault("migration_settings.batch_size", defaultBatchSize)
	v.SetDefault("migration_settings.retry_count", defaultRetryCount)
	v.SetDefault("migration_settings.log_level", defaultLogLevel)
	v.SetDefault("migration_settings.concurrency", defaultConcurrent)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := readInto(v, path); err != nil {
		return nil, err
	}

	return v, nil
}

func readInto(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "jsonc":
		data = jsonc.Normalize(data)
		ext = "json"
	case "json", "yaml", "yml":
	default:
		return custom_errors.CreateInvalidConfigError(path, "must be a .json, .jsonc, .yaml or .yml file")
	}

	v.SetConfigType(ext)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

// Validate checks the database and migration settings every command depends on and returns
// the first problem found. SharePoint credentials are checked separately by SharePoint.Validate,
// since only a real migration talks to SharePoint.
func (c Config) Validate() error {
	invalid := custom_errors.CreateInvalidConfigError

	if strings.TrimSpace(c.AccessDB.FilePath) == "" && c.AccessDB.DSN == "" {
		return invalid("access_db.file_path", "is required")
	}
	if !lo.Contains(SupportedDrivers, c.AccessDB.Driver) {
		return invalid("access_db.driver", fmt.Sprintf("must be one of %v", SupportedDrivers))
	}

	s := c.MigrationSettings
	if s.BatchSize < 1 || s.BatchSize > MaxBatchSize {
		return invalid("migration_settings.batch_size", fmt.Sprintf("must be between 1 and %d", MaxBatchSize))
	}
	if s.RetryCount < 0 || s.RetryCount > MaxRetryCount {
		return invalid("migration_settings.retry_count", fmt.Sprintf("must be between 0 and %d", MaxRetryCount))
	}
	if s.Concurrency < 1 || s.Concurrency > MaxConcurrency {
		return invalid("migration_settings.concurrency", fmt.Sprintf("must be between 1 and %d", MaxConcurrency))
	}
	if !lo.Contains(SupportedLogLevels, strings.ToUpper(s.LogLevel)) {
		return invalid("migration_settings.log_level", fmt.Sprintf("must be one of %v", SupportedLogLevels))
	}

	return nil
}

// Validate checks the site and the app registration used to reach it.
func (s SharePoint) Validate() error {
	invalid := custom_errors.CreateInvalidConfigError

	site, err := url.Parse(s.SiteURL)
	if err != nil || site.Host == "" {
		return invalid("sharepoint.site_url", "must be an absolute URL")
	}
	if site.Scheme != "https" {
		return invalid("sharepoint.site_url", "must use https")
	}

	for _, required := range [][2]string{
		{"sharepoint.client_id", s.ClientID},
		{"sharepoint.client_secret", s.ClientSecret},
		{"sharepoint.tenant_id", s.TenantID},
	} {
		if strings.TrimSpace(required[1]) == "" {
			return invalid(required[0], "is required")
		}
	}

	return nil
}

// SiteHost returns the host part of the SharePoint site URL.
func (s SharePoint) SiteHost() string {
	u, err := url.Parse(s.SiteURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// SitePath returns the server-relative site path without a trailing slash ("" for the root site).
func (s SharePoint) SitePath() string {
	u, err := url.Parse(s.SiteURL)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}

// PrimaryKeysFor returns the configured key columns of table. Table names compare
// case-insensitively because viper lowercases map keys.
func (a AccessDB) PrimaryKeysFor(table string) ([]string, bool) {
	for name, keys := range a.PrimaryKeys {
		if strings.EqualFold(name, table) {
			return keys, true
		}
	}
	return nil, false
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.SharePoint.ClientSecret != "" {
		c.SharePoint.ClientSecret = "********"
	}
	return c
}
