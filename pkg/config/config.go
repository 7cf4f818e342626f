package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "PINSCRAPER_"

// Config holds all configuration options for pinscraper
type Config struct {
	Site     SiteConfig     `yaml:"site" json:"site"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// SiteConfig describes the crawled website
type SiteConfig struct {
	// RootURL lists every available category.
	RootURL string `yaml:"root_url" json:"root_url"`
	// AvatarMarker identifies profile-picture sources, which are never grabbed.
	AvatarMarker string `yaml:"avatar_marker" json:"avatar_marker"`
}

// BrowserConfig holds browser automation settings
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	Stealth           bool          `yaml:"stealth" json:"stealth"`
	RemoteURL         string        `yaml:"remote_url" json:"remote_url"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay"`
	ScrollDelay       time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
	ScrollCount       int           `yaml:"scroll_count" json:"scroll_count"`
}

// OutputConfig holds the data root layout
type OutputConfig struct {
	// DataRoot holds the ledger, the placement registry, local category
	// trees and the staging area.
	DataRoot string `yaml:"data_root" json:"data_root"`
	// RemotePrefix is the first key segment of every remote object.
	RemotePrefix string `yaml:"remote_prefix" json:"remote_prefix"`
}

// StorageConfig holds object storage connection settings. Secrets are never
// read from the config file; they come from the credential store or env.
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
	Profile         string `yaml:"profile" json:"profile"`
	AccessKeyID     string `yaml:"-" json:"-"`
	SecretAccessKey string `yaml:"-" json:"-"`
}

// DownloadConfig holds asset transport settings
type DownloadConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int           `yaml:"burst" json:"burst"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
}

// RetryConfig holds retry configuration for transport and storage calls
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// DatabaseConfig configures the optional relational export
type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
	Table  string `yaml:"table" json:"table"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			RootURL:      "https://www.pinterest.co.uk/ideas/",
			AvatarMarker: "75x75",
		},
		Browser: BrowserConfig{
			Headless:          true,
			Stealth:           true,
			NavigationTimeout: 30 * time.Second,
			SettleDelay:       2 * time.Second,
			ScrollDelay:       time.Second,
			ScrollCount:       3,
		},
		Output: OutputConfig{
			DataRoot:     "./data",
			RemotePrefix: "pinterest",
		},
		Storage: StorageConfig{
			Endpoint: "s3.amazonaws.com",
			Region:   "eu-west-2",
			UseSSL:   true,
			Profile:  "default",
		},
		Download: DownloadConfig{
			Timeout:           30 * time.Second,
			RequestsPerMinute: 120,
			Burst:             5,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxAttempts:  3,
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			Table:  "pinterest_records",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from PINSCRAPER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	setString("ROOT_URL", &c.Site.RootURL)
	setBool("HEADLESS", &c.Browser.Headless)
	setString("BROWSER_URL", &c.Browser.RemoteURL)
	setInt("SCROLL_COUNT", &c.Browser.ScrollCount)
	setString("DATA_ROOT", &c.Output.DataRoot)
	setString("REMOTE_PREFIX", &c.Output.RemotePrefix)
	setString("S3_ENDPOINT", &c.Storage.Endpoint)
	setString("S3_REGION", &c.Storage.Region)
	setBool("S3_USE_SSL", &c.Storage.UseSSL)
	setString("S3_PROFILE", &c.Storage.Profile)
	setString("S3_ACCESS_KEY_ID", &c.Storage.AccessKeyID)
	setString("S3_SECRET_ACCESS_KEY", &c.Storage.SecretAccessKey)
	setInt("REQUESTS_PER_MINUTE", &c.Download.RequestsPerMinute)
	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_DSN", &c.Database.DSN)
	setString("DB_TABLE", &c.Database.Table)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".pinscraper.yaml",
		".pinscraper.yml",
		filepath.Join(home, ".config", "pinscraper", "config.yaml"),
		filepath.Join(home, ".config", "pinscraper", "config.yml"),
		filepath.Join(home, ".pinscraper.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Site.RootURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("site root URL must be an absolute URL"))
	}
	if c.Browser.ScrollCount <= 0 {
		errs = append(errs, errors.New("scroll count must be positive"))
	}
	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Output.DataRoot == "" {
		errs = append(errs, errors.New("data root is required"))
	}
	if strings.Contains(c.Output.RemotePrefix, "..") {
		errs = append(errs, errors.New("remote prefix must not contain '..'"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["data-root"].(string); ok && v != "" {
		c.Output.DataRoot = v
	}
	if v, ok := flags["root-url"].(string); ok && v != "" {
		c.Site.RootURL = v
	}
	if v, ok := flags["scrolls"].(int); ok && v > 0 {
		c.Browser.ScrollCount = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["browser-url"].(string); ok && v != "" {
		c.Browser.RemoteURL = v
	}
	if v, ok := flags["s3-endpoint"].(string); ok && v != "" {
		c.Storage.Endpoint = v
	}
	if v, ok := flags["s3-profile"].(string); ok && v != "" {
		c.Storage.Profile = v
	}
	if v, ok := flags["db-driver"].(string); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := flags["db-dsn"].(string); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = v
	}
}

// Load loads configuration from all sources with proper precedence:
// flags > environment > .env files > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pinscraper.env"))

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
