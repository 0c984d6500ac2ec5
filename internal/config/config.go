package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion          = 1
	DefaultPath            = "/etc/gohome/purifier.yaml"
	DefaultGRPCAddr        = "0.0.0.0:9000"
	DefaultHTTPAddr        = "0.0.0.0:8080"
	DefaultBaseURL         = "https://api.daikinsmartdb.jp"
	DefaultRequestTimeout  = 5 * time.Second
	DefaultBlobPrefix      = "gohome/secrets"
	DefaultCredentialsName = "purifier"
	DefaultTopicPrefix     = "gohome/purifier"
	DefaultPublishSchedule = "@every 1m"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultMaxPerMinute    = 20
	DefaultMaxPerDay       = 2000
)

// Config is the daemon configuration. YAML is read first, then GOHOME_*
// environment variables override individual fields.
type Config struct {
	SchemaVersion int            `yaml:"schema_version" env:"SCHEMA_VERSION"`
	Core          CoreConfig     `yaml:"core" envPrefix:"CORE_"`
	Logging       LoggingConfig  `yaml:"logging" envPrefix:"LOG_"`
	Purifier      PurifierConfig `yaml:"purifier" envPrefix:"PURIFIER_"`
	Blob          BlobConfig     `yaml:"blob" envPrefix:"BLOB_"`
	MQTT          MQTTConfig     `yaml:"mqtt" envPrefix:"MQTT_"`
	Rate          RateConfig     `yaml:"rate" envPrefix:"RATE_"`
}

// CoreConfig configures the daemon listeners. An empty EnabledPlugins list
// enables every compiled-in plugin.
type CoreConfig struct {
	GRPCAddr       string   `yaml:"grpc_addr" env:"GRPC_ADDR"`
	HTTPAddr       string   `yaml:"http_addr" env:"HTTP_ADDR"`
	EnabledPlugins []string `yaml:"enabled_plugins" env:"ENABLED_PLUGINS" envSeparator:","`
	DashboardsDir  string   `yaml:"dashboards_dir" env:"DASHBOARDS_DIR"`
}

// Enabled returns the enabled plugin set and whether all plugins are enabled.
func (c CoreConfig) Enabled() (map[string]bool, bool) {
	enabled := make(map[string]bool, len(c.EnabledPlugins))
	for _, id := range c.EnabledPlugins {
		if id = strings.TrimSpace(id); id != "" {
			enabled[id] = true
		}
	}
	return enabled, len(enabled) == 0
}

type LoggingConfig struct {
	Level  string      `yaml:"level" env:"LEVEL"`
	Format string      `yaml:"format" env:"FORMAT"`
	File   LogFileConf `yaml:"file" envPrefix:"FILE_"`
}

// LogFileConf enables a rolling log file next to stdout when Filename is set.
type LogFileConf struct {
	Filename   string `yaml:"filename" env:"NAME"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}

// PurifierConfig holds the cloud account. Credentials come either inline
// (login_id, password, token) or from a credentials document in the blob
// store.
type PurifierConfig struct {
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	LoginID         string        `yaml:"login_id" env:"LOGIN_ID"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Token           string        `yaml:"token" env:"TOKEN"`
	TokenType       string        `yaml:"token_type" env:"TOKEN_TYPE"`
	CredentialsBlob string        `yaml:"credentials_blob" env:"CREDENTIALS_BLOB"`
	CredentialsDir  string        `yaml:"credentials_dir" env:"CREDENTIALS_DIR"`
}

// InlineCredentials reports whether the account is configured in place.
func (p PurifierConfig) InlineCredentials() bool {
	return p.LoginID != "" || p.Password != "" || p.Token != ""
}

type BlobConfig struct {
	Endpoint      string `yaml:"endpoint" env:"ENDPOINT"`
	Bucket        string `yaml:"bucket" env:"BUCKET"`
	Prefix        string `yaml:"prefix" env:"PREFIX"`
	Region        string `yaml:"region" env:"REGION"`
	AccessKeyFile string `yaml:"access_key_file" env:"ACCESS_KEY_FILE"`
	SecretKeyFile string `yaml:"secret_key_file" env:"SECRET_KEY_FILE"`
}

// Enabled reports whether an S3 endpoint is configured.
func (b BlobConfig) Enabled() bool {
	return b.Endpoint != ""
}

type MQTTConfig struct {
	Broker          string `yaml:"broker" env:"BROKER"`
	Username        string `yaml:"username" env:"USERNAME"`
	Password        string `yaml:"password" env:"PASSWORD"`
	ClientID        string `yaml:"client_id" env:"CLIENT_ID"`
	TopicPrefix     string `yaml:"topic_prefix" env:"TOPIC_PREFIX"`
	PublishSchedule string `yaml:"publish_schedule" env:"PUBLISH_SCHEDULE"`
}

func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// RateConfig budgets calls to the cloud. BudgetFloor stops calls early once
// the cloud reports that many requests or fewer left in a window.
type RateConfig struct {
	MaxPerMinute int `yaml:"max_per_minute" env:"MAX_PER_MINUTE"`
	MaxPerDay    int `yaml:"max_per_day" env:"MAX_PER_DAY"`
	BudgetFloor  int `yaml:"budget_floor" env:"BUDGET_FLOOR"`
}

// Load reads path (optional when empty or missing), applies environment
// overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "GOHOME_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = SchemaVersion
	}
	if cfg.Core.GRPCAddr == "" {
		cfg.Core.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Purifier.BaseURL == "" {
		cfg.Purifier.BaseURL = DefaultBaseURL
	}
	cfg.Purifier.BaseURL = strings.TrimRight(cfg.Purifier.BaseURL, "/")
	if cfg.Purifier.RequestTimeout == 0 {
		cfg.Purifier.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Purifier.CredentialsBlob == "" && !cfg.Purifier.InlineCredentials() {
		cfg.Purifier.CredentialsBlob = DefaultCredentialsName
	}
	if cfg.Blob.Prefix == "" {
		cfg.Blob.Prefix = DefaultBlobPrefix
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	cfg.MQTT.TopicPrefix = strings.Trim(cfg.MQTT.TopicPrefix, "/")
	if cfg.MQTT.PublishSchedule == "" {
		cfg.MQTT.PublishSchedule = DefaultPublishSchedule
	}
	if cfg.Rate.MaxPerMinute == 0 {
		cfg.Rate.MaxPerMinute = DefaultMaxPerMinute
	}
	if cfg.Rate.MaxPerDay == 0 {
		cfg.Rate.MaxPerDay = DefaultMaxPerDay
	}
}

// Validate enforces invariants the types cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}
	if cfg.Core.GRPCAddr == "" {
		return fmt.Errorf("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}
	if cfg.Purifier.RequestTimeout < 0 {
		return fmt.Errorf("purifier.request_timeout must be positive")
	}

	p := cfg.Purifier
	if p.InlineCredentials() {
		if p.LoginID == "" || p.Password == "" || p.Token == "" {
			return fmt.Errorf("purifier.login_id, purifier.password and purifier.token must be set together")
		}
	} else if !cfg.Blob.Enabled() && p.CredentialsDir == "" {
		return fmt.Errorf("purifier credentials require blob.endpoint or purifier.credentials_dir")
	}

	if cfg.Blob.Enabled() {
		if cfg.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket is required")
		}
		if cfg.Blob.AccessKeyFile == "" {
			return fmt.Errorf("blob.access_key_file is required")
		}
		if cfg.Blob.SecretKeyFile == "" {
			return fmt.Errorf("blob.secret_key_file is required")
		}
	}

	if cfg.Rate.MaxPerMinute < 0 || cfg.Rate.MaxPerDay < 0 || cfg.Rate.BudgetFloor < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	return nil
}
