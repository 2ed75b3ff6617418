// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Listing  ListingConfig  `mapstructure:"listing"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	State    StateConfig    `mapstructure:"state"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ListingConfig points at the disclosure page and the link filter.
type ListingConfig struct {
	URL       string   `mapstructure:"url"`
	Keywords  []string `mapstructure:"keywords"`
	Extension string   `mapstructure:"extension"`
}

// HTTPConfig configures outbound requests for the listing and documents.
type HTTPConfig struct {
	UserAgent      string            `mapstructure:"user_agent"`
	Headers        map[string]string `mapstructure:"headers"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
}

// ArchiveConfig governs the local download directory and pacing.
type ArchiveConfig struct {
	OutputDir    string `mapstructure:"output_dir"`
	DelayMs      int    `mapstructure:"delay_ms"`
	ShowProgress bool   `mapstructure:"show_progress"`
}

// StateConfig selects where the processed set lives.
type StateConfig struct {
	Backend  string         `mapstructure:"backend"`
	File     string         `mapstructure:"file"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig holds the Postgres state backend settings.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// RedisConfig holds the Redis state backend settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// StorageConfig selects the remote archive backend.
type StorageConfig struct {
	Backend         string   `mapstructure:"backend"`
	FolderID        string   `mapstructure:"folder_id"`
	Bucket          string   `mapstructure:"bucket"`
	Prefix          string   `mapstructure:"prefix"`
	LocalDir        string   `mapstructure:"local_dir"`
	CredentialsFile string   `mapstructure:"credentials_file"`
	S3              S3Config `mapstructure:"s3"`
}

// S3Config holds S3-specific client settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	// CredentialsFile is an AWS shared-credentials file; empty uses the default chain.
	CredentialsFile string `mapstructure:"credentials_file"`
}

// NotifyConfig holds Pub/Sub notification settings. Empty topic disables it.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notifications are configured.
func (n NotifyConfig) Enabled() bool {
	return n.Topic != ""
}

// MetricsConfig holds Pushgateway settings. Empty URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// ScheduleConfig holds the cron expression used by the schedule command.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// ServerConfig controls the status server run alongside the schedule command.
// An empty Listen address disables it.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DRHP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// envOnlyKeys have no default, so AutomaticEnv alone would not surface them to Unmarshal.
var envOnlyKeys = []string{
	"state.postgres.dsn",
	"state.redis.address",
	"state.redis.password",
	"state.redis.db",
	"storage.folder_id",
	"storage.bucket",
	"storage.prefix",
	"storage.s3.region",
	"storage.s3.endpoint",
	"storage.s3.path_style",
	"storage.s3.credentials_file",
	"notify.project_id",
	"notify.topic",
	"metrics.pushgateway_url",
	"server.listen",
}

func bindEnv(v *viper.Viper) error {
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listing.url", "https://www.sebi.gov.in/filings/public-issues.html")
	v.SetDefault("listing.keywords", []string{"draft", "drhp", "red-herring", "red herring", "offer document"})
	v.SetDefault("listing.extension", ".pdf")
	v.SetDefault("http.user_agent", "drhp-downloader/1.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("archive.output_dir", "drhps")
	v.SetDefault("archive.delay_ms", 1000)
	v.SetDefault("archive.show_progress", false)
	v.SetDefault("state.backend", "file")
	v.SetDefault("state.file", "downloaded.json")
	v.SetDefault("state.postgres.table", "processed_urls")
	v.SetDefault("state.redis.key", "drhp:processed")
	v.SetDefault("storage.backend", "drive")
	v.SetDefault("storage.local_dir", "archive")
	v.SetDefault("storage.credentials_file", "service_account.json")
	v.SetDefault("metrics.job", "drhp_archiver")
	v.SetDefault("schedule.cron", "@every 6h")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values per selected backend.
func (c Config) Validate() error {
	if err := validateURL("listing.url", c.Listing.URL); err != nil {
		return err
	}
	if len(c.Listing.Keywords) == 0 {
		return invalid("listing.keywords", "at least one keyword is required")
	}
	if strings.TrimSpace(c.Listing.Extension) == "" {
		return invalid("listing.extension", "must not be empty")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return invalid("http.timeout_seconds", "must be > 0")
	}
	if c.Archive.OutputDir == "" {
		return invalid("archive.output_dir", "must not be empty")
	}
	if c.Archive.DelayMs < 0 {
		return invalid("archive.delay_ms", "must be >= 0")
	}

	switch c.State.Backend {
	case "file":
		if c.State.File == "" {
			return invalid("state.file", "required for the file backend")
		}
	case "postgres":
		if c.State.Postgres.DSN == "" {
			return invalid("state.postgres.dsn", "required for the postgres backend")
		}
	case "redis":
		if c.State.Redis.Address == "" {
			return invalid("state.redis.address", "required for the redis backend")
		}
	default:
		return invalid("state.backend", fmt.Sprintf("unknown backend %q", c.State.Backend))
	}

	switch c.Storage.Backend {
	case "drive":
		if c.Storage.FolderID == "" {
			return invalid("storage.folder_id", "required for the drive backend")
		}
		if c.Storage.CredentialsFile == "" {
			return invalid("storage.credentials_file", "required for the drive backend")
		}
	case "gcs", "s3":
		if c.Storage.Bucket == "" {
			return invalid("storage.bucket", "required for the "+c.Storage.Backend+" backend")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return invalid("storage.local_dir", "required for the local backend")
		}
	case "memory":
	default:
		return invalid("storage.backend", fmt.Sprintf("unknown backend %q", c.Storage.Backend))
	}

	if c.Notify.Enabled() && c.Notify.ProjectID == "" {
		return invalid("notify.project_id", "required when notify.topic is set")
	}
	if c.Server.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
			return &archiver.ConfigError{Field: "server.listen", Err: err}
		}
	}
	if c.Metrics.PushgatewayURL != "" {
		if err := validateURL("metrics.pushgateway_url", c.Metrics.PushgatewayURL); err != nil {
			return err
		}
	}
	return nil
}

// Timeout converts http.timeout_seconds into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Delay converts archive.delay_ms into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Archive.DelayMs) * time.Millisecond
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &archiver.ConfigError{Field: field, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return invalid(field, fmt.Sprintf("%q is not an absolute http(s) URL", raw))
	}
	return nil
}

func invalid(field, msg string) error {
	return &archiver.ConfigError{Field: field, Err: fmt.Errorf("%s", msg)}
}
