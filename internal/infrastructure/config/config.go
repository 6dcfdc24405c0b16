package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	JWT        JWTConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
	Storage    StorageConfig
	Ingestion  IngestionConfig
	Sync       SyncConfig
	Automation AutomationConfig
	Security   SecurityConfig
	// Channels maps a channel type to its REST endpoint settings
	Channels map[string]ChannelConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        string // silent, error, warn, info
}

// RedisConfig holds Redis connection settings. When disabled, locks are process-local.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// JWTConfig holds token verification settings. Tokens are issued elsewhere.
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string

	// RateLimitPerSecond is the per-client request rate; 0 disables limiting
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
	LogsEnabled       bool
	ProfilingEnabled  bool
	ProfilerAddress   string
}

// StorageConfig holds S3-compatible object storage settings for candidate snapshots
type StorageConfig struct {
	Enabled        bool
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// Thresholds is one duplicate/quality pair
type Thresholds struct {
	Duplicate float64 `mapstructure:"duplicate"`
	Quality   float64 `mapstructure:"quality"`
}

// IngestionConfig holds the ingestion pipeline settings
type IngestionConfig struct {
	DuplicateThreshold float64
	QualityThreshold   float64
	// CategoryThresholds overrides both thresholds per category
	CategoryThresholds map[string]Thresholds
	CorpusLimit        int
	TopK               int
	LockTTL            time.Duration
	ExtractorURL       string
	ExtractorTimeout   time.Duration
	ExtractorRetries   int
}

// SyncConfig holds the synchronization engine settings
type SyncConfig struct {
	Enabled           bool
	Workers           int
	PassInterval      time.Duration
	PassBudget        time.Duration
	RemoteCallTimeout time.Duration
	DriftInterval     time.Duration
	TripThreshold     int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	OrderLookback     time.Duration
	ProbeTimeout      time.Duration
	RateLimitPerMin   int
}

// DefaultChannelType is registered when no channels are configured
const DefaultChannelType = "rest_marketplace"

// ChannelConfig holds per-channel-type client settings.
// An empty BaseURL means each connection supplies a base_url credential.
type ChannelConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_minute"`
	Burst           int           `mapstructure:"burst"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// AutomationConfig holds the order automation client and task queue settings
type AutomationConfig struct {
	Enabled   bool
	BaseURL   string
	Timeout   time.Duration
	QueueSize int
	Workers   int
}

// SecurityConfig holds secrets used at rest
type SecurityConfig struct {
	// CredentialKey is a 32-byte hex key sealing channel credentials
	CredentialKey string
}

// CredentialKeyBytes decodes CredentialKey
func (s SecurityConfig) CredentialKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(s.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("security.credential_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("security.credential_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Load reads config.toml (optional) and CATALOG_ environment overrides.
// Environment variables win over the file; the file wins over defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return load(v)
}

// LoadFile reads the given file instead of searching for config.toml
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),

			RateLimitPerSecond: v.GetFloat64("http.rate_limit_per_second"),
			RateLimitBurst:     v.GetInt("http.rate_limit_burst"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilerAddress:   v.GetString("telemetry.profiler_address"),
		},
		Storage: StorageConfig{
			Enabled:        v.GetBool("storage.enabled"),
			Endpoint:       v.GetString("storage.endpoint"),
			Region:         v.GetString("storage.region"),
			Bucket:         v.GetString("storage.bucket"),
			AccessKey:      v.GetString("storage.access_key"),
			SecretKey:      v.GetString("storage.secret_key"),
			ForcePathStyle: v.GetBool("storage.force_path_style"),
		},
		Ingestion: IngestionConfig{
			DuplicateThreshold: v.GetFloat64("ingestion.duplicate_threshold"),
			QualityThreshold:   v.GetFloat64("ingestion.quality_threshold"),
			CorpusLimit:        v.GetInt("ingestion.corpus_limit"),
			TopK:               v.GetInt("ingestion.top_k"),
			LockTTL:            v.GetDuration("ingestion.lock_ttl"),
			ExtractorURL:       v.GetString("ingestion.extractor_url"),
			ExtractorTimeout:   v.GetDuration("ingestion.extractor_timeout"),
			ExtractorRetries:   v.GetInt("ingestion.extractor_retries"),
		},
		Sync: SyncConfig{
			Enabled:           v.GetBool("sync.enabled"),
			Workers:           v.GetInt("sync.workers"),
			PassInterval:      v.GetDuration("sync.pass_interval"),
			PassBudget:        v.GetDuration("sync.pass_budget"),
			RemoteCallTimeout: v.GetDuration("sync.remote_call_timeout"),
			DriftInterval:     v.GetDuration("sync.drift_interval"),
			TripThreshold:     v.GetInt("sync.trip_threshold"),
			BackoffBase:       v.GetDuration("sync.backoff_base"),
			BackoffCap:        v.GetDuration("sync.backoff_cap"),
			OrderLookback:     v.GetDuration("sync.order_lookback"),
			ProbeTimeout:      v.GetDuration("sync.probe_timeout"),
			RateLimitPerMin:   v.GetInt("sync.rate_limit_per_minute"),
		},
		Automation: AutomationConfig{
			Enabled:   v.GetBool("automation.enabled"),
			BaseURL:   v.GetString("automation.base_url"),
			Timeout:   v.GetDuration("automation.timeout"),
			QueueSize: v.GetInt("automation.queue_size"),
			Workers:   v.GetInt("automation.workers"),
		},
		Security: SecurityConfig{
			CredentialKey: v.GetString("security.credential_key"),
		},
	}

	if v.IsSet("ingestion.category_thresholds") {
		if err := v.UnmarshalKey("ingestion.category_thresholds", &cfg.Ingestion.CategoryThresholds); err != nil {
			return nil, fmt.Errorf("ingestion.category_thresholds: %w", err)
		}
	}
	if v.IsSet("channels") {
		if err := v.UnmarshalKey("channels", &cfg.Channels); err != nil {
			return nil, fmt.Errorf("channels: %w", err)
		}
	}
	// sync.enabled defaults to true; only an explicit false turns it off
	if !v.IsSet("sync.enabled") {
		cfg.Sync.Enabled = true
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalogsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "catalogsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30 * time.Minute
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "catalogsync"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// ingestion blocks on the extractor, so writes get more room than reads
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 90 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateLimitPerSecond > 0 && cfg.HTTP.RateLimitBurst <= 0 {
		cfg.HTTP.RateLimitBurst = int(cfg.HTTP.RateLimitPerSecond * 2)
		if cfg.HTTP.RateLimitBurst < 1 {
			cfg.HTTP.RateLimitBurst = 1
		}
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = time.Minute
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilerAddress == "" {
		cfg.Telemetry.ProfilerAddress = "http://localhost:4040"
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "catalogsync-snapshots"
	}

	if cfg.Ingestion.DuplicateThreshold == 0 {
		cfg.Ingestion.DuplicateThreshold = 0.80
	}
	if cfg.Ingestion.QualityThreshold == 0 {
		cfg.Ingestion.QualityThreshold = 0.90
	}
	if cfg.Ingestion.CorpusLimit == 0 {
		cfg.Ingestion.CorpusLimit = 500
	}
	if cfg.Ingestion.TopK == 0 {
		cfg.Ingestion.TopK = 5
	}
	if cfg.Ingestion.LockTTL == 0 {
		cfg.Ingestion.LockTTL = 2 * time.Minute
	}
	if cfg.Ingestion.ExtractorURL == "" {
		cfg.Ingestion.ExtractorURL = "http://localhost:9090"
	}
	if cfg.Ingestion.ExtractorTimeout == 0 {
		cfg.Ingestion.ExtractorTimeout = 45 * time.Second
	}

	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.PassInterval == 0 {
		cfg.Sync.PassInterval = time.Minute
	}
	if cfg.Sync.PassBudget == 0 {
		cfg.Sync.PassBudget = 2 * time.Minute
	}
	if cfg.Sync.RemoteCallTimeout == 0 {
		cfg.Sync.RemoteCallTimeout = 15 * time.Second
	}
	if cfg.Sync.DriftInterval == 0 {
		cfg.Sync.DriftInterval = 30 * time.Minute
	}
	if cfg.Sync.TripThreshold == 0 {
		cfg.Sync.TripThreshold = 5
	}
	if cfg.Sync.BackoffBase == 0 {
		cfg.Sync.BackoffBase = 30 * time.Second
	}
	if cfg.Sync.BackoffCap == 0 {
		cfg.Sync.BackoffCap = 30 * time.Minute
	}
	if cfg.Sync.OrderLookback == 0 {
		cfg.Sync.OrderLookback = 24 * time.Hour
	}
	if cfg.Sync.ProbeTimeout == 0 {
		cfg.Sync.ProbeTimeout = 10 * time.Second
	}
	if cfg.Sync.RateLimitPerMin == 0 {
		cfg.Sync.RateLimitPerMin = 120
	}

	if cfg.Automation.Timeout == 0 {
		cfg.Automation.Timeout = 30 * time.Second
	}
	if cfg.Automation.QueueSize == 0 {
		cfg.Automation.QueueSize = 256
	}
	if cfg.Automation.Workers == 0 {
		cfg.Automation.Workers = 2
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = map[string]ChannelConfig{DefaultChannelType: {}}
	}
	for name, ch := range cfg.Channels {
		if ch.RateLimitPerMin == 0 {
			ch.RateLimitPerMin = cfg.Sync.RateLimitPerMin
		}
		if ch.Timeout == 0 {
			ch.Timeout = cfg.Sync.RemoteCallTimeout
		}
		cfg.Channels[name] = ch
	}
}

func (c *Config) validate() error {
	for name, ch := range c.Channels {
		if ch.RateLimitPerMin < 0 || ch.Burst < 0 {
			return fmt.Errorf("channels.%s: rate limit and burst cannot be negative", name)
		}
		if ch.BaseURL != "" {
			if u, err := url.Parse(ch.BaseURL); err != nil || u.Host == "" {
				return fmt.Errorf("channels.%s.base_url is not a valid URL", name)
			}
		}
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if err := checkThresholds("ingestion", c.Ingestion.DuplicateThreshold, c.Ingestion.QualityThreshold); err != nil {
		return err
	}
	for category, t := range c.Ingestion.CategoryThresholds {
		if err := checkThresholds("ingestion.category_thresholds."+category, t.Duplicate, t.Quality); err != nil {
			return err
		}
	}
	if c.Ingestion.ExtractorRetries < 0 {
		return fmt.Errorf("ingestion.extractor_retries cannot be negative")
	}

	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1")
	}
	if c.Sync.RemoteCallTimeout >= c.Sync.PassBudget {
		return fmt.Errorf("sync.remote_call_timeout (%s) must be shorter than sync.pass_budget (%s)",
			c.Sync.RemoteCallTimeout, c.Sync.PassBudget)
	}
	if c.Sync.TripThreshold < 1 {
		return fmt.Errorf("sync.trip_threshold must be at least 1")
	}
	if c.Sync.BackoffCap < c.Sync.BackoffBase {
		return fmt.Errorf("sync.backoff_cap cannot be below sync.backoff_base")
	}

	if c.Automation.Enabled && c.Automation.BaseURL == "" {
		return fmt.Errorf("automation.base_url is required when automation is enabled")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.Security.CredentialKey != "" {
		if _, err := c.Security.CredentialKeyBytes(); err != nil {
			return err
		}
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Security.CredentialKey == "" {
			return fmt.Errorf("security.credential_key is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("http.cors_allow_origins cannot be '*' in production")
			}
		}
	}
	return nil
}

func checkThresholds(section string, duplicate, quality float64) error {
	if duplicate < 0 || duplicate > 1 {
		return fmt.Errorf("%s duplicate threshold must be within [0,1], got %f", section, duplicate)
	}
	if quality < 0 || quality > 1 {
		return fmt.Errorf("%s quality threshold must be within [0,1], got %f", section, quality)
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
