package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Correlation CorrelationConfig
	JWT         JWTConfig
	Shopline    ShoplineConfig
	NextEngine  NextEngineConfig
	Completion  CompletionConfig
	Audit       AuditConfig
	Scheduler   SchedulerConfig
	Archive     ArchiveConfig
	Swagger     SwaggerConfig
	Log         LogConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsProduction returns true when running in production
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
	TrustedProxies  []string
	MaxBodySize     int64

	// CORSAllowOrigins lists browser origins allowed to call the API; empty allows none
	CORSAllowOrigins []string
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
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CorrelationConfig controls how an OAuth callback is tied back to the user who started it
type CorrelationConfig struct {
	TTL    time.Duration
	Secret string // seals correlation tokens; at least 32 characters in production
	// AllowMemoryFallback permits an in-process store when Redis is unreachable
	AllowMemoryFallback bool
	// SystemUserFallback attributes unresolvable callbacks to SystemUserID.
	// Only honored for StatelessPlatforms and never in production.
	SystemUserFallback bool
	SystemUserID       string
	StatelessPlatforms []string
}

// JWTConfig holds settings for bearer tokens and session identifiers
type JWTConfig struct {
	Secret                string
	Issuer                string
	AccessTokenExpiration time.Duration
	SessionExpiration     time.Duration
	SessionCookieName     string
}

// ShoplineConfig holds SHOPLINE app credentials
type ShoplineConfig struct {
	Enabled        bool
	AppKey         string
	AppSecret      string
	RedirectURI    string
	Scopes         []string
	APIVersion     string
	BaseURL        string
	TimeoutSeconds int
}

// NextEngineConfig holds Next Engine app credentials
type NextEngineConfig struct {
	Enabled        bool
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	AuthBaseURL    string
	APIBaseURL     string
	TimeoutSeconds int

	// CorrelationQueryKey names the redirect URI parameter carrying the correlation token
	CorrelationQueryKey string
}

// CompletionConfig holds the page users land on after the OAuth callback
type CompletionConfig struct {
	RedirectURL string
}

// AuditConfig controls detached audit writes
type AuditConfig struct {
	WriteTimeout time.Duration
	DrainTimeout time.Duration
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	Enabled        bool
	RefreshCron    string        // cron expression with seconds field
	RefreshWindow  time.Duration // refresh tokens expiring within this window
	RefreshBatch   int
	MaxConcurrency int
	RefreshPark    time.Duration // skip connections after a non-retryable refresh failure
	ArchiveCron    string
	JobTimeout     time.Duration
}

// ArchiveConfig holds the S3-compatible audit archive settings
type ArchiveConfig struct {
	Enabled         bool
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// SwaggerConfig controls the API documentation endpoint
type SwaggerConfig struct {
	Enabled    bool
	AllowedIPs []string
}

// TelemetryConfig holds OpenTelemetry, Prometheus and profiling configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled bool // Enable database query tracing (otelgorm)
	DBLogFullSQL   bool // Log full SQL statements (dev only)
	// Metrics options
	MetricsEnabled     bool          // Export orchestration counters over OTLP
	MetricsInterval    time.Duration // OTLP export interval
	LogsEnabled        bool          // Mirror zap output to the OTLP logs pipeline
	PrometheusEnabled  bool          // Serve HTTP metrics in Prometheus format
	PrometheusPath     string
	ProfilingEnabled   bool
	ProfilingServer    string
	ProfilingBasicUser string
	ProfilingBasicPass string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CONNHUB_ prefix (e.g., CONNHUB_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CONNHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),

			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
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
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Correlation: CorrelationConfig{
			TTL:                 v.GetDuration("correlation.ttl"),
			Secret:              v.GetString("correlation.secret"),
			AllowMemoryFallback: v.GetBool("correlation.allow_memory_fallback"),
			SystemUserFallback:  v.GetBool("correlation.system_user_fallback"),
			SystemUserID:        v.GetString("correlation.system_user_id"),
			StatelessPlatforms:  v.GetStringSlice("correlation.stateless_platforms"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			Issuer:                v.GetString("jwt.issuer"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			SessionExpiration:     v.GetDuration("jwt.session_expiration"),
			SessionCookieName:     v.GetString("jwt.session_cookie_name"),
		},
		Shopline: ShoplineConfig{
			Enabled:        v.GetBool("shopline.enabled"),
			AppKey:         v.GetString("shopline.app_key"),
			AppSecret:      v.GetString("shopline.app_secret"),
			RedirectURI:    v.GetString("shopline.redirect_uri"),
			Scopes:         v.GetStringSlice("shopline.scopes"),
			APIVersion:     v.GetString("shopline.api_version"),
			BaseURL:        v.GetString("shopline.base_url"),
			TimeoutSeconds: v.GetInt("shopline.timeout_seconds"),
		},
		NextEngine: NextEngineConfig{
			Enabled:        v.GetBool("nextengine.enabled"),
			ClientID:       v.GetString("nextengine.client_id"),
			ClientSecret:   v.GetString("nextengine.client_secret"),
			RedirectURI:    v.GetString("nextengine.redirect_uri"),
			AuthBaseURL:    v.GetString("nextengine.auth_base_url"),
			APIBaseURL:     v.GetString("nextengine.api_base_url"),
			TimeoutSeconds: v.GetInt("nextengine.timeout_seconds"),

			CorrelationQueryKey: v.GetString("nextengine.correlation_query_key"),
		},
		Completion: CompletionConfig{
			RedirectURL: v.GetString("completion.redirect_url"),
		},
		Audit: AuditConfig{
			WriteTimeout: v.GetDuration("audit.write_timeout"),
			DrainTimeout: v.GetDuration("audit.drain_timeout"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        v.GetBool("scheduler.enabled"),
			RefreshCron:    v.GetString("scheduler.refresh_cron"),
			RefreshWindow:  v.GetDuration("scheduler.refresh_window"),
			RefreshBatch:   v.GetInt("scheduler.refresh_batch"),
			MaxConcurrency: v.GetInt("scheduler.max_concurrency"),
			RefreshPark:    v.GetDuration("scheduler.refresh_park"),
			ArchiveCron:    v.GetString("scheduler.archive_cron"),
			JobTimeout:     v.GetDuration("scheduler.job_timeout"),
		},
		Archive: ArchiveConfig{
			Enabled:         v.GetBool("archive.enabled"),
			Bucket:          v.GetString("archive.bucket"),
			Prefix:          v.GetString("archive.prefix"),
			Region:          v.GetString("archive.region"),
			Endpoint:        v.GetString("archive.endpoint"),
			AccessKeyID:     v.GetString("archive.access_key_id"),
			SecretAccessKey: v.GetString("archive.secret_access_key"),
			UsePathStyle:    v.GetBool("archive.use_path_style"),
		},
		Swagger: SwaggerConfig{
			Enabled:    v.GetBool("swagger.enabled"),
			AllowedIPs: v.GetStringSlice("swagger.allowed_ips"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:            v.GetBool("telemetry.enabled"),
			CollectorEndpoint:  v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:      v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:        v.GetString("telemetry.service_name"),
			Insecure:           v.GetBool("telemetry.insecure"),
			DBTraceEnabled:     v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:       v.GetBool("telemetry.db_log_full_sql"),
			MetricsEnabled:     v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:    v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:        v.GetBool("telemetry.logs_enabled"),
			PrometheusEnabled:  v.GetBool("telemetry.prometheus_enabled"),
			PrometheusPath:     v.GetString("telemetry.prometheus_path"),
			ProfilingEnabled:   v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:    v.GetString("telemetry.profiling_server"),
			ProfilingBasicUser: v.GetString("telemetry.profiling_basic_user"),
			ProfilingBasicPass: v.GetString("telemetry.profiling_basic_pass"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "connhub"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
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
		cfg.Database.DBName = "connhub"
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
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Correlation.TTL == 0 {
		cfg.Correlation.TTL = 10 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "connhub"
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.SessionExpiration == 0 {
		cfg.JWT.SessionExpiration = 24 * time.Hour
	}
	if cfg.JWT.SessionCookieName == "" {
		cfg.JWT.SessionCookieName = "connhub_session"
	}
	if cfg.NextEngine.CorrelationQueryKey == "" {
		cfg.NextEngine.CorrelationQueryKey = "ct"
	}
	if len(cfg.Shopline.Scopes) == 0 {
		cfg.Shopline.Scopes = []string{"read_store_information", "read_orders"}
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = 5 * time.Second
	}
	if cfg.Audit.DrainTimeout == 0 {
		cfg.Audit.DrainTimeout = 10 * time.Second
	}
	if cfg.Scheduler.RefreshCron == "" {
		cfg.Scheduler.RefreshCron = "0 */30 * * * *"
	}
	if cfg.Scheduler.RefreshWindow == 0 {
		cfg.Scheduler.RefreshWindow = 2 * time.Hour
	}
	if cfg.Scheduler.RefreshBatch == 0 {
		cfg.Scheduler.RefreshBatch = 200
	}
	if cfg.Scheduler.MaxConcurrency == 0 {
		cfg.Scheduler.MaxConcurrency = 4
	}
	if cfg.Scheduler.RefreshPark == 0 {
		cfg.Scheduler.RefreshPark = 24 * time.Hour
	}
	if cfg.Scheduler.ArchiveCron == "" {
		cfg.Scheduler.ArchiveCron = "0 30 1 * * *"
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 20 * time.Minute
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "audit"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
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
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "connhub"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.PrometheusPath == "" {
		cfg.Telemetry.PrometheusPath = "/metrics"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Correlation.SystemUserFallback {
		if c.Correlation.SystemUserID == "" {
			return fmt.Errorf("correlation.system_user_id is required when correlation.system_user_fallback is enabled")
		}
		if len(c.Correlation.StatelessPlatforms) == 0 {
			return fmt.Errorf("correlation.stateless_platforms must list at least one platform when correlation.system_user_fallback is enabled")
		}
	}

	if c.Scheduler.MaxConcurrency <= 0 {
		return fmt.Errorf("scheduler.max_concurrency must be positive")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}

	// Production-specific validations
	if c.App.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if len(c.Correlation.Secret) < 32 {
			return fmt.Errorf("correlation.secret must be at least 32 characters in production")
		}
		if c.Correlation.SystemUserFallback {
			return fmt.Errorf("correlation.system_user_fallback cannot be enabled in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Completion.RedirectURL == "" {
			return fmt.Errorf("completion.redirect_url is required in production")
		}
		if c.Swagger.Enabled && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger.allowed_ips must be set when swagger is enabled in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
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

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
