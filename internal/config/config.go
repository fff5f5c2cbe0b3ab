// Package config loads RustMailer's daemon configuration: flags and
// environment variables layered over sensible defaults via spf13/viper and
// its companion pflag library, the teacher's own configuration pattern
// generalized from the teacher's (unrelated) database/Gmail/Outlook knobs to
// the ones this daemon actually needs (root_dir, public_url, encryption key,
// port numbers, feature enable-flags, backup retention).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults mirror spec.md §5/§6: 30s request timeout (max 600 via the
// per-request override header), 60s connect timeout, 120s pool idle, 72h
// task cleanup retention, 10 max backups.
const (
	DefaultHTTPPort             = 15630
	DefaultGRPCPort             = 15631
	DefaultMetricsPort          = 15632
	DefaultRequestTimeout       = 30 * time.Second
	DefaultMaxRequestTimeout    = 600 * time.Second
	DefaultShutdownTimeout      = 30 * time.Second
	DefaultCleanupIntervalHrs   = 72
	DefaultMaxBackups           = 10
	DefaultSchedulerConcurrency = 4
	MinPortNumber               = 1
	MaxPortNumber               = 65535
)

// Config is the full set of daemon knobs, loadable from flags, environment
// variables (prefixed RUSTMAILER_) and an optional config file.
type Config struct {
	RootDir   string `mapstructure:"root_dir"`
	PublicURL string `mapstructure:"public_url"`
	LogLevel  string `mapstructure:"log_level"`

	HTTPPort    int    `mapstructure:"http_port"`
	GRPCPort    int    `mapstructure:"grpc_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	EnableHTTPS bool   `mapstructure:"enable_https"`
	EnableGRPC  bool   `mapstructure:"enable_grpc"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	GRPCCompression string `mapstructure:"grpc_compression"` // none|gzip|brotli|zstd|deflate

	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// EncryptPassword is the symmetric key material at-rest secrets are
	// derived from (see internal/secretcrypt); must be changed from the
	// default in production.
	EncryptPassword string `mapstructure:"encrypt_password"`

	EnableAccessToken bool   `mapstructure:"enable_access_token"`
	RootToken         string `mapstructure:"root_token"`

	EnableTracking  bool   `mapstructure:"enable_tracking"`
	TrackingBaseURL string `mapstructure:"tracking_base_url"`

	BackupDir  string `mapstructure:"backup_dir"`
	MaxBackups int    `mapstructure:"max_backups"`

	CleanupIntervalHours int `mapstructure:"cleanup_interval_hours"`
	SchedulerConcurrency int `mapstructure:"scheduler_concurrency"`

	// RateLimitBackend names a per-token limiter implementation: "memory"
	// (default, golang.org/x/time/rate, single node) or "redis"
	// (github.com/redis/go-redis/v9). Load checks that the value is one of
	// the two, but the daemon reads neither RateLimitBackend nor RedisAddr:
	// the access-control gate always uses the in-process limiter.
	RateLimitBackend string `mapstructure:"rate_limit_backend"`
	RedisAddr        string `mapstructure:"redis_addr"`

	OAuth2CallbackSuccessURL string `mapstructure:"oauth2_callback_success_url"`

	Version string `mapstructure:"version"`
	Commit  string `mapstructure:"commit"`
}

// BindFlags registers pflag flags mirroring every Config field.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("root-dir", "./rustmailer-data", "data directory for sqlite databases, disk cache and backups")
	fs.String("public-url", "http://127.0.0.1:15630", "externally reachable base URL, used to build tracking/oauth2 callback links")
	fs.String("log-level", "info", "debug|info|warn|error")
	fs.Int("http-port", DefaultHTTPPort, "REST listen port")
	fs.Int("grpc-port", DefaultGRPCPort, "gRPC listen port")
	fs.Int("metrics-port", DefaultMetricsPort, "metrics port (range-checked only; /metrics is served on the REST port)")
	fs.Bool("enable-https", false, "serve REST over TLS using tls-cert-file/tls-key-file")
	fs.Bool("enable-grpc", true, "start the gRPC server alongside REST")
	fs.String("tls-cert-file", "", "PEM certificate, required when enable-https is set")
	fs.String("tls-key-file", "", "PEM key, required when enable-https is set")
	fs.String("grpc-compression", "gzip", "none|gzip|brotli|zstd|deflate")
	fs.Duration("request-timeout", DefaultRequestTimeout, "REST server read timeout (the per-request handler timeout is a fixed 30s unless overridden by header)")
	fs.Duration("shutdown-timeout", DefaultShutdownTimeout, "graceful shutdown deadline")
	fs.String("encrypt-password", "change-me-in-production", "symmetric key material for at-rest secret encryption; MUST be changed in production")
	fs.Bool("enable-access-token", true, "require a bearer/query-param access token on every REST/gRPC call")
	fs.String("root-token", "", "root bearer token granting all scopes and accounts; when empty, a new one is generated on every boot and not persisted")
	fs.Bool("enable-tracking", true, "global switch for open/click tracking instrumentation")
	fs.String("tracking-base-url", "", "base URL tracking pixels/redirects are rewritten to point at; defaults to public-url + /t")
	fs.String("backup-dir", "", "backup directory setting; loaded but not used, the daemon writes no database snapshots")
	fs.Int("max-backups", DefaultMaxBackups, "snapshot generation limit; loaded but not used, the daemon writes no database snapshots")
	fs.Int("cleanup-interval-hours", DefaultCleanupIntervalHrs, "retention window for terminal task rows")
	fs.Int("scheduler-concurrency", DefaultSchedulerConcurrency, "default per-queue worker concurrency")
	fs.String("rate-limit-backend", "memory", "memory|redis")
	fs.String("redis-addr", "127.0.0.1:6379", "redis address; loaded but not used, the rate limiter is always in-process")
	fs.String("oauth2-callback-success-url", "", "redirect target after a successful oauth2 authorization-code exchange")
}

// Load builds a Config from fs (already parsed), environment variables
// prefixed RUSTMAILER_, and an optional rustmailer.yaml in root-dir or the
// working directory.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RUSTMAILER")
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetConfigName("rustmailer")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if rootDir := v.GetString("root_dir"); rootDir != "" {
		v.AddConfigPath(rootDir)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TrackingBaseURL == "" {
		cfg.TrackingBaseURL = cfg.PublicURL + "/t"
	}
	if cfg.OAuth2CallbackSuccessURL == "" {
		cfg.OAuth2CallbackSuccessURL = cfg.PublicURL + "/"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the constraints called out in spec.md §6: root_dir
// must be creatable, ports in range, https requires a cert/key pair.
func (c *Config) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root_dir must be set")
	}
	if err := os.MkdirAll(c.RootDir, 0o700); err != nil {
		return fmt.Errorf("root_dir %q must exist or be creatable: %w", c.RootDir, err)
	}
	for name, port := range map[string]int{"http_port": c.HTTPPort, "grpc_port": c.GRPCPort, "metrics_port": c.MetricsPort} {
		if port < MinPortNumber || port > MaxPortNumber {
			return fmt.Errorf("%s %d out of range [%d,%d]", name, port, MinPortNumber, MaxPortNumber)
		}
	}
	if c.EnableHTTPS && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("enable_https requires tls_cert_file and tls_key_file")
	}
	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("rate_limit_backend must be memory or redis, got %q", c.RateLimitBackend)
	}
	if c.EncryptPassword == "" {
		return fmt.Errorf("encrypt_password must not be empty")
	}
	return nil
}
