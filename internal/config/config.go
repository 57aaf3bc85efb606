package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/resilience"
	"github.com/sells-group/connect-cli/internal/review"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP review host.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	IngestRatePerMin int      `yaml:"ingest_rate_per_min" mapstructure:"ingest_rate_per_min"`
}

// MatchConfig tunes the duplicate matcher.
type MatchConfig struct {
	NameThreshold           float64 `yaml:"name_threshold" mapstructure:"name_threshold"`
	PhoneThreshold          float64 `yaml:"phone_threshold" mapstructure:"phone_threshold"`
	NameWeight              float64 `yaml:"name_weight" mapstructure:"name_weight"`
	LookupTimeoutMs         int     `yaml:"lookup_timeout_ms" mapstructure:"lookup_timeout_ms"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
	CandidateLimit          int     `yaml:"candidate_limit" mapstructure:"candidate_limit"`
}

// ReviewConfig holds review session options and capability toggles.
type ReviewConfig struct {
	DebounceMs     int  `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	TwoSidedImages bool `yaml:"two_sided_images" mapstructure:"two_sided_images"`
	SMSAutomation  bool `yaml:"sms_automation" mapstructure:"sms_automation"`
	BatchMode      bool `yaml:"batch_mode" mapstructure:"batch_mode"`
}

// StorageConfig configures where card images live and how URLs are issued.
type StorageConfig struct {
	Mode         string `yaml:"mode" mapstructure:"mode"`
	Bucket       string `yaml:"bucket" mapstructure:"bucket"`
	Region       string `yaml:"region" mapstructure:"region"`
	URLTTLMins   int    `yaml:"url_ttl_mins" mapstructure:"url_ttl_mins"`
	LocalBaseURL string `yaml:"local_base_url" mapstructure:"local_base_url"`
}

// AnthropicConfig holds Anthropic API settings for card extraction.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RetryConfig configures backoff for extraction and URL signing.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// IngestConfig configures the batch ingest command.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitoringConfig configures the review queue backlog checker.
type MonitoringConfig struct {
	WebhookURL          string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int    `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	BacklogThreshold    int    `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
	StaleAfterHours     int    `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.ingest_rate_per_min", 60)
	v.SetDefault("match.name_threshold", 0.85)
	v.SetDefault("match.phone_threshold", 0.85)
	v.SetDefault("match.name_weight", 0.6)
	v.SetDefault("match.lookup_timeout_ms", 3000)
	v.SetDefault("match.circuit_failure_threshold", 5)
	v.SetDefault("match.circuit_reset_secs", 30)
	v.SetDefault("match.candidate_limit", 25)
	v.SetDefault("review.debounce_ms", 300)
	v.SetDefault("review.two_sided_images", false)
	v.SetDefault("review.sms_automation", false)
	v.SetDefault("review.batch_mode", false)
	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.url_ttl_mins", 15)
	v.SetDefault("storage.local_base_url", "/demo/cards")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 250)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.backlog_threshold", 200)
	v.SetDefault("monitoring.stale_after_hours", 72)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it touches anything.
func (c *Config) Validate(mode string) error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the sqlite driver (a file path)")
		}
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Match.NameThreshold <= 0 || c.Match.NameThreshold > 1 {
		return eris.Errorf("config: match.name_threshold must be in (0, 1], got %v", c.Match.NameThreshold)
	}
	if c.Match.PhoneThreshold <= 0 || c.Match.PhoneThreshold > 1 {
		return eris.Errorf("config: match.phone_threshold must be in (0, 1], got %v", c.Match.PhoneThreshold)
	}

	switch mode {
	case "review", "migrate", "import", "seed", "cards":
		return nil
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return eris.Errorf("config: server.port out of range: %d", c.Server.Port)
		}
		return c.validateStorage()
	case "ingest":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required for ingest")
		}
		return c.validateStorage()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
}

func (c *Config) validateStorage() error {
	switch c.Storage.Mode {
	case "local":
		return nil
	case "s3":
		if c.Storage.Bucket == "" {
			return eris.New("config: storage.bucket is required in s3 mode")
		}
		return nil
	default:
		return eris.Errorf("config: unknown storage.mode %q", c.Storage.Mode)
	}
}

// MatcherConfig converts the match section into matcher settings.
func (c *Config) MatcherConfig() match.Config {
	return match.Config{
		NameThreshold:  c.Match.NameThreshold,
		PhoneThreshold: c.Match.PhoneThreshold,
		NameWeight:     c.Match.NameWeight,
		LookupTimeout:  time.Duration(c.Match.LookupTimeoutMs) * time.Millisecond,
		CandidateLimit: c.Match.CandidateLimit,
		Circuit:        resilience.FromCircuitConfig(c.Match.CircuitFailureThreshold, c.Match.CircuitResetSecs),
	}
}

// ReviewOptions converts the review section into controller options.
func (c *Config) ReviewOptions() review.Options {
	return review.Options{
		Capabilities: review.Capabilities{
			TwoSidedImages: c.Review.TwoSidedImages,
			SMSAutomation:  c.Review.SMSAutomation,
			BatchMode:      c.Review.BatchMode,
		},
		Debounce: time.Duration(c.Review.DebounceMs) * time.Millisecond,
	}
}

// RetryPolicy converts the retry section into a resilience config.
func (c *Config) RetryPolicy() resilience.RetryConfig {
	return resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
}

// URLTTL is how long a signed image URL stays valid.
func (c *Config) URLTTL() time.Duration {
	return time.Duration(c.Storage.URLTTLMins) * time.Minute
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
