package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Marketing  MarketingConfig  `mapstructure:"marketing"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	EventsTopic    string   `mapstructure:"events_topic"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type NATSConfig struct {
	URL     string        `mapstructure:"url"`
	Stream  string        `mapstructure:"stream"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinWait     time.Duration `mapstructure:"min_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
}

type StripeConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retry         RetryConfig   `mapstructure:"retry"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type MarketingConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	TimeoutMs  int           `mapstructure:"timeout_ms"`
	Require2xx bool          `mapstructure:"require_2xx"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

type IdentityConfig struct {
	Transport string `mapstructure:"transport"` // kafka | nats
	Topic     string `mapstructure:"topic"`
}

type LedgerConfig struct {
	Driver string `mapstructure:"driver"` // mysql | redis
}

type SweepConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	HoursBack     int           `mapstructure:"hours_back"`
	PageSize      int           `mapstructure:"page_size"`
	ReplayPartial bool          `mapstructure:"replay_partial"`
	EventTimeout  time.Duration `mapstructure:"event_timeout"`
}

type WebhookConfig struct {
	Mode      string `mapstructure:"mode"` // sync | async
	BodyLimit int64  `mapstructure:"body_limit"`
}

type AdminConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
	RPS     int      `mapstructure:"rps"`
}

type DispatcherConfig struct {
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	WorkerCount     int           `mapstructure:"worker_count"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (SUBHUB_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (SUBHUB_STRIPE_API_KEY -> stripe.api_key)
	v.SetEnvPrefix("SUBHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
