package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the externally supplied surface consumed by the core. Every
// lifecycle window and limit lives here; the engines carry no hardcoded
// policy beyond these documented fallbacks.
type Config struct {
	EPPAddr  string `mapstructure:"EPP_ADDR"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	// TLS cert/key paths for the EPP listener. Provisioning is external;
	// empty paths run the listener in plaintext for local development.
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`

	PostgresDSN  string `mapstructure:"POSTGRES_DSN"`
	RedisURL     string `mapstructure:"REDIS_URL"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	AuditTopic   string `mapstructure:"AUDIT_TOPIC"`

	PendingDeleteWindow time.Duration `mapstructure:"PENDING_DELETE_WINDOW"`
	RedemptionWindow    time.Duration `mapstructure:"REDEMPTION_WINDOW"`
	TransferWindow      time.Duration `mapstructure:"TRANSFER_WINDOW"`

	SessionIdleTimeout time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`
	// MaxSessionsPerRegistrar caps concurrent authenticated sessions per
	// client id; zero means unlimited.
	MaxSessionsPerRegistrar int `mapstructure:"MAX_SESSIONS_PER_REGISTRAR"`

	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`

	RateLimitThreshold int           `mapstructure:"RATE_LIMIT_THRESHOLD"`
	RateLimitWindow    time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitBlock     time.Duration `mapstructure:"RATE_LIMIT_BLOCK"`
	// RateLimitPreLogin applies the limiter to unauthenticated EPP
	// connection attempts as abuse control.
	RateLimitPreLogin bool `mapstructure:"RATE_LIMIT_PRELOGIN"`
}

// Load reads configuration from the environment (prefix ZONECORE_) with an
// optional .env fallback for development.
func Load() (*Config, error) {
	viper.SetDefault("EPP_ADDR", ":700")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("AUDIT_TOPIC", "zonecore.transactions")
	viper.SetDefault("PENDING_DELETE_WINDOW", 5*24*time.Hour)
	viper.SetDefault("REDEMPTION_WINDOW", 30*24*time.Hour)
	viper.SetDefault("TRANSFER_WINDOW", 5*24*time.Hour)
	viper.SetDefault("SESSION_IDLE_TIMEOUT", 10*time.Minute)
	viper.SetDefault("MAX_SESSIONS_PER_REGISTRAR", 0)
	viper.SetDefault("SWEEP_INTERVAL", time.Minute)
	viper.SetDefault("RATE_LIMIT_THRESHOLD", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	viper.SetDefault("RATE_LIMIT_BLOCK", time.Minute)
	viper.SetDefault("RATE_LIMIT_PRELOGIN", false)

	viper.SetEnvPrefix("ZONECORE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigFile(".env")
	// Ignore err if .env doesn't exist
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SessionSweepInterval derives the idle sweep cadence: shorter than the
// timeout so expiry lands close to the configured deadline.
func (c *Config) SessionSweepInterval() time.Duration {
	interval := c.SessionIdleTimeout / 4
	if interval <= 0 {
		interval = time.Minute
	}
	return interval
}
