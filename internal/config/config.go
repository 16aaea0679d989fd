package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	AdminJWTSecret string        `yaml:"admin_jwt_secret"`
	AdminPassword  string        `yaml:"admin_password"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

type BillingConfig struct {
	// CreditConversionRate is minor currency units per credit (100 = 1 credit
	// per 100 units paid).
	CreditConversionRate int64  `yaml:"credit_conversion_rate"`
	WebhookSecret        string `yaml:"webhook_secret"`
	DefaultCurrency      string `yaml:"default_currency"`
}

type WorkerConfig struct {
	Count        int           `yaml:"count"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxRetries   int           `yaml:"max_retries"`
	// DefaultTenantConcurrency caps PROCESSING jobs per tenant when the
	// tenant's plan does not set its own limit.
	DefaultTenantConcurrency int    `yaml:"default_tenant_concurrency"`
	OutputDir                string `yaml:"output_dir"`
}

type PaymentConfig struct {
	VerifyURL string `yaml:"verify_url"`
	APIKey    string `yaml:"api_key"`
}

type JanitorConfig struct {
	Interval          time.Duration `yaml:"interval"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type RateLimitConfig struct {
	Window           time.Duration `yaml:"window"`
	DefaultPerWindow int           `yaml:"default_per_window"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Server     ServerConfig     `yaml:"server"`
	Billing    BillingConfig    `yaml:"billing"`
	Worker     WorkerConfig     `yaml:"worker"`
	Payment    PaymentConfig    `yaml:"payment"`
	Janitor    JanitorConfig    `yaml:"janitor"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Billing.CreditConversionRate <= 0 {
		cfg.Billing.CreditConversionRate = 100
	}
	if cfg.Billing.DefaultCurrency == "" {
		cfg.Billing.DefaultCurrency = "RWF"
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = time.Second
	}
	if cfg.Worker.MaxRetries <= 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.DefaultTenantConcurrency <= 0 {
		cfg.Worker.DefaultTenantConcurrency = 3
	}
	if cfg.Worker.OutputDir == "" {
		cfg.Worker.OutputDir = "out"
	}
	if cfg.Janitor.Interval <= 0 {
		cfg.Janitor.Interval = 5 * time.Minute
	}
	if cfg.Janitor.ProcessingTimeout <= 0 {
		cfg.Janitor.ProcessingTimeout = 10 * time.Minute
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.DefaultPerWindow <= 0 {
		cfg.RateLimit.DefaultPerWindow = 5
	}
}
