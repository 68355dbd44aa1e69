package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Compliance ComplianceConfig `koanf:"compliance"`
	HMRC       HMRCConfig       `koanf:"hmrc"`
	Security   SecurityConfig   `koanf:"security"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Sweeper    SweeperConfig    `koanf:"sweeper"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type ComplianceConfig struct {
	AuditRetentionDays       int           `koanf:"audit_retention_days"`
	ConsentCacheTTL          time.Duration `koanf:"consent_cache_ttl"`
	BreachNotificationWindow time.Duration `koanf:"breach_notification_window"`
	DSARResponseDays         int           `koanf:"dsar_response_days"`
	DSARExtensionDays        int           `koanf:"dsar_extension_days"`
}

type HMRCConfig struct {
	BaseURL       string        `koanf:"base_url"`
	Timeout       time.Duration `koanf:"timeout"`
	TestInLive    bool          `koanf:"test_in_live"`
	SenderID      string        `koanf:"sender_id"`
	RetryAttempts int           `koanf:"retry_attempts"`
}

type SecurityConfig struct {
	JWTSecret   string          `koanf:"jwt_secret"`
	TokenExpiry time.Duration   `koanf:"token_expiry"`
	RateLimit   RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

type TelemetryConfig struct {
	OTLPEndpoint   string  `koanf:"otlp_endpoint"`
	TracingEnabled bool    `koanf:"tracing_enabled"`
	SampleRate     float64 `koanf:"sample_rate"`
}

type SweeperConfig struct {
	Interval  time.Duration `koanf:"interval"`
	Companies []string      `koanf:"companies"`
}

// Load builds configuration from defaults, configs/config.yaml when present,
// and PCB_ environment variables, in increasing precedence.
func Load() (*Config, error) {
	return LoadFrom("configs/config.yaml")
}

// LoadFrom loads configuration using the given YAML path
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Compliance: ComplianceConfig{
			AuditRetentionDays:       2190,
			ConsentCacheTTL:          5 * time.Minute,
			BreachNotificationWindow: 72 * time.Hour,
			DSARResponseDays:         30,
			DSARExtensionDays:        60,
		},
		HMRC: HMRCConfig{
			BaseURL:       "https://transaction-engine.tax.service.gov.uk",
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
		},
		Security: SecurityConfig{
			TokenExpiry: 24 * time.Hour,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
		Telemetry: TelemetryConfig{
			SampleRate: 0.1,
		},
		Sweeper: SweeperConfig{
			Interval: 24 * time.Hour,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		_ = err
	}

	if err := k.Load(env.Provider("PCB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "PCB_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
