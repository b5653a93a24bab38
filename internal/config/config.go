package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // scheduling.timezone must resolve on hosts without zoneinfo

	"courtbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Events     EventsConfig     `yaml:"events"`
	Fields     []models.Field   `yaml:"fields"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled bool         `yaml:"enabled"`
	Port    int          `yaml:"port"`
	TLS     APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SchedulingConfig holds the admission parameters.
type SchedulingConfig struct {
	Timezone        string        `yaml:"timezone"`
	MinLeadTime     time.Duration `yaml:"min_lead_time"`
	MinDuration     float64       `yaml:"min_duration"`
	MaxDuration     float64       `yaml:"max_duration"`
	Granularity     float64       `yaml:"granularity"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	FieldCacheTTL   time.Duration `yaml:"field_cache_ttl"`
	ReferencePrefix string        `yaml:"reference_prefix"`
}

// Location resolves Timezone, defaulting to UTC.
func (s SchedulingConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

type EventsConfig struct {
	AMQPURL      string        `yaml:"amqp_url"`
	Exchange     string        `yaml:"exchange"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	Retry        RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if _, err := c.Scheduling.Location(); err != nil {
		return fmt.Errorf("invalid scheduling timezone %q: %w", c.Scheduling.Timezone, err)
	}
	if c.Scheduling.MinDuration > c.Scheduling.MaxDuration {
		return errors.New("scheduling min_duration exceeds max_duration")
	}
	if c.Scheduling.Granularity <= 0 {
		return errors.New("scheduling granularity must be positive")
	}
	if c.API.GRPC.TLS.Enabled && (c.API.GRPC.TLS.CertFile == "" || c.API.GRPC.TLS.KeyFile == "") {
		return errors.New("grpc tls requires cert_file and key_file")
	}

	return ValidateFields(c.Fields)
}

// ValidateFields rejects empty and duplicate field codes. Attribute checks
// happen when the catalog is synced into the registry.
func ValidateFields(fields []models.Field) error {
	codes := make(map[string]bool)
	for _, f := range fields {
		if f.Code == "" {
			return fmt.Errorf("field '%s' has empty code", f.Name)
		}
		if codes[f.Code] {
			return fmt.Errorf("duplicate field code found: %s", f.Code)
		}
		codes[f.Code] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "courtbook"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Scheduling defaults
	if c.Scheduling.MinLeadTime == 0 {
		c.Scheduling.MinLeadTime = 2 * time.Hour
	}
	if c.Scheduling.MinDuration == 0 {
		c.Scheduling.MinDuration = 1
	}
	if c.Scheduling.MaxDuration == 0 {
		c.Scheduling.MaxDuration = 4
	}
	if c.Scheduling.Granularity == 0 {
		c.Scheduling.Granularity = 0.5
	}
	if c.Scheduling.LockTimeout == 0 {
		c.Scheduling.LockTimeout = 5 * time.Second
	}
	if c.Scheduling.LockTTL == 0 {
		c.Scheduling.LockTTL = 10 * time.Second
	}
	if c.Scheduling.FieldCacheTTL == 0 {
		c.Scheduling.FieldCacheTTL = 30 * time.Second
	}
	if c.Scheduling.ReferencePrefix == "" {
		c.Scheduling.ReferencePrefix = "BK"
	}

	// Events defaults
	if c.Events.Exchange == "" {
		c.Events.Exchange = "courtbook.events"
	}
	if c.Events.PollInterval == 0 {
		c.Events.PollInterval = 2 * time.Second
	}
	if c.Events.BatchSize == 0 {
		c.Events.BatchSize = 20
	}
}
