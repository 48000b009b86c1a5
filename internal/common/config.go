package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Sync     SyncConfig     `yaml:"sync"`
	Redis    RedisConfig    `yaml:"redis"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// MerchantDefaults seeds the merchant_defaults table on startup.
	MerchantDefaults []MerchantDefaultSeed `yaml:"merchant_defaults"`
	// KnownMerchantDomains extends the built-in domain -> merchant table.
	KnownMerchantDomains map[string]string `yaml:"known_merchant_domains"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai | anthropic
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	MaxRetries  int           `yaml:"max_retries"`
	Strict      bool          `yaml:"strict"`
}

// SyncConfig controls the mailbox sync loop.
type SyncConfig struct {
	MailboxDir  string        `yaml:"mailbox_dir"`
	MaxMessages int           `yaml:"max_messages"`
	Lookback    time.Duration `yaml:"lookback"`
	Schedule    string        `yaml:"schedule"`
	Concurrency int           `yaml:"concurrency"`
}

// RedisConfig enables the optional in-flight message claim.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	ClaimTTL time.Duration `yaml:"claim_ttl"`
}

// AMQPConfig enables the optional purchase notification publisher.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// MerchantDefaultSeed is one merchant_defaults row supplied through the config file.
type MerchantDefaultSeed struct {
	Pattern        string `yaml:"pattern"`
	WarrantyMonths *int   `yaml:"warranty_months"`
	ReturnDays     *int   `yaml:"return_days"`
}

// LoadConfig loads configuration from an optional YAML file (CONFIG_FILE) and
// then applies environment variables on top.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{GRPCAddr: ":8080"},
		LLM: LLMConfig{
			Provider:   "openai",
			Model:      "gpt-4o-mini",
			Timeout:    45 * time.Second,
			MaxTokens:  2048,
			MaxRetries: 2,
		},
		Sync: SyncConfig{
			MailboxDir:  "./mailbox",
			MaxMessages: 50,
			Lookback:    30 * 24 * time.Hour,
			Schedule:    "@every 15m",
			Concurrency: 4,
		},
		Redis:   RedisConfig{ClaimTTL: 10 * time.Minute},
		AMQP:    AMQPConfig{Exchange: "purchases"},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	switch c.LLM.Provider {
	case "anthropic":
		c.LLM.Model = getEnv("ANTHROPIC_MODEL", pick(c.LLM.Model, "gpt-4o-mini", "claude-3-5-haiku-latest"))
		c.LLM.APIKey = getEnv("ANTHROPIC_API_KEY", c.LLM.APIKey)
		c.LLM.BaseURL = getEnv("ANTHROPIC_BASE_URL", c.LLM.BaseURL)
	default:
		c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
		c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
		c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	}
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.MaxRetries = getEnvAsInt("LLM_MAX_RETRIES", c.LLM.MaxRetries)
	c.LLM.Strict = getEnvAsBool("LLM_STRICT_SCHEMA", c.LLM.Strict)

	c.Sync.MailboxDir = getEnv("MAILBOX_DIR", c.Sync.MailboxDir)
	c.Sync.MaxMessages = getEnvAsInt("SYNC_MAX_MESSAGES", c.Sync.MaxMessages)
	c.Sync.Lookback = getEnvAsDuration("SYNC_LOOKBACK", c.Sync.Lookback)
	c.Sync.Schedule = getEnv("SYNC_SCHEDULE", c.Sync.Schedule)
	c.Sync.Concurrency = getEnvAsInt("SYNC_CONCURRENCY", c.Sync.Concurrency)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.ClaimTTL = getEnvAsDuration("REDIS_CLAIM_TTL", c.Redis.ClaimTTL)

	c.AMQP.URL = getEnv("AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = getEnv("AMQP_EXCHANGE", c.AMQP.Exchange)

	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)
}

// pick swaps a value that is still the default of another provider.
func pick(current, otherDefault, fallback string) string {
	if current == "" || current == otherDefault {
		return fallback
	}
	return current
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. requireDB is false for
// in-memory runs.
func (c *Config) Validate(requireDB bool) error {
	if requireDB && c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "an LLM API key is required (OPENAI_API_KEY or ANTHROPIC_API_KEY)", ErrInvalidInput)
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "anthropic" {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.LLM.MaxRetries < 1 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_RETRIES must be at least 1", ErrInvalidInput)
	}
	if c.Sync.MaxMessages < 1 {
		return NewAppError("CONFIG_ERROR", "SYNC_MAX_MESSAGES must be at least 1", ErrInvalidInput)
	}
	return nil
}
