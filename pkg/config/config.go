package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	RequesterStatic = "static"
	RequesterLookup = "lookup"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
		AllowOrigins    []string      `yaml:"allow_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Workflow struct {
		BackendBaseURL   string `yaml:"backend_base_url"`
		PriceFeedBaseURL string `yaml:"price_feed_base_url" default:"https://api.coingecko.com/api/v3"`
		PriceWindowDays  int    `yaml:"price_window_days" default:"30"`
		Symbol           string `yaml:"symbol" default:"ethereum"`
		VsCurrency       string `yaml:"vs_currency" default:"usd"`
		PageSize         int    `yaml:"page_size" default:"7"`
		Requester        struct {
			Strategy string `yaml:"strategy" default:"static"`
		} `yaml:"requester"`
		SubmitRateLimit struct {
			Capacity     float64 `yaml:"capacity" default:"3"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"0.2"`
		} `yaml:"submit_rate_limit"`
		SubmitLockTTL time.Duration `yaml:"submit_lock_ttl" default:"2m"`
		IdleEviction  time.Duration `yaml:"idle_eviction" default:"30m"`
	} `yaml:"workflow"`
	HTTPClient struct {
		Timeout        time.Duration `yaml:"timeout" default:"30s"`
		PriceFeedRPS   float64       `yaml:"price_feed_rps" default:"0.5"`
		PriceFeedBurst int           `yaml:"price_feed_burst" default:"2"`
		BackendRPS     float64       `yaml:"backend_rps" default:"0"`
	} `yaml:"http_client"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"forecastdesk.workflow.events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"forecastdesk"`
	} `yaml:"redis"`
	LogCollector struct {
		Enabled        bool          `yaml:"enabled"`
		Topic          string        `yaml:"topic" default:"forecastdesk.logs"`
		Interval       time.Duration `yaml:"interval" default:"30s"`
		CountThreshold int           `yaml:"count_threshold" default:"100"`
	} `yaml:"log_collector"`
}

// Load reads a YAML file on top of the struct defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Parse(b)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// Parse applies defaults and decodes b without validating.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (when present), then the YAML file, then applies
// environment overrides before validating.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Parse(b)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("BACKEND_BASE_URL"); v != "" {
		c.Workflow.BackendBaseURL = v
	}
	if v := getenv("PRICE_FEED_BASE_URL"); v != "" {
		c.Workflow.PriceFeedBaseURL = v
	}
	if v := getenv("PRICE_WINDOW_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRICE_WINDOW_DAYS: %w", err)
		}
		c.Workflow.PriceWindowDays = n
	}
	if v := getenv("REQUESTER_STRATEGY"); v != "" {
		c.Workflow.Requester.Strategy = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = n
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	return nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Workflow.BackendBaseURL == "" {
		return fmt.Errorf("workflow.backend_base_url is required")
	}
	if c.Workflow.PriceFeedBaseURL == "" {
		return fmt.Errorf("workflow.price_feed_base_url is required")
	}
	if c.Workflow.PriceWindowDays <= 0 {
		return fmt.Errorf("workflow.price_window_days must be positive, got %d", c.Workflow.PriceWindowDays)
	}
	if c.Workflow.PageSize <= 0 {
		return fmt.Errorf("workflow.page_size must be positive, got %d", c.Workflow.PageSize)
	}
	if c.Workflow.IdleEviction <= 0 {
		return fmt.Errorf("workflow.idle_eviction must be positive, got %s", c.Workflow.IdleEviction)
	}
	if c.Workflow.Symbol == "" {
		return fmt.Errorf("workflow.symbol is required")
	}
	switch c.Workflow.Requester.Strategy {
	case RequesterStatic, RequesterLookup:
	default:
		return fmt.Errorf("workflow.requester.strategy must be '%s' or '%s', got '%s'",
			RequesterStatic, RequesterLookup, c.Workflow.Requester.Strategy)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.LogCollector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("log_collector requires kafka to be enabled")
	}
	return nil
}
