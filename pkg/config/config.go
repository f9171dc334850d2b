package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"BrentView/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DateLayout is the wire format for calendar dates used by the analytics API.
const DateLayout = util.DateLayout

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"45s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		CORS            struct {
			Enabled      bool     `yaml:"enabled" default:"true"`
			AllowOrigins []string `yaml:"allow_origins" default:"[\"*\"]"`
		} `yaml:"cors"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
			Topic     string        `yaml:"topic" default:"brentview.logs"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Analytics struct {
		BaseURL       string        `yaml:"base_url" validate:"required,url"`
		Timeout       time.Duration `yaml:"timeout" default:"15s"`
		RetryAttempts int           `yaml:"retry_attempts" default:"2" validate:"gte=1,lte=10"`
		Backoff       time.Duration `yaml:"backoff" default:"200ms"`
	} `yaml:"analytics"`
	View struct {
		Title           string `yaml:"title" default:"Brent Oil Price Analysis"`
		StartDate       string `yaml:"start_date" default:"2020-01-01" validate:"datetime=2006-01-02"`
		EndDate         string `yaml:"end_date" default:"2022-12-31" validate:"datetime=2006-01-02"`
		ForecastSteps   int    `yaml:"forecast_steps" default:"30" validate:"gte=1,lte=365"`
		VolatilitySteps int    `yaml:"volatility_steps" default:"30" validate:"gte=1,lte=365"`
	} `yaml:"view"`
	Historical struct {
		CacheTTL    time.Duration `yaml:"cache_ttl" default:"1h"`
		RefreshCron string        `yaml:"refresh_cron"`
	} `yaml:"historical"`
	Cache struct {
		MemoryMaxSize int           `yaml:"memory_max_size" default:"64"`
		MemoryCleanup time.Duration `yaml:"memory_cleanup" default:"5m"`
		Redis         struct {
			Enabled      bool          `yaml:"enabled"`
			Host         string        `yaml:"host" default:"localhost"`
			Port         int           `yaml:"port" default:"6379"`
			Password     string        `yaml:"password"`
			DB           int           `yaml:"db"`
			Prefix       string        `yaml:"prefix" default:"brentview"`
			PoolSize     int           `yaml:"pool_size" default:"10"`
			MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
			PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"5" validate:"gt=0"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"1" validate:"gt=0"`
	} `yaml:"rate_limit"`
}

// envOverrides lists the settings that can be replaced from the environment
// (or a .env file). Empty values leave the YAML value in place.
type envOverrides struct {
	Environment  string `envconfig:"ENVIRONMENT"`
	Port         int    `envconfig:"PORT"`
	AnalyticsURL string `envconfig:"ANALYTICS_URL"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RedisPass    string `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	RefreshCron  string `envconfig:"REFRESH_CRON"`
}

const envPrefix = "BRENTVIEW"

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, then the YAML document, then validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is read first when present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	if env.Environment != "" {
		c.Environment = env.Environment
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.AnalyticsURL != "" {
		c.Analytics.BaseURL = env.AnalyticsURL
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.RedisAddr != "" {
		host, port, err := splitHostPort(env.RedisAddr)
		if err != nil {
			return fmt.Errorf("%s_REDIS_ADDR: %w", envPrefix, err)
		}
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Host = host
		c.Cache.Redis.Port = port
	}
	if env.RedisPass != "" {
		c.Cache.Redis.Password = env.RedisPass
	}
	if env.KafkaBrokers != "" {
		c.Kafka.Brokers = strings.Split(env.KafkaBrokers, ",")
	}
	if env.RefreshCron != "" {
		c.Historical.RefreshCron = env.RefreshCron
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	start, _ := time.Parse(DateLayout, c.View.StartDate)
	end, _ := time.Parse(DateLayout, c.View.EndDate)
	if start.After(end) {
		return fmt.Errorf("view.start_date %s is after view.end_date %s", c.View.StartDate, c.View.EndDate)
	}
	if c.Log.Collector.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("log.collector requires kafka.brokers")
	}
	// actions answer only after their fetch, retries included
	if budget := c.ActionBudget(); c.Server.WriteTimeout <= budget {
		return fmt.Errorf("server.write_timeout %s must exceed the analytics worst case %s", c.Server.WriteTimeout, budget)
	}
	return nil
}

// ActionBudget is the longest an analytics call can take: every attempt
// timing out plus the linear backoff between attempts.
func (c *Config) ActionBudget() time.Duration {
	n := time.Duration(c.Analytics.RetryAttempts)
	return c.Analytics.Timeout*n + c.Analytics.Backoff*n*(n-1)/2
}

// StartEnd returns the configured historical range as dates.
func (c *Config) StartEnd() (time.Time, time.Time) {
	start, _ := time.Parse(DateLayout, c.View.StartDate)
	end, _ := time.Parse(DateLayout, c.View.EndDate)
	return start, end
}

func splitHostPort(addr string) (string, int, error) {
	i := strings.LastIndex(addr, ":")
	if i <= 0 || i == len(addr)-1 {
		return "", 0, fmt.Errorf("invalid address %q", addr)
	}
	port := util.ParseIntDefault(addr[i+1:], 0)
	if port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return addr[:i], port, nil
}
