// Package config loads tracker settings from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"

	"deliverytrack/internal/pricing"
)

type API struct {
	BaseURL   string        `yaml:"baseURL"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	RateRPS   float64       `yaml:"rateRPS"`
	RateBurst int           `yaml:"rateBurst"`
}

type Tracker struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	MaxBackoff   time.Duration `yaml:"maxBackoff"`
}

type Cache struct {
	RedisURL string        `yaml:"redisURL"`
	TTL      time.Duration `yaml:"ttl"`
}

type Log struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	API     API            `yaml:"api"`
	Tracker Tracker        `yaml:"tracker"`
	Pricing pricing.Config `yaml:"pricing"`
	Cache   Cache          `yaml:"cache"`
	Log     Log            `yaml:"log"`
	Metrics Metrics        `yaml:"metrics"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		API: API{
			BaseURL:   "http://localhost:8080",
			Timeout:   10 * time.Second,
			RateRPS:   5,
			RateBurst: 10,
		},
		Tracker: Tracker{
			PollInterval: 10 * time.Second,
			FetchTimeout: 8 * time.Second,
			MaxBackoff:   2 * time.Minute,
		},
		Pricing: pricing.Config{BaseFee: 50, PerKmRate: 20},
		Cache:   Cache{TTL: 30 * time.Second},
		Log:     Log{Level: "info"},
	}
}

// Load builds the config from defaults, then the YAML file at path (skipped
// when path is empty or missing), then .env, then TRACKER_* variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, err
		}
	}
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the tracker cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.baseURL is required")
	}
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("tracker.pollInterval must be > 0")
	}
	if c.Tracker.FetchTimeout <= 0 {
		return fmt.Errorf("tracker.fetchTimeout must be > 0")
	}
	if c.Tracker.MaxBackoff < c.Tracker.PollInterval {
		return fmt.Errorf("tracker.maxBackoff must be >= pollInterval")
	}
	if c.Pricing.BaseFee < 0 || c.Pricing.PerKmRate < 0 {
		return fmt.Errorf("pricing values must be >= 0")
	}
	if c.API.RateRPS < 0 || c.API.RateBurst < 0 {
		return fmt.Errorf("api rate limits must be >= 0")
	}
	return nil
}

func applyEnv(c *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("TRACKER_API_BASE_URL", &c.API.BaseURL)
	str("TRACKER_API_TOKEN", &c.API.Token)
	str("TRACKER_REDIS_URL", &c.Cache.RedisURL)
	str("TRACKER_LOG_LEVEL", &c.Log.Level)
	str("TRACKER_METRICS_ADDR", &c.Metrics.Addr)

	durs := map[string]*time.Duration{
		"TRACKER_API_TIMEOUT":   &c.API.Timeout,
		"TRACKER_POLL_INTERVAL": &c.Tracker.PollInterval,
		"TRACKER_FETCH_TIMEOUT": &c.Tracker.FetchTimeout,
		"TRACKER_MAX_BACKOFF":   &c.Tracker.MaxBackoff,
		"TRACKER_CACHE_TTL":     &c.Cache.TTL,
	}
	for k, dst := range durs {
		if v, ok := os.LookupEnv(k); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = d
		}
	}
	floats := map[string]*float64{
		"TRACKER_API_RATE_RPS":        &c.API.RateRPS,
		"TRACKER_PRICING_BASE_FEE":    &c.Pricing.BaseFee,
		"TRACKER_PRICING_PER_KM_RATE": &c.Pricing.PerKmRate,
	}
	for k, dst := range floats {
		if v, ok := os.LookupEnv(k); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = f
		}
	}
	if v, ok := os.LookupEnv("TRACKER_API_RATE_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRACKER_API_RATE_BURST: %w", err)
		}
		c.API.RateBurst = n
	}
	if v, ok := os.LookupEnv("TRACKER_LOG_DEV"); ok {
		c.Log.Dev = v == "1" || strings.EqualFold(v, "true")
	}
	return nil
}
